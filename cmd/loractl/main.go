// Command loractl sends, receives and inspects packets on a SX127x radio
// attached to a Linux SPI port.
//
//	loractl [flags] send <text>
//	loractl [flags] listen
//	loractl [flags] dump
//	loractl [flags] random
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/NV4RE/sxlora"
)

func main() {
	var (
		spiDev  = flag.String("spi", "/dev/spidev0.0", "SPI port")
		dio0    = flag.String("dio0", "GPIO25", "DIO0 pin name, empty if not wired")
		reset   = flag.String("reset", "GPIO17", "RESET pin name")
		freq    = flag.Uint("freq", 915000000, "carrier frequency in Hz")
		sf      = flag.Int("sf", 7, "spreading factor (6-12)")
		bw      = flag.Uint("bw", 125000, "signal bandwidth in Hz")
		cr      = flag.Int("cr", 5, "coding rate denominator (5-8)")
		power   = flag.Int("power", 17, "tx power in dBm")
		rfo     = flag.Bool("rfo", false, "use the RFO output instead of PA_BOOST")
		sync    = flag.Uint("sync", 0x12, "sync word")
		crc     = flag.Bool("crc", true, "enable payload CRC")
		serial  = flag.String("serial", "", "serial port for register diagnostics")
		baud    = flag.Int("baud", 115200, "diagnostics serial baud rate")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("cmd", "loractl")

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: loractl [flags] send <text> | listen | dump | random")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(log, options{
		spiDev: *spiDev, dio0: *dio0, reset: *reset,
		freq: uint32(*freq), sf: *sf, bw: uint32(*bw), cr: *cr,
		power: *power, rfo: *rfo, sync: byte(*sync), crc: *crc,
		serial: *serial, baud: *baud,
	}, flag.Args()); err != nil {
		log.WithError(err).Fatal("loractl")
	}
}

type options struct {
	spiDev, dio0, reset string
	freq                uint32
	sf                  int
	bw                  uint32
	cr                  int
	power               int
	rfo                 bool
	sync                byte
	crc                 bool
	serial              string
	baud                int
}

// run executes one command. The radio is closed on every return.
func run(log *logrus.Entry, o options, args []string) error {
	l, err := sxlora.NewLora(o.spiDev, o.dio0, o.reset)
	if err != nil {
		return fmt.Errorf("open radio: %w", err)
	}
	defer l.Close()

	var sink sxlora.Sink = sxlora.LogrusSink{Entry: log}
	if o.serial != "" {
		s, err := sxlora.OpenSerialSink(o.serial, o.baud)
		if err != nil {
			return err
		}
		defer s.Close()
		sink = s
	}
	l.SetSink(sink)

	if err := l.Begin(o.freq); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	cfg := l.Config()
	cfg.SpreadingFactor = o.sf
	cfg.Bandwidth = o.bw
	cfg.CodingRate = o.cr
	cfg.SyncWord = o.sync
	cfg.CRC = o.crc
	cfg.TxPower = o.power
	cfg.PAOutput = sxlora.PAOutputPABoost
	if o.rfo {
		cfg.PAOutput = sxlora.PAOutputRFO
	}
	if err := l.Configure(cfg); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd := args[0]; cmd {
	case "send":
		var payload []byte
		if len(args) > 1 {
			payload = []byte(args[1])
		}
		if err := l.Transmit(ctx, payload); err != nil {
			return fmt.Errorf("transmit: %w", err)
		}
		log.WithFields(logrus.Fields{
			"bytes":   len(payload),
			"airtime": l.Config().TimeOnAir(len(payload)),
		}).Info("sent")
	case "listen":
		msgs := make(chan *sxlora.Message)
		errc := make(chan error, 1)
		go func() { errc <- l.Receive(ctx, msgs) }()
		for {
			select {
			case m := <-msgs:
				log.WithFields(logrus.Fields{
					"rssi":      m.RSSI,
					"snr":       m.SNR,
					"freqError": m.FrequencyError,
				}).Infof("%q", m.Data)
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("receive: %w", err)
				}
				return nil
			}
		}
	case "dump":
		if err := l.DumpRegisters(); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	case "random":
		if _, err := l.ParsePacket(0); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		b, err := l.Random()
		if err != nil {
			return fmt.Errorf("random: %w", err)
		}
		fmt.Printf("0x%02x\n", b)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
