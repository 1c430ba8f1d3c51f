package sxlora

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	ErrGetVersion       = errors.New("version not matched")
	ErrBusy             = errors.New("radio is transmitting")
	ErrTxTimeout        = errors.New("tx done timeout")
	ErrDIO0Timeout      = errors.New("dio 0 timeout")
	ErrNoDIO0           = errors.New("no dio 0 pin configured")
	ErrInvalidBandwidth = errors.New("invalid bandwidth register value")
)

// Lora drives one SX127x radio in LoRa mode. Its methods are not safe for
// concurrent use.
type Lora struct {
	spi          spi.Conn
	port         spi.PortCloser
	reset        gpio.PinOut
	dio0         gpio.PinIn
	sink         Sink
	log          *logrus.Entry
	pollInterval time.Duration
	maxPolls     int
	sleep        func(time.Duration)

	state
}

// state is everything the driver remembers between calls. The chip remains
// the authority on the operating mode; state only holds what cannot be read
// back cheaply.
type state struct {
	cfg         RadioConfig
	initialized bool
	// packetIndex is the read cursor into the packet being drained.
	packetIndex int
}

// NewLora opens the named SPI port and GPIO pins through the periph host
// drivers. di0 may be empty when the interrupt line is not wired.
func NewLora(spiDev, di0, rst string) (*Lora, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	if _, err := driverreg.Init(); err != nil {
		return nil, err
	}

	p, err := spireg.Open(spiDev)
	if err != nil {
		return nil, err
	}

	c, err := p.Connect(8*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, err
	}

	reset := gpioreg.ByName(rst)
	if reset == nil {
		p.Close()
		return nil, errors.New("failed to find RESET pin")
	}

	if err := reset.Out(gpio.High); err != nil {
		p.Close()
		return nil, err
	}

	opts := Options{SPI: c, Port: p, Reset: reset}
	if di0 != "" {
		dio0 := gpioreg.ByName(di0)
		if dio0 == nil {
			p.Close()
			return nil, errors.New("failed to find DIO0 pin")
		}
		if err := dio0.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			p.Close()
			return nil, err
		}
		opts.DIO0 = dio0
	}
	return New(opts), nil
}

// New returns a driver on an already connected bus. Begin must be called
// before anything else.
func New(opts Options) *Lora {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.SPI != nil {
		log = log.WithField("dev", opts.SPI.String())
	}
	sink := opts.Sink
	if sink == nil {
		sink = LogrusSink{Entry: log}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Lora{
		spi:          opts.SPI,
		port:         opts.Port,
		reset:        opts.Reset,
		dio0:         opts.DIO0,
		sink:         sink,
		log:          log,
		pollInterval: poll,
		maxPolls:     opts.MaxPolls,
		sleep:        time.Sleep,
		state:        state{cfg: DefaultConfig()},
	}
}

// Begin resets the radio, checks it is a SX127x and leaves it in standby
// on the given frequency with the default modem settings and 17 dBm output
// on PA_BOOST.
func (l *Lora) Begin(frequency uint32) error {
	l.sink.Printf("begin %d", frequency)

	if err := l.Reset(); err != nil {
		return err
	}

	v, err := l.GetVersion()
	if err != nil {
		return err
	}
	l.sink.Printf("version: 0x%02x", v)
	if v != ChipVersion {
		l.sink.Printf("expect 0x%02x found 0x%02x", ChipVersion, v)
		l.log.WithField("version", fmt.Sprintf("0x%02x", v)).Warn("unexpected chip version")
		return ErrGetVersion
	}

	if err := l.Sleep(); err != nil {
		return err
	}

	l.cfg = DefaultConfig()
	if err := l.SetFrequency(frequency); err != nil {
		return err
	}

	if err := l.WriteRegister(RegFifoTxBaseAddr, 0); err != nil {
		return err
	}
	if err := l.WriteRegister(RegFifoRxBaseAddr, 0); err != nil {
		return err
	}

	if err := l.SetLnaBoost(true); err != nil {
		return err
	}

	if err := l.WriteRegister(RegModemConfig3, modemConfig3Init); err != nil {
		return err
	}

	if err := l.SetTxPower(17, PAOutputPABoost); err != nil {
		return err
	}

	if err := l.Idle(); err != nil {
		return err
	}

	l.initialized = true
	l.log.WithField("frequency", frequency).Info("radio ready")
	return nil
}

// End puts the radio to sleep.
func (l *Lora) End() error {
	l.initialized = false
	return l.Sleep()
}

// Close ends the session and releases the SPI port if the driver opened it.
func (l *Lora) Close() error {
	err := l.End()
	if l.port != nil {
		if cerr := l.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SetSink replaces the diagnostics sink. nil discards diagnostics.
func (l *Lora) SetSink(s Sink) {
	if s == nil {
		s = DiscardSink
	}
	l.sink = s
}

// Initialized reports whether Begin succeeded and End has not been called.
func (l *Lora) Initialized() bool {
	return l.initialized
}

// Reset pulses the reset line low for 10ms then waits another 10ms for the
// chip to come up. Without a reset pin it does nothing.
func (l *Lora) Reset() error {
	if l.reset == nil {
		return nil
	}
	err := l.reset.Out(gpio.Low)
	if err != nil {
		return err
	}
	l.sleep(10 * time.Millisecond)
	err = l.reset.Out(gpio.High)
	l.sleep(10 * time.Millisecond)
	return err
}

func (l *Lora) GetVersion() (byte, error) {
	return l.ReadRegister(RegVersion)
}

// SetMode writes m, tagged with the LoRa mode bit, to RegOpMode.
func (l *Lora) SetMode(m Mode) error {
	l.log.WithField("mode", m).Debug("set mode")
	return l.WriteRegister(RegOpMode, byte(ModeLongRange|m))
}

// Mode reads the current operating mode back from the chip.
func (l *Lora) Mode() (Mode, error) {
	v, err := l.ReadRegister(RegOpMode)
	if err != nil {
		return 0, err
	}
	return opMode(v).Mode(), nil
}

// Idle puts the radio in standby.
func (l *Lora) Idle() error {
	return l.SetMode(ModeStandby)
}

func (l *Lora) Sleep() error {
	return l.SetMode(ModeSleep)
}

// isTransmitting reports a transmission in progress. A TxDone flag left over
// from an asynchronous transmit is cleared on the way.
func (l *Lora) isTransmitting() (bool, error) {
	v, err := l.ReadRegister(RegOpMode)
	if err != nil {
		return false, err
	}
	if opMode(v).Transmitting() {
		return true, nil
	}

	irq, err := l.ReadRegister(RegIrqFlags)
	if err != nil {
		return false, err
	}
	if irqFlags(irq).TxDone() {
		if err := l.WriteRegister(RegIrqFlags, IrqTxDoneMask); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Config returns the driver's view of the radio configuration.
func (l *Lora) Config() RadioConfig {
	return l.cfg
}

// Configure applies every parameter in cfg.
func (l *Lora) Configure(cfg RadioConfig) error {
	steps := []func() error{
		func() error { return l.SetFrequency(cfg.Frequency) },
		func() error { return l.SetSignalBandwidth(cfg.Bandwidth) },
		func() error { return l.SetSpreadingFactor(cfg.SpreadingFactor) },
		func() error { return l.SetCodingRate(cfg.CodingRate) },
		func() error { return l.SetPreambleLength(cfg.PreambleLength) },
		func() error { return l.SetSyncWord(cfg.SyncWord) },
		func() error { return l.SetCrc(cfg.CRC) },
		func() error { return l.SetInvertIQ(cfg.InvertIQ) },
		func() error { return l.SetTxPower(cfg.TxPower, cfg.PAOutput) },
		func() error { return l.setHeaderMode(cfg.HeaderMode) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	l.log.WithFields(logrus.Fields{
		"frequency": l.cfg.Frequency,
		"sf":        l.cfg.SpreadingFactor,
		"bw":        l.cfg.Bandwidth,
		"cr":        l.cfg.CodingRate,
	}).Debug("configured")
	return nil
}

// ReadConfig reconstructs the modem configuration from the chip registers.
// TxPower, PAOutput and InvertIQ are taken from the driver's own record.
func (l *Lora) ReadConfig() (RadioConfig, error) {
	cfg := l.cfg
	frf, err := l.ReadRegisterBytes(RegFrfMsb, 3)
	if err != nil {
		return cfg, err
	}
	cfg.Frequency = frfToFrequency(uint32(frf[0])<<16 | uint32(frf[1])<<8 | uint32(frf[2]))

	mc1, err := l.ReadRegister(RegModemConfig1)
	if err != nil {
		return cfg, err
	}
	cfg.Bandwidth = bandwidthHz(modemConfig1(mc1).Bandwidth())
	cfg.CodingRate = int(modemConfig1(mc1).CodingRate()) + 4
	cfg.HeaderMode = modemConfig1(mc1).HeaderMode()

	mc2, err := l.ReadRegister(RegModemConfig2)
	if err != nil {
		return cfg, err
	}
	cfg.SpreadingFactor = int(modemConfig2(mc2).SpreadingFactor())
	cfg.CRC = modemConfig2(mc2).CRC()

	pre, err := l.ReadRegisterBytes(RegPreambleMsb, 2)
	if err != nil {
		return cfg, err
	}
	cfg.PreambleLength = uint16(pre[0])<<8 | uint16(pre[1])

	cfg.SyncWord, err = l.ReadRegister(RegSyncWord)
	return cfg, err
}

// SetFrequency sets the carrier frequency in Hz. The chip latches the new
// frequency when the LSB is written, so it goes last.
func (l *Lora) SetFrequency(frequency uint32) error {
	l.cfg.Frequency = frequency
	frf := frequencyToFrf(frequency)

	err := l.WriteRegister(RegFrfMsb, byte(frf>>16))
	if err != nil {
		return err
	}
	err = l.WriteRegister(RegFrfMid, byte(frf>>8))
	if err != nil {
		return err
	}
	return l.WriteRegister(RegFrfLsb, byte(frf>>0))
}

func (l *Lora) SetLnaBoost(boost bool) error {
	return l.modifyRegister(RegLna, func(v byte) byte {
		return byte(lna(v).WithBoostHF(boost))
	})
}

func (l *Lora) SetAutoAGC(on bool) error {
	return l.modifyRegister(RegModemConfig3, func(v byte) byte {
		return byte(modemConfig3(v).WithAutoAGC(on))
	})
}

// SetSpreadingFactor clamps sf to [6,12].
func (l *Lora) SetSpreadingFactor(sf int) error {
	sf = clampSpreadingFactor(sf)

	detectionOptimize, detectionThreshold := detectionSettings(sf)
	err := l.WriteRegister(RegDetectionOptimize, detectionOptimize)
	if err != nil {
		return err
	}

	err = l.WriteRegister(RegDetectionThreshold, detectionThreshold)
	if err != nil {
		return err
	}

	err = l.modifyRegister(RegModemConfig2, func(v byte) byte {
		return byte(modemConfig2(v).WithSpreadingFactor(uint8(sf)))
	})
	if err != nil {
		return err
	}
	l.cfg.SpreadingFactor = sf
	return l.updateLowDataRateOptimize()
}

// SetSignalBandwidth picks the narrowest LoRa bandwidth that is at least
// bandwidth Hz, or 500 kHz.
func (l *Lora) SetSignalBandwidth(bandwidth uint32) error {
	bw := bandwidthIndex(bandwidth)

	err := l.modifyRegister(RegModemConfig1, func(v byte) byte {
		return byte(modemConfig1(v).WithBandwidth(bw))
	})
	if err != nil {
		return err
	}
	l.cfg.Bandwidth = bandwidthHz(bw)
	return l.updateLowDataRateOptimize()
}

// SetCodingRate sets the 4/denominator coding rate, clamped to [5,8].
func (l *Lora) SetCodingRate(denominator int) error {
	denominator = clampCodingRate(denominator)

	err := l.modifyRegister(RegModemConfig1, func(v byte) byte {
		return byte(modemConfig1(v).WithCodingRate(uint8(denominator - 4)))
	})
	if err != nil {
		return err
	}
	l.cfg.CodingRate = denominator
	return nil
}

func (l *Lora) SetPreambleLength(length uint16) error {
	err := l.WriteRegister(RegPreambleMsb, byte(length>>8))
	if err != nil {
		return err
	}
	err = l.WriteRegister(RegPreambleLsb, byte(length>>0))
	if err != nil {
		return err
	}
	l.cfg.PreambleLength = length
	return nil
}

func (l *Lora) SetSyncWord(sw byte) error {
	if err := l.WriteRegister(RegSyncWord, sw); err != nil {
		return err
	}
	l.cfg.SyncWord = sw
	return nil
}

func (l *Lora) EnableCrc() error  { return l.SetCrc(true) }
func (l *Lora) DisableCrc() error { return l.SetCrc(false) }

func (l *Lora) SetCrc(crc bool) error {
	err := l.modifyRegister(RegModemConfig2, func(v byte) byte {
		return byte(modemConfig2(v).WithCRC(crc))
	})
	if err != nil {
		return err
	}
	l.cfg.CRC = crc
	return nil
}

func (l *Lora) EnableInvertIQ() error  { return l.SetInvertIQ(true) }
func (l *Lora) DisableInvertIQ() error { return l.SetInvertIQ(false) }

// SetInvertIQ writes the fixed RegInvertIQ/RegInvertIQ2 pairs from the
// SX1276 errata.
func (l *Lora) SetInvertIQ(invert bool) error {
	iq, iq2 := invertIQOff, invertIQ2Off
	if invert {
		iq, iq2 = invertIQOn, invertIQ2On
	}
	if err := l.WriteRegister(RegInvertIQ, iq); err != nil {
		return err
	}
	if err := l.WriteRegister(RegInvertIQ2, iq2); err != nil {
		return err
	}
	l.cfg.InvertIQ = invert
	return nil
}

// SetTxPower sets the output power in dBm. RFO takes 0-14 dBm, PA_BOOST
// takes 2-20 dBm; levels outside are clamped. Above 17 dBm PA_BOOST switches
// to the high power DAC setting and a 140mA current limit.
func (l *Lora) SetTxPower(level int, out PAOutput) error {
	s := txPowerSettings(level, out)
	if s.boost {
		if err := l.WriteRegister(RegPaDac, s.paDac); err != nil {
			return err
		}
		if err := l.SetOCP(s.ocp); err != nil {
			return err
		}
	}
	if err := l.WriteRegister(RegPaConfig, s.paConfig); err != nil {
		return err
	}
	l.cfg.TxPower = s.level
	l.cfg.PAOutput = out
	return nil
}

// SetOCP sets the over current protection limit in mA. Limits below 45mA
// are raised to 45mA; anything above 240mA uses the highest trim.
func (l *Lora) SetOCP(mA uint8) error {
	return l.WriteRegister(RegOcp, ocpEnableBit|(0x1f&ocpTrim(mA)))
}

func (l *Lora) setHeaderMode(h HeaderMode) error {
	err := l.modifyRegister(RegModemConfig1, func(v byte) byte {
		return byte(modemConfig1(v).WithHeaderMode(h))
	})
	if err != nil {
		return err
	}
	l.cfg.HeaderMode = h
	return nil
}

func (l *Lora) ExplicitHeaderMode() error { return l.setHeaderMode(HeaderExplicit) }
func (l *Lora) ImplicitHeaderMode() error { return l.setHeaderMode(HeaderImplicit) }

// updateLowDataRateOptimize sets LowDataRateOptimize from the spreading factor
// and bandwidth currently in the chip.
func (l *Lora) updateLowDataRateOptimize() error {
	mc1, err := l.ReadRegister(RegModemConfig1)
	if err != nil {
		return err
	}
	bw := bandwidthHz(modemConfig1(mc1).Bandwidth())
	if bw == 0 {
		return ErrInvalidBandwidth
	}
	mc2, err := l.ReadRegister(RegModemConfig2)
	if err != nil {
		return err
	}
	on := lowDataRateOptimize(int(modemConfig2(mc2).SpreadingFactor()), bw)
	return l.modifyRegister(RegModemConfig3, func(v byte) byte {
		return byte(modemConfig3(v).WithLowDataRateOptimize(on))
	})
}
