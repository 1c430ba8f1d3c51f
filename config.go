package sxlora

import (
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// RadioConfig is a snapshot of the radio parameters.
type RadioConfig struct {
	// Frequency is the carrier frequency in Hz.
	Frequency uint32
	// SpreadingFactor in [6,12].
	SpreadingFactor int
	// Bandwidth in Hz, one of the ten LoRa bandwidths.
	Bandwidth uint32
	// CodingRate is the denominator of the 4/x coding rate, in [5,8].
	CodingRate     int
	PreambleLength uint16
	SyncWord       byte
	CRC            bool
	InvertIQ       bool
	TxPower        int
	PAOutput       PAOutput
	HeaderMode     HeaderMode
}

// DefaultConfig returns the configuration Begin leaves the radio in, apart
// from the frequency. These are the chip's reset values with CRC off.
func DefaultConfig() RadioConfig {
	return RadioConfig{
		Frequency:       915e6,
		SpreadingFactor: 7,
		Bandwidth:       125e3,
		CodingRate:      5,
		PreambleLength:  8,
		SyncWord:        0x12,
		TxPower:         17,
		PAOutput:        PAOutputPABoost,
		HeaderMode:      HeaderExplicit,
	}
}

// LowDataRateOptimize reports whether the configuration mandates the low data
// rate optimisation, i.e. symbols longer than 16ms.
func (c RadioConfig) LowDataRateOptimize() bool {
	return lowDataRateOptimize(clampSpreadingFactor(c.SpreadingFactor), bandwidthHz(bandwidthIndex(c.Bandwidth)))
}

// SymbolPeriod returns the duration of one symbol, 2^SF / BW.
func (c RadioConfig) SymbolPeriod() time.Duration {
	if c.Bandwidth == 0 {
		return 0
	}
	sf := clampSpreadingFactor(c.SpreadingFactor)
	return time.Second * time.Duration(int64(1)<<uint(sf)) / time.Duration(c.Bandwidth)
}

// TimeOnAir estimates how long a packet with the given payload length takes to
// transmit (SX1276 datasheet section 4.1.1.7). The 4.25 symbol preamble
// overhead is rounded up to 5 so the estimate errs long.
func (c RadioConfig) TimeOnAir(payloadLength int) time.Duration {
	if c.Bandwidth == 0 {
		return 0
	}
	sf := int64(clampSpreadingFactor(c.SpreadingFactor))
	cr := int64(clampCodingRate(c.CodingRate) - 4)
	var crc, ih, ldr int64
	if c.CRC {
		crc = 1
	}
	if c.HeaderMode == HeaderImplicit {
		ih = 1
	}
	if c.LowDataRateOptimize() {
		ldr = 1
	}
	n := 8*int64(payloadLength) - 4*sf + 28 + 16*crc - 20*ih
	div := 4 * (sf - 2*ldr)
	if n < 0 || div <= 0 {
		n = 0
	} else {
		n = (n + div - 1) / div * (cr + 4)
	}
	n += 8 + int64(c.PreambleLength) + 5
	return time.Second * time.Duration(n<<uint(sf)) / time.Duration(c.Bandwidth)
}

// Options wires a Lora to its bus and pins.
type Options struct {
	// SPI is the connection to the radio. Every register access is a single
	// Tx on it, so the connection must frame each Tx with chip select.
	SPI spi.Conn
	// Port is closed by Close when set.
	Port spi.PortCloser
	// Reset is pulsed low by Begin when set.
	Reset gpio.PinOut
	// DIO0 is the radio's interrupt line. When set, asynchronous transmits
	// map TxDone onto it.
	DIO0 gpio.PinIn
	// Sink receives human readable diagnostics. Defaults to a LogrusSink on
	// Logger.
	Sink   Sink
	Logger *logrus.Entry
	// PollInterval is the delay between IRQ flag reads while waiting for a
	// transmission to finish and between ParsePacket calls in Receive.
	// Defaults to 1ms.
	PollInterval time.Duration
	// MaxPolls bounds the synchronous transmit wait. Zero waits forever.
	MaxPolls int
}

const defaultPollInterval = time.Millisecond
