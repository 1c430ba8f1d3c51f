package sxlora

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Sink receives human readable diagnostics. Implementations must not fail
// loudly: the driver ignores whatever happens to the text.
type Sink interface {
	Printf(format string, args ...interface{})
	Hex(prefix string, data []byte)
}

// LogrusSink writes diagnostics as logrus entries at Debug level.
type LogrusSink struct {
	Entry *logrus.Entry
}

func (s LogrusSink) Printf(format string, args ...interface{}) {
	s.Entry.Debugf(format, args...)
}

func (s LogrusSink) Hex(prefix string, data []byte) {
	s.Entry.WithField("hex", hex.EncodeToString(data)).Debug(prefix)
}

// WriterSink writes one line per diagnostic to W, prefixed with "[lora] ".
// Write errors are dropped.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	_, _ = io.WriteString(s.W, "[lora] "+strings.TrimRight(line, "\n")+"\n")
}

func (s WriterSink) Hex(prefix string, data []byte) {
	if len(data) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("[lora] ")
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	b.WriteString(hex.EncodeToString(data))
	b.WriteByte('\n')
	_, _ = io.WriteString(s.W, b.String())
}

// SerialSink is a WriterSink on a UART.
type SerialSink struct {
	WriterSink
	port serial.Port
}

// OpenSerialSink opens a serial port, 8N1 at the given baud rate, for
// diagnostics.
func OpenSerialSink(portName string, baud int) (*SerialSink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial sink %s: %w", portName, err)
	}
	return &SerialSink{WriterSink: WriterSink{W: port}, port: port}, nil
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}

type discardSink struct{}

func (discardSink) Printf(string, ...interface{}) {}
func (discardSink) Hex(string, []byte)            {}

// DiscardSink drops all diagnostics.
var DiscardSink Sink = discardSink{}
