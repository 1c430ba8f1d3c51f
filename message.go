package sxlora

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one received packet with its link quality.
type Message struct {
	Data           []byte
	RSSI           int
	SNR            float64
	FrequencyError int64
}

// Transmit sends bytes as one explicit header packet and waits until the
// radio reports TxDone.
func (l *Lora) Transmit(ctx context.Context, bytes []byte) error {
	if err := l.loadPacket(bytes); err != nil {
		return err
	}
	return l.EndPacket(ctx, false)
}

// TransmitAsync starts sending bytes and returns immediately. Completion can
// be awaited with WaitForInterrupt when DIO0 is wired; otherwise the next
// BeginPacket reports ErrBusy until the radio is done.
func (l *Lora) TransmitAsync(bytes []byte) error {
	if err := l.loadPacket(bytes); err != nil {
		return err
	}
	return l.EndPacket(context.Background(), true)
}

func (l *Lora) loadPacket(bytes []byte) error {
	if err := l.BeginPacket(false); err != nil {
		return err
	}
	n, err := l.Write(bytes)
	if err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{
		"length":  n,
		"airtime": l.cfg.TimeOnAir(n),
	}).Debug("transmit")
	return nil
}

// WaitForInterrupt waits up to timeout for a rising edge on DIO0. A negative
// timeout waits forever.
func (l *Lora) WaitForInterrupt(timeout time.Duration) error {
	if l.dio0 == nil {
		return ErrNoDIO0
	}
	if !l.dio0.WaitForEdge(timeout) {
		return ErrDIO0Timeout
	}
	return nil
}

// GetMessage drains the packet ParsePacket announced and reads its link
// metrics.
func (l *Lora) GetMessage() (*Message, error) {
	n, err := l.Available()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		n, err = l.Read(b)
		if err != nil {
			return nil, err
		}
	}

	m, err := l.Metrics()
	if err != nil {
		return nil, err
	}

	return &Message{
		Data:           b[:n],
		RSSI:           m.RSSI,
		SNR:            m.SNR,
		FrequencyError: m.FrequencyError,
	}, nil
}

// Receive polls for packets in explicit header mode and delivers them to msg
// until ctx is done. The radio is left in standby.
func (l *Lora) Receive(ctx context.Context, msg chan<- *Message) error {
	defer l.Idle()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := l.ParsePacket(0)
		if err != nil {
			return err
		}
		if n == 0 {
			l.sleep(l.pollInterval)
			continue
		}

		m, err := l.GetMessage()
		if err != nil {
			return err
		}
		l.sink.Hex("rx", m.Data)

		select {
		case msg <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
