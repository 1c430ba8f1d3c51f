package sxlora

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// LinkMetrics describes the quality of the last received packet.
type LinkMetrics struct {
	RSSI           int     // dBm
	SNR            float64 // dB
	FrequencyError int64   // Hz
}

// BeginPacket starts assembling a packet in the FIFO. It returns ErrBusy
// while a transmission is still in progress.
func (l *Lora) BeginPacket(implicitHeader bool) error {
	busy, err := l.isTransmitting()
	if err != nil {
		return err
	}
	if busy {
		return ErrBusy
	}

	if err := l.Idle(); err != nil {
		return err
	}

	if implicitHeader {
		err = l.ImplicitHeaderMode()
	} else {
		err = l.ExplicitHeaderMode()
	}
	if err != nil {
		return err
	}

	if err := l.WriteRegister(RegFifoAddrPtr, 0); err != nil {
		return err
	}
	return l.WriteRegister(RegPayloadLength, 0)
}

// Write appends p to the packet being assembled. Packets are at most
// MaxPktLength bytes; anything past that is dropped silently and Write
// returns the number of bytes kept.
func (l *Lora) Write(p []byte) (int, error) {
	current, err := l.ReadRegister(RegPayloadLength)
	if err != nil {
		return 0, err
	}

	n := len(p)
	if int(current)+n > MaxPktLength {
		n = MaxPktLength - int(current)
	}
	if n > 0 {
		// The chip advances FifoAddrPtr on every FIFO byte, so one burst
		// appends the whole slice.
		if err := l.WriteRegister(RegFifo, p[:n]...); err != nil {
			return 0, err
		}
		if err := l.WriteRegister(RegPayloadLength, current+byte(n)); err != nil {
			return 0, err
		}
	}
	if n < len(p) {
		l.log.WithFields(logrus.Fields{"kept": n, "dropped": len(p) - n}).Debug("packet truncated")
	}
	return n, nil
}

func (l *Lora) WriteByte(b byte) error {
	_, err := l.Write([]byte{b})
	return err
}

// EndPacket starts transmitting the assembled packet. With async set it
// returns as soon as the radio is in TX mode and, when a DIO0 pin is
// configured, DIO0 will rise on TxDone. Otherwise it polls the IRQ flags
// until TxDone, ctx is done or the configured MaxPolls is used up.
func (l *Lora) EndPacket(ctx context.Context, async bool) error {
	if async && l.dio0 != nil {
		if err := l.WriteRegister(RegDioMapping1, DioMappingTxDone); err != nil {
			return err
		}
	}

	if err := l.SetMode(ModeTx); err != nil {
		return err
	}

	if async {
		return nil
	}

	for polls := 0; ; polls++ {
		irq, err := l.ReadRegister(RegIrqFlags)
		if err != nil {
			return err
		}
		if irqFlags(irq).TxDone() {
			break
		}
		if l.maxPolls > 0 && polls >= l.maxPolls {
			l.log.WithField("polls", polls).Warn("tx done not observed")
			return ErrTxTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.sleep(l.pollInterval)
	}

	return l.WriteRegister(RegIrqFlags, IrqTxDoneMask)
}

// ParsePacket checks for a received packet and returns its length, or 0 if
// there is none yet, in which case it makes sure the radio is listening in
// single receive mode. size > 0 selects implicit header mode with that
// payload length.
//
// The IRQ flags read on entry are cleared before being looked at, so flags
// raised in between are dropped.
func (l *Lora) ParsePacket(size int) (int, error) {
	v, err := l.ReadRegister(RegIrqFlags)
	if err != nil {
		return 0, err
	}
	irq := irqFlags(v)

	if size > 0 {
		if err := l.ImplicitHeaderMode(); err != nil {
			return 0, err
		}
		if err := l.WriteRegister(RegPayloadLength, byte(size&0xff)); err != nil {
			return 0, err
		}
	} else {
		if err := l.ExplicitHeaderMode(); err != nil {
			return 0, err
		}
	}

	if err := l.WriteRegister(RegIrqFlags, v); err != nil {
		return 0, err
	}

	if irq.PacketReady() {
		l.packetIndex = 0

		lengthReg := RegRxNbBytes
		if l.cfg.HeaderMode == HeaderImplicit {
			lengthReg = RegPayloadLength
		}
		pl, err := l.ReadRegister(lengthReg)
		if err != nil {
			return 0, err
		}

		rxAddr, err := l.ReadRegister(RegFifoRxCurrentAddr)
		if err != nil {
			return 0, err
		}
		if err := l.WriteRegister(RegFifoAddrPtr, rxAddr); err != nil {
			return 0, err
		}

		if err := l.Idle(); err != nil {
			return 0, err
		}
		l.log.WithFields(logrus.Fields{"length": pl, "irq": irq}).Debug("packet received")
		return int(pl), nil
	}

	if irq.RxDone() {
		l.log.WithField("irq", irq).Debug("packet dropped on crc error")
	}

	op, err := l.ReadRegister(RegOpMode)
	if err != nil {
		return 0, err
	}
	if op != byte(ModeLongRange|ModeRxSingle) {
		if err := l.WriteRegister(RegFifoAddrPtr, 0); err != nil {
			return 0, err
		}
		if err := l.SetMode(ModeRxSingle); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// Available returns how many bytes of the current packet are left to read.
func (l *Lora) Available() (int, error) {
	n, err := l.ReadRegister(RegRxNbBytes)
	if err != nil {
		return 0, err
	}
	if left := int(n) - l.packetIndex; left > 0 {
		return left, nil
	}
	return 0, nil
}

// ReadByte returns the next byte of the current packet, or io.EOF once the
// packet is drained.
func (l *Lora) ReadByte() (byte, error) {
	n, err := l.Available()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	b, err := l.ReadRegister(RegFifo)
	if err != nil {
		return 0, err
	}
	l.packetIndex++
	return b, nil
}

// PeekByte returns the next byte of the current packet without consuming it.
func (l *Lora) PeekByte() (byte, error) {
	n, err := l.Available()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	addr, err := l.ReadRegister(RegFifoAddrPtr)
	if err != nil {
		return 0, err
	}
	b, err := l.ReadRegister(RegFifo)
	if err != nil {
		return 0, err
	}
	return b, l.WriteRegister(RegFifoAddrPtr, addr)
}

// Read fills p from the current packet. It returns io.EOF when the packet has
// nothing left.
func (l *Lora) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	left, err := l.Available()
	if err != nil {
		return 0, err
	}
	if left == 0 {
		return 0, io.EOF
	}
	if len(p) > left {
		p = p[:left]
	}
	for i := range p {
		b, err := l.ReadRegister(RegFifo)
		if err != nil {
			return i, err
		}
		p[i] = b
		l.packetIndex++
	}
	return len(p), nil
}

// Flush is a no-op; Write already hands every byte to the radio.
func (l *Lora) Flush() error { return nil }

// RSSI returns the last packet's RSSI in dBm.
func (l *Lora) RSSI() (int, error) {
	rssi, err := l.ReadRegister(RegPktRssiValue)
	if err != nil {
		return 0, err
	}
	return int(rssi) - rssiOffset(l.cfg.Frequency), nil
}

// CurrentRSSI returns the RSSI of the channel right now, in dBm.
func (l *Lora) CurrentRSSI() (int, error) {
	rssi, err := l.ReadRegister(RegRssiValue)
	if err != nil {
		return 0, err
	}
	return int(rssi) - rssiOffset(l.cfg.Frequency), nil
}

// SNR returns the last packet's signal to noise ratio in dB.
func (l *Lora) SNR() (float64, error) {
	snr, err := l.ReadRegister(RegPktSnrValue)
	if err != nil {
		return 0, err
	}
	return snrFromRaw(snr), nil
}

// FrequencyError returns the last packet's carrier offset in Hz.
func (l *Lora) FrequencyError() (int64, error) {
	fe, err := l.ReadRegisterBytes(RegFreqErrorMsb, 3)
	if err != nil {
		return 0, err
	}
	mc1, err := l.ReadRegister(RegModemConfig1)
	if err != nil {
		return 0, err
	}
	bw := bandwidthHz(modemConfig1(mc1).Bandwidth())
	return frequencyErrorFromRaw(fe[0], fe[1], fe[2], bw), nil
}

// Metrics reads RSSI, SNR and frequency error of the last packet.
func (l *Lora) Metrics() (LinkMetrics, error) {
	var m LinkMetrics
	var err error
	if m.RSSI, err = l.RSSI(); err != nil {
		return m, err
	}
	if m.SNR, err = l.SNR(); err != nil {
		return m, err
	}
	m.FrequencyError, err = l.FrequencyError()
	return m, err
}

// Random returns the wideband RSSI, whose low bits are noise while the radio
// is receiving.
func (l *Lora) Random() (byte, error) {
	return l.ReadRegister(RegRssiWideBand)
}

// DumpRegisters writes registers 0x00 to 0x7f to the diagnostics sink, one
// line each.
func (l *Lora) DumpRegisters() error {
	for i := 0; i < registerSpaceLength; i++ {
		v, err := l.ReadRegister(Register(i))
		if err != nil {
			return err
		}
		l.sink.Printf("0x%02x: 0x%02x", i, v)
	}
	return nil
}
