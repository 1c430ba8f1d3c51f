package sxlora

import "fmt"

// ReadRegister reads one register. The address goes out with the write bit
// clear, followed by a dummy byte clocking the value in.
func (l *Lora) ReadRegister(reg Register) (byte, error) {
	w := [2]byte{byte(reg) &^ spiWriteBit, 0x00}
	var r [2]byte
	if err := l.spi.Tx(w[:], r[:]); err != nil {
		return 0, fmt.Errorf("read register 0x%02x: %w", byte(reg), err)
	}
	return r[1], nil
}

// ReadRegisterBytes burst-reads number bytes starting at reg in a single
// chip select frame. Reading RegFifo returns consecutive FIFO bytes.
func (l *Lora) ReadRegisterBytes(reg Register, number int) ([]byte, error) {
	w := make([]byte, number+1)
	w[0] = byte(reg) &^ spiWriteBit
	read := make([]byte, len(w))
	if err := l.spi.Tx(w, read); err != nil {
		return nil, fmt.Errorf("burst read register 0x%02x: %w", byte(reg), err)
	}
	return read[1:], nil
}

// WriteRegister writes bytes starting at reg in a single chip select frame.
// More than one byte makes it a burst write.
func (l *Lora) WriteRegister(reg Register, bytes ...byte) error {
	w := append([]byte{byte(reg) | spiWriteBit}, bytes...)
	if err := l.spi.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("write register 0x%02x: %w", byte(reg), err)
	}
	return nil
}

// modifyRegister reads reg, passes the value through fn and writes the result
// back.
func (l *Lora) modifyRegister(reg Register, fn func(byte) byte) error {
	v, err := l.ReadRegister(reg)
	if err != nil {
		return err
	}
	return l.WriteRegister(reg, fn(v))
}
