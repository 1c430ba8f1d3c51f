package sxlora

import "fmt"

// Several logical parameters share one physical register. Each such register
// gets a byte type whose methods read one field and return a copy with one
// field replaced, leaving every sibling bit as it was.

// opMode is RegOpMode: LongRangeMode (bit 7) and Mode (bits 2-0).
type opMode byte

func (o opMode) LongRange() bool { return o&opMode(ModeLongRange) != 0 }
func (o opMode) Mode() Mode      { return Mode(o & 0x07) }

// Transmitting reports whether the TX bits are both set. CAD also matches.
func (o opMode) Transmitting() bool { return Mode(o)&ModeTx == ModeTx }

func (o opMode) String() string {
	return fmt.Sprintf("lora=%t mode=%s", o.LongRange(), o.Mode())
}

// modemConfig1 is RegModemConfig1: Bw (7-4), CodingRate (3-1),
// ImplicitHeaderModeOn (0).
type modemConfig1 byte

func (m modemConfig1) Bandwidth() uint8 { return uint8(m >> 4) }

func (m modemConfig1) WithBandwidth(index uint8) modemConfig1 {
	return m&0x0f | modemConfig1(index<<4)
}

// CodingRate returns the raw field, the coding rate denominator minus 4.
func (m modemConfig1) CodingRate() uint8 { return uint8(m>>1) & 0x07 }

func (m modemConfig1) WithCodingRate(cr uint8) modemConfig1 {
	return m&0xf1 | modemConfig1(cr&0x07)<<1
}

func (m modemConfig1) HeaderMode() HeaderMode { return HeaderMode(m & 0x01) }

func (m modemConfig1) WithHeaderMode(h HeaderMode) modemConfig1 {
	if h == HeaderImplicit {
		return m | 0x01
	}
	return m &^ 0x01
}

// modemConfig2 is RegModemConfig2: SpreadingFactor (7-4), TxContinuousMode (3),
// RxPayloadCrcOn (2), SymbTimeout MSB (1-0).
type modemConfig2 byte

func (m modemConfig2) SpreadingFactor() uint8 { return uint8(m >> 4) }

func (m modemConfig2) WithSpreadingFactor(sf uint8) modemConfig2 {
	return m&0x0f | modemConfig2(sf<<4)
}

func (m modemConfig2) CRC() bool { return m&0x04 != 0 }

func (m modemConfig2) WithCRC(on bool) modemConfig2 {
	if on {
		return m | 0x04
	}
	return m &^ 0x04
}

// modemConfig3 is RegModemConfig3: LowDataRateOptimize (3), AgcAutoOn (2).
type modemConfig3 byte

func (m modemConfig3) LowDataRateOptimize() bool { return m&0x08 != 0 }

func (m modemConfig3) WithLowDataRateOptimize(on bool) modemConfig3 {
	if on {
		return m | 0x08
	}
	return m &^ 0x08
}

func (m modemConfig3) AutoAGC() bool { return m&0x04 != 0 }

func (m modemConfig3) WithAutoAGC(on bool) modemConfig3 {
	if on {
		return m | 0x04
	}
	return m &^ 0x04
}

// lna is RegLna: LnaGain (7-5), LnaBoostLf (4-3), LnaBoostHf (1-0).
type lna byte

func (l lna) WithBoostHF(on bool) lna {
	if on {
		return l | lna(lnaBoostHF)
	}
	return l &^ lna(lnaBoostHF)
}

// irqFlags is RegIrqFlags. Bits are cleared by writing 1.
type irqFlags byte

func (f irqFlags) TxDone() bool   { return byte(f)&IrqTxDoneMask != 0 }
func (f irqFlags) RxDone() bool   { return byte(f)&IrqRxDoneMask != 0 }
func (f irqFlags) CRCError() bool { return byte(f)&IrqPayloadCrcErrorMask != 0 }

// PacketReady reports a received packet that passed its CRC check.
func (f irqFlags) PacketReady() bool { return f.RxDone() && !f.CRCError() }

func (f irqFlags) String() string {
	return fmt.Sprintf("0x%02x(rxdone=%t crcerr=%t txdone=%t)", byte(f), f.RxDone(), f.CRCError(), f.TxDone())
}
