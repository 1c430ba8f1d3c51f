package sxlora

// Mode is an operating mode of the LoRa modem. It is always written to
// RegOpMode combined with ModeLongRange.
type Mode byte

// Register is a SX127x register address.
type Register byte

// PAOutput selects the power amplifier output pin.
type PAOutput byte

// HeaderMode selects whether the payload length, coding rate and CRC
// presence are carried in the packet header.
type HeaderMode byte

const (
	RegFifo               Register = 0x00
	RegOpMode             Register = 0x01
	RegFrfMsb             Register = 0x06
	RegFrfMid             Register = 0x07
	RegFrfLsb             Register = 0x08
	RegPaConfig           Register = 0x09
	RegOcp                Register = 0x0b
	RegLna                Register = 0x0c
	RegFifoAddrPtr        Register = 0x0d
	RegFifoTxBaseAddr     Register = 0x0e
	RegFifoRxBaseAddr     Register = 0x0f
	RegFifoRxCurrentAddr  Register = 0x10
	RegIrqFlags           Register = 0x12
	RegRxNbBytes          Register = 0x13
	RegPktSnrValue        Register = 0x19
	RegPktRssiValue       Register = 0x1a
	RegRssiValue          Register = 0x1b
	RegModemConfig1       Register = 0x1d
	RegModemConfig2       Register = 0x1e
	RegPreambleMsb        Register = 0x20
	RegPreambleLsb        Register = 0x21
	RegPayloadLength      Register = 0x22
	RegModemConfig3       Register = 0x26
	RegFreqErrorMsb       Register = 0x28
	RegFreqErrorMid       Register = 0x29
	RegFreqErrorLsb       Register = 0x2a
	RegRssiWideBand       Register = 0x2c
	RegDetectionOptimize  Register = 0x31
	RegInvertIQ           Register = 0x33
	RegDetectionThreshold Register = 0x37
	RegSyncWord           Register = 0x39
	RegInvertIQ2          Register = 0x3b
	RegDioMapping1        Register = 0x40
	RegVersion            Register = 0x42
	RegPaDac              Register = 0x4d
)

const (
	ModeLongRange    Mode = 0x80
	ModeSleep        Mode = 0x00
	ModeStandby      Mode = 0x01
	ModeTx           Mode = 0x03
	ModeRxContinuous Mode = 0x05
	ModeRxSingle     Mode = 0x06
	ModeCAD          Mode = 0x07
)

const (
	PAOutputRFO     PAOutput = 0
	PAOutputPABoost PAOutput = 1
)

const (
	HeaderExplicit HeaderMode = 0
	HeaderImplicit HeaderMode = 1
)

const (
	IrqTxDoneMask          byte = 0x08
	IrqPayloadCrcErrorMask byte = 0x20
	IrqRxDoneMask          byte = 0x40

	// DIO0 mapped to TxDone.
	DioMappingTxDone byte = 0x40

	ChipVersion  byte = 0x12
	MaxPktLength      = 255

	// RSSI offsets from the datasheet, section 5.5.5.
	RssiOffsetHfPort   = 157
	RssiOffsetLfPort   = 164
	RfMidBandThreshold = 868e6

	fXOSC = 32e6
)

// Fixed register values.
const (
	paBoostBit       byte = 0x80
	paRFOBase        byte = 0x70
	paDacDefault     byte = 0x84
	paDacHighPower   byte = 0x87
	ocpEnableBit     byte = 0x20
	ocpMaxTrim       byte = 27
	lnaBoostHF       byte = 0x03
	modemConfig3Init byte = 0x04 // AGC auto on

	detectOptimizeSF6   byte = 0xc5
	detectThresholdSF6  byte = 0x0c
	detectOptimizeSFN   byte = 0xc3
	detectThresholdSFN  byte = 0x0a
	invertIQOn          byte = 0x66
	invertIQ2On         byte = 0x19
	invertIQOff         byte = 0x27
	invertIQ2Off        byte = 0x1d
	spiWriteBit         byte = 0x80
	fifoSize                 = 256
	registerSpaceLength      = 128
)

// bandwidths lists the upper bound in Hz of each bandwidth register index.
var bandwidths = [...]uint32{
	7800,
	10400,
	15600,
	20800,
	31250,
	41700,
	62500,
	125000,
	250000,
	500000,
}

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "sleep"
	case ModeStandby:
		return "standby"
	case ModeTx:
		return "tx"
	case ModeRxContinuous:
		return "rx-continuous"
	case ModeRxSingle:
		return "rx-single"
	case ModeCAD:
		return "cad"
	}
	return "unknown"
}

func (h HeaderMode) String() string {
	if h == HeaderImplicit {
		return "implicit"
	}
	return "explicit"
}

func (p PAOutput) String() string {
	if p == PAOutputRFO {
		return "rfo"
	}
	return "pa-boost"
}
