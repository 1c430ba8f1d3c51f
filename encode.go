package sxlora

// Conversions between physical units and register encodings. None of these
// touch the bus.

// frequencyToFrf returns the 24-bit synthesizer word for a carrier frequency.
func frequencyToFrf(hz uint32) uint32 {
	return uint32((uint64(hz) << 19) / 32000000)
}

// frfToFrequency is the inverse of frequencyToFrf, rounded down.
func frfToFrequency(frf uint32) uint32 {
	return uint32((uint64(frf) * 32000000) >> 19)
}

func clampSpreadingFactor(sf int) int {
	if sf < 6 {
		return 6
	} else if sf > 12 {
		return 12
	}
	return sf
}

// detectionSettings returns the DetectionOptimize and DetectionThreshold
// values for a spreading factor. SF6 needs its own pair.
func detectionSettings(sf int) (optimize, threshold byte) {
	if sf == 6 {
		return detectOptimizeSF6, detectThresholdSF6
	}
	return detectOptimizeSFN, detectThresholdSFN
}

// bandwidthIndex returns the smallest index whose bound is at least hz.
// Anything above 250 kHz lands in the 500 kHz bucket.
func bandwidthIndex(hz uint32) uint8 {
	for i, bound := range bandwidths[:len(bandwidths)-1] {
		if hz <= bound {
			return uint8(i)
		}
	}
	return uint8(len(bandwidths) - 1)
}

// bandwidthHz returns 0 for reserved indices.
func bandwidthHz(index uint8) uint32 {
	if int(index) >= len(bandwidths) {
		return 0
	}
	return bandwidths[index]
}

func clampCodingRate(denominator int) int {
	if denominator < 5 {
		return 5
	} else if denominator > 8 {
		return 8
	}
	return denominator
}

// lowDataRateOptimize reports whether a symbol lasts longer than 16ms.
// 1000*2^SF/kHz is the symbol duration in microseconds, so the threshold is
// 16000, not 16. Bandwidths are truncated to whole kHz first.
func lowDataRateOptimize(sf int, bwHz uint32) bool {
	bwKHz := bwHz / 1000
	if bwKHz == 0 {
		return false
	}
	symbolMicros := (1000 * (uint32(1) << uint(sf))) / bwKHz
	return symbolMicros > 16000
}

// ocpTrim encodes a current limit in mA. Imax = 45+5*trim up to 120 mA and
// -30+10*trim up to 240 mA.
func ocpTrim(mA uint8) byte {
	if mA < 45 {
		mA = 45
	}
	switch {
	case mA <= 120:
		return (mA - 45) / 5
	case mA <= 240:
		return byte((uint16(mA) + 30) / 10)
	default:
		return ocpMaxTrim
	}
}

// powerSettings holds the register writes for one output power request.
type powerSettings struct {
	paConfig byte
	paDac    byte
	ocp      uint8 // mA
	boost    bool  // paDac and ocp only apply on PA_BOOST
	level    int   // clamped level as requested, in dBm
}

func txPowerSettings(level int, out PAOutput) powerSettings {
	if out == PAOutputRFO {
		if level < 0 {
			level = 0
		} else if level > 14 {
			level = 14
		}
		return powerSettings{paConfig: paRFOBase | byte(level), level: level}
	}
	s := powerSettings{boost: true}
	if level > 17 {
		if level > 20 {
			level = 20
		}
		s.level = level
		// 18-20 dBm use the +20 dBm PA DAC setting with 15-17 in PaConfig.
		level -= 3
		s.paDac = paDacHighPower
		s.ocp = 140
	} else {
		if level < 2 {
			level = 2
		}
		s.level = level
		s.paDac = paDacDefault
		s.ocp = 100
	}
	s.paConfig = paBoostBit | byte(level-2)
	return s
}

// rssiOffset picks the port offset by carrier frequency.
func rssiOffset(frequency uint32) int {
	if frequency < RfMidBandThreshold {
		return RssiOffsetLfPort
	}
	return RssiOffsetHfPort
}

func snrFromRaw(raw byte) float64 {
	return float64(int8(raw)) * 0.25
}

// frequencyErrorFromRaw converts the 20-bit FreqError registers to Hz.
// Bit 3 of msb is the sign.
func frequencyErrorFromRaw(msb, mid, lsb byte, bwHz uint32) int64 {
	raw := int32(msb&0x07)<<16 | int32(mid)<<8 | int32(lsb)
	if msb&0x08 != 0 {
		raw -= 1 << 19
	}
	fError := float64(raw) * float64(1<<24) / fXOSC
	return int64(fError * (float64(bwHz) / 500000.0))
}
