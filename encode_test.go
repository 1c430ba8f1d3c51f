package sxlora

import (
	"math"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestFrequencyToFrf(t *testing.T) {
	c := qt.New(t)
	for _, f := range []uint32{137e6, 169400000, 433050000, 433e6, 868100000, 868e6, 915e6, 923300000, 1020e6} {
		want := uint32(uint64(f) * (1 << 19) / 32000000)
		c.Assert(frequencyToFrf(f), qt.Equals, want, qt.Commentf("f=%d", f))
		// One synthesizer step is 61.035 Hz.
		c.Assert(f-frfToFrequency(frequencyToFrf(f)) < 62, qt.IsTrue, qt.Commentf("f=%d", f))
	}
	c.Assert(frequencyToFrf(915e6), qt.Equals, uint32(0xe4c000))
	c.Assert(frequencyToFrf(433e6), qt.Equals, uint32(0x6c4000))
}

func TestBandwidthIndex(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		hz   uint32
		want uint8
	}{
		{0, 0},
		{7800, 0},
		{7801, 1},
		{10400, 1},
		{15000, 2},
		{20800, 3},
		{31250, 4},
		{41700, 5},
		{41701, 6},
		{62500, 6},
		{100000, 7},
		{125000, 7},
		{125001, 8},
		{250000, 8},
		{250001, 9},
		{500000, 9},
		{2000000, 9},
	} {
		c.Assert(bandwidthIndex(tc.hz), qt.Equals, tc.want, qt.Commentf("hz=%d", tc.hz))
	}
	for i, bound := range bandwidths {
		c.Assert(bandwidthIndex(bound), qt.Equals, uint8(i))
		c.Assert(bandwidthHz(uint8(i)), qt.Equals, bound)
	}
	c.Assert(bandwidthHz(10), qt.Equals, uint32(0))
}

func TestClamps(t *testing.T) {
	c := qt.New(t)
	for sf := 4; sf <= 14; sf++ {
		got := clampSpreadingFactor(sf)
		c.Assert(got >= 6 && got <= 12, qt.IsTrue)
		if sf >= 6 && sf <= 12 {
			c.Assert(got, qt.Equals, sf)
		}
	}
	c.Assert(clampCodingRate(1), qt.Equals, 5)
	c.Assert(clampCodingRate(7), qt.Equals, 7)
	c.Assert(clampCodingRate(9), qt.Equals, 8)
}

func TestDetectionSettings(t *testing.T) {
	c := qt.New(t)
	opt, thr := detectionSettings(6)
	c.Assert([]byte{opt, thr}, qt.DeepEquals, []byte{0xc5, 0x0c})
	for sf := 7; sf <= 12; sf++ {
		opt, thr := detectionSettings(sf)
		c.Assert([]byte{opt, thr}, qt.DeepEquals, []byte{0xc3, 0x0a})
	}
}

func TestLowDataRateOptimize(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		sf   int
		bw   uint32
		want bool
	}{
		{7, 125000, false},
		{10, 125000, false},
		{11, 125000, true},
		{12, 125000, true},
		{11, 250000, false},
		{12, 250000, true},
		{12, 500000, false},
		{6, 7800, false},
		{7, 7800, true},
		{9, 62500, false},
		{10, 62500, true},
		{7, 0, false},
	} {
		c.Assert(lowDataRateOptimize(tc.sf, tc.bw), qt.Equals, tc.want, qt.Commentf("sf=%d bw=%d", tc.sf, tc.bw))
	}
}

func TestOCPTrim(t *testing.T) {
	c := qt.New(t)
	c.Assert(ocpTrim(100), qt.Equals, byte(11))
	c.Assert(ocpTrim(140), qt.Equals, byte(17))
	c.Assert(ocpTrim(45), qt.Equals, byte(0))
	c.Assert(ocpTrim(10), qt.Equals, byte(0))
	c.Assert(ocpTrim(240), qt.Equals, byte(27))
	c.Assert(ocpTrim(255), qt.Equals, byte(27))

	for imax := 45; imax <= 240; imax++ {
		trim := ocpTrim(uint8(imax))
		c.Assert(trim <= 27, qt.IsTrue)
		var gotImax float64
		switch {
		case trim <= 15:
			gotImax = 45.0 + 5.0*float64(trim)
		default:
			gotImax = -30.0 + 10.0*float64(trim)
		}
		if diff := math.Abs(gotImax - float64(imax)); diff > 11 {
			t.Errorf("wanted %d, got %f", imax, gotImax)
		}
	}
}

func TestTxPowerSettings(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		level int
		out   PAOutput
		want  powerSettings
	}{
		{25, PAOutputRFO, powerSettings{paConfig: 0x7e, level: 14}},
		{-3, PAOutputRFO, powerSettings{paConfig: 0x70, level: 0}},
		{10, PAOutputRFO, powerSettings{paConfig: 0x7a, level: 10}},
		{20, PAOutputPABoost, powerSettings{paConfig: 0x8f, paDac: 0x87, ocp: 140, boost: true, level: 20}},
		{18, PAOutputPABoost, powerSettings{paConfig: 0x8d, paDac: 0x87, ocp: 140, boost: true, level: 18}},
		{30, PAOutputPABoost, powerSettings{paConfig: 0x8f, paDac: 0x87, ocp: 140, boost: true, level: 20}},
		{17, PAOutputPABoost, powerSettings{paConfig: 0x8f, paDac: 0x84, ocp: 100, boost: true, level: 17}},
		{2, PAOutputPABoost, powerSettings{paConfig: 0x80, paDac: 0x84, ocp: 100, boost: true, level: 2}},
		{-5, PAOutputPABoost, powerSettings{paConfig: 0x80, paDac: 0x84, ocp: 100, boost: true, level: 2}},
	} {
		c.Assert(txPowerSettings(tc.level, tc.out), qt.Equals, tc.want, qt.Commentf("level=%d out=%s", tc.level, tc.out))
	}
}

func TestRssiOffset(t *testing.T) {
	c := qt.New(t)
	c.Assert(rssiOffset(433e6), qt.Equals, 164)
	c.Assert(rssiOffset(867999999), qt.Equals, 164)
	c.Assert(rssiOffset(868e6), qt.Equals, 157)
	c.Assert(rssiOffset(915e6), qt.Equals, 157)
}

func TestSNRFromRaw(t *testing.T) {
	c := qt.New(t)
	c.Assert(snrFromRaw(0x28), qt.Equals, 10.0)
	c.Assert(snrFromRaw(0xf0), qt.Equals, -4.0)
	c.Assert(snrFromRaw(0x80), qt.Equals, -32.0)
}

func TestFrequencyErrorFromRaw(t *testing.T) {
	c := qt.New(t)
	// 4096 * 2^24 / 32e6 = 2147.48 Hz at 500 kHz.
	c.Assert(frequencyErrorFromRaw(0x00, 0x10, 0x00, 500000), qt.Equals, int64(2147))
	c.Assert(frequencyErrorFromRaw(0x00, 0x10, 0x00, 125000), qt.Equals, int64(536))
	// Sign bit alone is -2^19.
	c.Assert(frequencyErrorFromRaw(0x08, 0x00, 0x00, 125000), qt.Equals, int64(-68719))
	// All ones is -1.
	c.Assert(frequencyErrorFromRaw(0x0f, 0xff, 0xff, 500000), qt.Equals, int64(0))
	// Bits above the sign bit are ignored.
	c.Assert(frequencyErrorFromRaw(0xf0, 0x10, 0x00, 500000), qt.Equals, int64(2147))
}

func TestTimeOnAir(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		desc     string
		cfg      RadioConfig
		plen     int
		expected time.Duration
	}{
		{
			// 16.25 preamble + 358 payload symbols of 1.024ms.
			desc: "240 bytes SF7 125kHz",
			cfg: RadioConfig{
				Bandwidth:       125000,
				SpreadingFactor: 7,
				CodingRate:      5,
				CRC:             true,
				PreambleLength:  12,
			},
			plen:     240,
			expected: 383232 * time.Microsecond,
		},
		{
			// 16.25 preamble + 28 payload symbols of 256us.
			desc: "10 bytes SF7 500kHz",
			cfg: RadioConfig{
				Bandwidth:       500000,
				SpreadingFactor: 7,
				CodingRate:      5,
				CRC:             true,
				PreambleLength:  12,
			},
			plen:     10,
			expected: 11328 * time.Microsecond,
		},
	} {
		got := tc.cfg.TimeOnAir(tc.plen)
		expect := tc.expected.Seconds()
		c.Assert(math.Abs(got.Seconds()-expect) <= expect/10, qt.IsTrue, qt.Commentf("%s: got %s", tc.desc, got))
	}
	c.Assert(RadioConfig{}.TimeOnAir(10), qt.Equals, time.Duration(0))
}

func TestSymbolPeriod(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	c.Assert(cfg.SymbolPeriod(), qt.Equals, 1024*time.Microsecond)
	cfg.SpreadingFactor = 12
	c.Assert(cfg.SymbolPeriod(), qt.Equals, 32768*time.Microsecond)
	c.Assert(cfg.LowDataRateOptimize(), qt.IsTrue)
}

func TestRegisterFields(t *testing.T) {
	c := qt.New(t)

	mc1 := modemConfig1(0x0b) // coding rate field 5, implicit header
	mc1 = mc1.WithBandwidth(9)
	c.Assert(byte(mc1), qt.Equals, byte(0x9b))
	c.Assert(mc1.CodingRate(), qt.Equals, uint8(5))
	c.Assert(mc1.HeaderMode(), qt.Equals, HeaderImplicit)
	mc1 = mc1.WithCodingRate(1).WithHeaderMode(HeaderExplicit)
	c.Assert(byte(mc1), qt.Equals, byte(0x92))

	mc2 := modemConfig2(0x0f).WithSpreadingFactor(12)
	c.Assert(byte(mc2), qt.Equals, byte(0xcf))
	c.Assert(mc2.WithCRC(false).SpreadingFactor(), qt.Equals, uint8(12))
	c.Assert(byte(mc2.WithCRC(false)), qt.Equals, byte(0xcb))

	mc3 := modemConfig3(0x04).WithLowDataRateOptimize(true)
	c.Assert(byte(mc3), qt.Equals, byte(0x0c))
	c.Assert(mc3.AutoAGC(), qt.IsTrue)
	c.Assert(byte(mc3.WithLowDataRateOptimize(false)), qt.Equals, byte(0x04))

	c.Assert(opMode(0x83).Transmitting(), qt.IsTrue)
	c.Assert(opMode(0x87).Transmitting(), qt.IsTrue)
	c.Assert(opMode(0x85).Transmitting(), qt.IsFalse)
	c.Assert(opMode(0x86).Mode(), qt.Equals, ModeRxSingle)

	c.Assert(irqFlags(0x40).PacketReady(), qt.IsTrue)
	c.Assert(irqFlags(0x60).PacketReady(), qt.IsFalse)
	c.Assert(byte(lna(0x20).WithBoostHF(true)), qt.Equals, byte(0x23))
}
