package sxlora

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

// fakeChip is a SX127x register file behind an spi.Conn. It models burst
// address auto-increment, the FIFO address pointer, write-1-to-clear IRQ flags
// and, when completeTx is set, a transmission that finishes instantly.
type fakeChip struct {
	mu         sync.Mutex
	regs       [registerSpaceLength]byte
	fifo       [fifoSize]byte
	ops        []op
	completeTx bool
	err        error
}

var errTest = errors.New("fakechip: bus fault")

type op struct {
	write bool
	reg   Register
	val   byte
}

func newFakeChip() *fakeChip {
	f := &fakeChip{completeTx: true}
	// Reset values from the datasheet.
	f.regs[RegOpMode] = 0x09
	f.regs[RegLna] = 0x20
	f.regs[RegModemConfig1] = 0x72
	f.regs[RegModemConfig2] = 0x70
	f.regs[RegPreambleLsb] = 0x08
	f.regs[RegPayloadLength] = 0x01
	f.regs[RegSyncWord] = 0x12
	f.regs[RegVersion] = ChipVersion
	return f
}

func (f *fakeChip) String() string      { return "fakechip" }
func (f *fakeChip) Duplex() conn.Duplex { return conn.Full }

func (f *fakeChip) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := f.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeChip) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if len(w) < 2 {
		return errors.New("fakechip: frame too short")
	}
	write := w[0]&spiWriteBit != 0
	reg := Register(w[0] &^ spiWriteBit)
	for i := 1; i < len(w); i++ {
		if write {
			f.ops = append(f.ops, op{write: true, reg: reg, val: w[i]})
			f.store(reg, w[i])
		} else {
			v := f.load(reg)
			f.ops = append(f.ops, op{reg: reg, val: v})
			if i < len(r) {
				r[i] = v
			}
		}
		if reg != RegFifo {
			reg++
		}
	}
	return nil
}

func (f *fakeChip) store(reg Register, v byte) {
	switch reg {
	case RegFifo:
		f.fifo[f.regs[RegFifoAddrPtr]] = v
		f.regs[RegFifoAddrPtr]++
	case RegIrqFlags:
		f.regs[RegIrqFlags] &^= v
	case RegOpMode:
		f.regs[RegOpMode] = v
		if f.completeTx && opMode(v).Mode() == ModeTx {
			f.regs[RegIrqFlags] |= IrqTxDoneMask
			f.regs[RegOpMode] = byte(ModeLongRange | ModeStandby)
		}
	case RegVersion:
	default:
		f.regs[reg] = v
	}
}

func (f *fakeChip) load(reg Register) byte {
	if reg == RegFifo {
		v := f.fifo[f.regs[RegFifoAddrPtr]]
		f.regs[RegFifoAddrPtr]++
		return v
	}
	return f.regs[reg]
}

// receive places payload in the FIFO at addr as a packet that just arrived.
func (f *fakeChip) receive(addr byte, payload []byte, irq byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range payload {
		f.fifo[addr+byte(i)] = b
	}
	f.regs[RegFifoRxCurrentAddr] = addr
	f.regs[RegRxNbBytes] = byte(len(payload))
	f.regs[RegIrqFlags] |= irq
}

func (f *fakeChip) reg(r Register) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[r]
}

func (f *fakeChip) set(r Register, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[r] = v
}

// writes returns the values written to reg, oldest first.
func (f *fakeChip) writes(reg Register) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, o := range f.ops {
		if o.write && o.reg == reg {
			out = append(out, o.val)
		}
	}
	return out
}

func (f *fakeChip) resetOps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
}

func (f *fakeChip) opLog() []op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]op(nil), f.ops...)
}

// newTestLora returns a driver on a fake chip with its reset pin, logging to
// a test hook.
func newTestLora(t testing.TB) (*Lora, *fakeChip, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	chip := newFakeChip()
	l := New(Options{
		SPI:          chip,
		Reset:        &gpiotest.Pin{N: "RST"},
		Logger:       logrus.NewEntry(logger),
		PollInterval: time.Microsecond,
	})
	l.sleep = func(time.Duration) {}
	return l, chip, hook
}

// newBegunLora is newTestLora after a successful Begin at 915 MHz.
func newBegunLora(t testing.TB) (*Lora, *fakeChip) {
	t.Helper()
	l, chip, _ := newTestLora(t)
	if err := l.Begin(915e6); err != nil {
		t.Fatalf("begin: %v", err)
	}
	chip.resetOps()
	return l, chip
}
