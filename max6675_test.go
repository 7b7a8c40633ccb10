package btprobe

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeOutputLine struct {
	level   bool
	history []bool
}

func (l *fakeOutputLine) High() {
	l.level = true
	l.history = append(l.history, true)
}

func (l *fakeOutputLine) Low() {
	l.level = false
	l.history = append(l.history, false)
}

type fakeInputLine struct {
	bits []bool
	pos  int
}

func (l *fakeInputLine) Read() bool {
	if l.pos >= len(l.bits) {
		return false
	}
	b := l.bits[l.pos]
	l.pos++
	return b
}

// frameBits encodes a 16-bit converter frame as the bit sequence sampled
// during a read: 12 temperature bits MSB-first, the fault bit, two padding
// bits
func frameBits(code uint16, fault bool) []bool {
	bits := make([]bool, 0, 16)
	for i := frameDataBits - 1; i >= 0; i-- {
		bits = append(bits, code&(1<<i) != 0)
	}
	bits = append(bits, fault, false, false)
	return bits
}

type testRig struct {
	sensor *MAX6675
	clock  *fakeClock
	sck    *fakeOutputLine
	cs     *fakeOutputLine
	so     *fakeInputLine
}

func newTestRig() *testRig {
	r := &testRig{
		clock: &fakeClock{t: time.Unix(1000, 0)},
		sck:   &fakeOutputLine{},
		cs:    &fakeOutputLine{},
		so:    &fakeInputLine{},
	}
	r.sensor = NewMAX6675(r.sck, r.cs, r.so)
	r.sensor.now = r.clock.now
	r.sensor.sleep = func(time.Duration) {}
	return r
}

// loadFrame queues a frame on the data line and makes the conversion ready
func (r *testRig) loadFrame(code uint16, fault bool) {
	r.so.bits = frameBits(code, fault)
	r.so.pos = 0
	r.sensor.Refresh()
	r.clock.advance(conversionPeriod)
}

func TestCelsiusScaling(t *testing.T) {
	r := newTestRig()

	for code := uint16(0); code < 4096; code++ {
		r.loadFrame(code, false)
		assert.Equal(t, float64(code)*0.25, r.sensor.Read())
		assert.Equal(t, code, r.sensor.Last().RawCode)
	}
}

func TestReadyWindow(t *testing.T) {
	r := newTestRig()

	r.sensor.Refresh()
	assert.Assert(t, !r.sensor.Ready())

	r.clock.advance(conversionPeriod - time.Millisecond)
	assert.Assert(t, !r.sensor.Ready())

	r.clock.advance(time.Millisecond)
	assert.Assert(t, r.sensor.Ready())
}

func TestStaleRead(t *testing.T) {
	r := newTestRig()
	r.loadFrame(901, false)
	assert.Equal(t, 225.25, r.sensor.Read())

	// A new conversion is armed by the read itself; until it has dwelled,
	// repeated reads return the cached value without touching any lines
	sckActivity, csActivity := len(r.sck.history), len(r.cs.history)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 225.25, r.sensor.Read())
	}
	assert.Equal(t, sckActivity, len(r.sck.history))
	assert.Equal(t, csActivity, len(r.cs.history))
}

func TestReadRearmsConversion(t *testing.T) {
	r := newTestRig()
	r.loadFrame(100, false)

	r.sensor.Read()
	assert.Equal(t, StateIdle, r.sensor.State())
	assert.Assert(t, !r.sensor.Ready())

	r.sensor.Refresh()
	assert.Equal(t, StateConverting, r.sensor.State())

	r.clock.advance(conversionPeriod)
	assert.Assert(t, r.sensor.Ready())
}

func TestRefreshReArmsUnreadConversion(t *testing.T) {
	r := newTestRig()

	r.sensor.Refresh()
	r.clock.advance(conversionPeriod)
	assert.Assert(t, r.sensor.Ready())

	// A second refresh restarts the dwell window even though the prior
	// conversion was never read
	r.sensor.Refresh()
	assert.Assert(t, !r.sensor.Ready())
}

func TestFaultBit(t *testing.T) {
	r := newTestRig()

	r.loadFrame(400, true)
	assert.Equal(t, 100.0, r.sensor.Read())
	assert.Assert(t, r.sensor.Error())
	assert.Assert(t, r.sensor.Last().Fault)

	// The fault bit reflects the most recent completed frame only
	r.loadFrame(400, false)
	r.sensor.Read()
	assert.Assert(t, !r.sensor.Error())
}

func TestRestingLineLevels(t *testing.T) {
	r := newTestRig()

	// Construction drives clock low and select high
	assert.Assert(t, !r.sck.level)
	assert.Assert(t, r.cs.level)

	// A refresh pulses select low and returns it high
	r.sensor.Refresh()
	assert.Assert(t, r.cs.level)
	assert.DeepEqual(t, r.cs.history[len(r.cs.history)-2:], []bool{false, true})

	// A full read leaves both lines at their resting levels
	r.clock.advance(conversionPeriod)
	r.sensor.Read()
	assert.Assert(t, !r.sck.level)
	assert.Assert(t, r.cs.level)
}

func TestFrameBitOrder(t *testing.T) {
	r := newTestRig()

	// Only the MSB set: 0x800 * 0.25 = 512°C
	r.loadFrame(0x800, false)
	assert.Equal(t, 512.0, r.sensor.Read())

	// Only the LSB set
	r.loadFrame(0x001, false)
	assert.Equal(t, 0.25, r.sensor.Read())
}
