package btprobe

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

// getTestNode wires a sensor on fake pins to a peripheral on a fake stack.
// The node's sleeps advance the sensor's fake clock, so the cooperative wait
// for conversion readiness terminates deterministically.
func getTestNode(t *testing.T) (*Node, *testRig, *fakeStack) {
	rig := newTestRig()

	stk := newFakeStack()
	peripheral := NewPeripheral(stk)
	assert.NilError(t, peripheral.Initialize())

	node := NewNode(rig.sensor, peripheral)
	node.sleep = func(d time.Duration) {
		rig.clock.advance(d)
	}
	return node, rig, stk
}

func TestCycleNotifiesMeasurement(t *testing.T) {
	node, rig, stk := getTestNode(t)
	stk.events.Connected("aa:bb:cc:dd:ee:01")

	rig.so.bits = frameBits(901, false) // 225.25°C
	node.cycle()

	assert.Equal(t, 1, len(stk.notifies))
	assert.DeepEqual(t, stk.notifies[0].value, []byte{0xfd, 0x57, 0x00, 0x00})
	assert.Equal(t, 225.25, rig.sensor.Last().Celsius)
}

func TestCycleSuppressesNotificationOnFault(t *testing.T) {
	node, rig, stk := getTestNode(t)
	stk.events.Connected("aa:bb:cc:dd:ee:01")

	rig.so.bits = frameBits(901, true)
	node.cycle()

	assert.Equal(t, 0, len(stk.notifies))
	assert.Assert(t, rig.sensor.Error())

	// The cached value survives the faulted cycle and a healthy frame
	// resumes notifications
	rig.so.bits = frameBits(902, false)
	rig.so.pos = 0
	node.cycle()
	assert.Equal(t, 1, len(stk.notifies))
}

func TestCycleWaitsForConversion(t *testing.T) {
	node, rig, stk := getTestNode(t)
	stk.events.Connected("aa:bb:cc:dd:ee:01")

	waits := 0
	node.sleep = func(d time.Duration) {
		waits++
		rig.clock.advance(d)
	}

	rig.so.bits = frameBits(100, false)
	node.cycle()

	// 220 ms dwell at the 10 ms poll cadence
	assert.Equal(t, 22, waits)
	assert.Equal(t, 1, len(stk.notifies))
}
