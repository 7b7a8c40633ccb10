package btprobe

import (
	"time"
)

const (

	// conversionPeriod is the minimum dwell between starting a conversion and
	// the frame becoming valid for clocking out
	conversionPeriod = 220 * time.Millisecond

	// selectSettleTime is the minimum time the select line is held low when
	// arming a conversion or before clocking out a frame
	selectSettleTime = 10 * time.Microsecond

	// clockHoldTime is the minimum hold on each clock edge. This is a hard
	// lower bound: shortening it corrupts reads on the physical pins.
	clockHoldTime = time.Microsecond

	// frameDataBits is the number of temperature bits per frame, delivered
	// MSB-first, followed by one fault bit and two padding bits
	frameDataBits = 12

	// celsiusPerLSB is the temperature resolution of the converter
	celsiusPerLSB = 0.25
)

// MAX6675 denotes a bit-banged MAX6675 thermocouple-to-digital converter
// driven over three digital lines (clock out, select out, data in)
type MAX6675 struct {
	sck OutputLine
	cs  OutputLine
	so  InputLine

	state           AcquisitionState
	conversionStart time.Time
	last            Measurement

	now   func() time.Time
	sleep func(time.Duration)
}

// NewMAX6675 instantiates a new converter on the given lines and drives them
// to their resting levels (clock low, select high)
func NewMAX6675(sck, cs OutputLine, so InputLine) *MAX6675 {
	m := &MAX6675{
		sck:   sck,
		cs:    cs,
		so:    so,
		now:   time.Now,
		sleep: time.Sleep,
	}

	m.sck.Low()
	m.cs.High()

	return m
}

// Refresh starts a new conversion by pulsing the select line, re-arming the
// conversion window even if a prior conversion was never read
func (m *MAX6675) Refresh() {
	m.cs.Low()
	m.sleep(selectSettleTime)
	m.cs.High()

	m.conversionStart = m.now()
	m.state = StateConverting
}

// Ready returns true if the most recently armed conversion has dwelled long
// enough for its frame to be read. It never blocks and never touches a line.
func (m *MAX6675) Ready() bool {
	return m.now().Sub(m.conversionStart) >= conversionPeriod
}

// Read returns the latest temperature (in °C). If no fresh conversion is
// ready, the previously cached value is returned without touching any lines;
// callers must check Ready() if they require a fresh value. A fresh read
// clocks out the full 16-bit frame, updates the cached measurement and fault
// bit, and immediately arms the next conversion.
func (m *MAX6675) Read() float64 {
	if !m.Ready() {
		return m.last.Celsius
	}

	m.cs.Low()
	m.sleep(selectSettleTime)

	// Clock out the 12 temperature bits, MSB first
	var code uint16
	for i := 0; i < frameDataBits; i++ {
		m.cycleClock()
		if m.so.Read() {
			code |= 1 << (frameDataBits - 1 - i)
		}
	}

	// The next bit flags an open or disconnected thermocouple
	m.cycleClock()
	fault := m.so.Read()

	// Discard the two trailing padding bits
	for i := 0; i < 2; i++ {
		m.cycleClock()
	}

	m.cs.High()
	m.conversionStart = m.now()
	m.state = StateIdle

	m.last = Measurement{
		RawCode:    code,
		Celsius:    float64(code) * celsiusPerLSB,
		Fault:      fault,
		CapturedAt: m.conversionStart,
	}

	return m.last.Celsius
}

// Error returns the fault bit of the most recent completed frame. A set
// fault bit does not invalidate the cached temperature; the caller decides
// whether to trust it.
func (m *MAX6675) Error() bool {
	return m.last.Fault
}

// Last returns the most recent completed measurement
func (m *MAX6675) Last() Measurement {
	return m.last
}

// State returns the current acquisition state
func (m *MAX6675) State() AcquisitionState {
	return m.state
}

func (m *MAX6675) cycleClock() {
	m.sck.High()
	m.sleep(clockHoldTime)
	m.sck.Low()
	m.sleep(clockHoldTime)
}
