package btprobe

import (
	"github.com/stianeikeland/go-rpio/v4"
)

// OutputLine drives a single digital output line
type OutputLine interface {

	// High drives the line high
	High()

	// Low drives the line low
	Low()
}

// InputLine samples a single digital input line
type InputLine interface {

	// Read returns true if the line is high
	Read() bool
}

type rpioOutputLine struct {
	pin rpio.Pin
}

// NewRPiOutputLine instantiates a digital output line on the given BCM pin.
// The caller must have opened GPIO memory access via rpio.Open() beforehand.
func NewRPiOutputLine(pin int) OutputLine {
	l := &rpioOutputLine{pin: rpio.Pin(pin)}
	l.pin.Output()
	return l
}

// High drives the line high
func (l *rpioOutputLine) High() {
	l.pin.High()
}

// Low drives the line low
func (l *rpioOutputLine) Low() {
	l.pin.Low()
}

type rpioInputLine struct {
	pin rpio.Pin
}

// NewRPiInputLine instantiates a digital input line on the given BCM pin.
// The caller must have opened GPIO memory access via rpio.Open() beforehand.
func NewRPiInputLine(pin int) InputLine {
	l := &rpioInputLine{pin: rpio.Pin(pin)}
	l.pin.Input()
	return l
}

// Read returns true if the line is high
func (l *rpioInputLine) Read() bool {
	return l.pin.Read() == rpio.High
}
