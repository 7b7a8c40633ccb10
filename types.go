//go:generate stringer -type=AcquisitionState -trimprefix=State
package btprobe

import (
	"fmt"
	"time"
)

// AcquisitionState denotes the conversion state of the thermocouple converter
type AcquisitionState int

const (

	// StateIdle is active while no conversion window is armed
	StateIdle AcquisitionState = iota

	// StateConverting is active between a conversion start and the next fresh read
	StateConverting
)

// Measurement denotes a single completed thermocouple acquisition frame.
// It is replaced wholesale on every fresh read, never updated field by field.
type Measurement struct {
	RawCode    uint16
	Celsius    float64
	Fault      bool
	CapturedAt time.Time
}

// String fulfils the Stringer interface
func (m *Measurement) String() string {
	if m.Fault {
		return fmt.Sprintf("%.2f°C (thermocouple fault)", m.Celsius)
	}
	return fmt.Sprintf("%.2f°C", m.Celsius)
}
