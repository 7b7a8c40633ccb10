package btprobe

import "time"

// WithDeviceName sets the name advertised in the scan response
func WithDeviceName(name string) func(*Peripheral) {
	return func(p *Peripheral) {
		p.name = name
	}
}

// WithSerialNumber sets the serial number exposed via the Device Information
// service
func WithSerialNumber(serialNumber string) func(*Peripheral) {
	return func(p *Peripheral) {
		p.serialNumber = serialNumber
	}
}

// WithProbeType sets the initial probe type code
func WithProbeType(probeType byte) func(*Peripheral) {
	return func(p *Peripheral) {
		p.probeType = []byte{probeType}
	}
}

// WithNotifyInterval sets the initial notify interval in milliseconds
func WithNotifyInterval(intervalMs uint16) func(*Peripheral) {
	return func(p *Peripheral) {
		p.notifyInterval = intervalMs
	}
}

// WithSettleGracePeriod defers the refresh of the configuration
// characteristics after a connect by the given duration (applied via timer,
// never blocking the radio event context)
func WithSettleGracePeriod(grace time.Duration) func(*Peripheral) {
	return func(p *Peripheral) {
		p.settleGrace = grace
	}
}

// WithLogger sets a logger
func WithLogger(logger Logger) func(*Peripheral) {
	return func(p *Peripheral) {
		p.logger = logger
	}
}
