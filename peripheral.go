package btprobe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
)

// GATT service / characteristic UUIDs exposed by the node
const (

	// ServiceUUID is the primary thermocouple service
	ServiceUUID = "4ac90000-0b71-11e8-b8f5-b827ebe1d493"

	// TemperatureUUID carries the temperature stream (notify / read)
	TemperatureUUID = "4ac90001-0b71-11e8-b8f5-b827ebe1d493"

	// NotifyIntervalUUID carries the client-configurable notify interval in
	// milliseconds (read / write)
	NotifyIntervalUUID = "4ac90002-0b71-11e8-b8f5-b827ebe1d493"

	// ProbeTypeUUID carries the opaque probe type code (read / write)
	ProbeTypeUUID = "4ac90003-0b71-11e8-b8f5-b827ebe1d493"

	// DeviceInfoUUID is the standard Device Information service
	DeviceInfoUUID = "180a"

	// SerialNumberUUID is the standard Serial Number String characteristic
	SerialNumberUUID = "2a25"
)

const (
	defaultDeviceName     = "RBPThermocouple"
	defaultSerialNumber   = "SN12345"
	defaultProbeType      = 0x01 // type K
	defaultNotifyInterval = 2000 // ms

	// advertisingIntervalMs is the fixed advertising interval
	advertisingIntervalMs = 100
)

// Peripheral presents the measurement stream and the configuration values as
// a BLE peripheral GATT service, plus a read-only identity characteristic in
// the Device Information service
type Peripheral struct {
	stack  Stack
	logger Logger

	name         string
	serialNumber string
	settleGrace  time.Duration

	// guards everything below; mutated from both the radio event context and
	// the acquisition loop
	mu                   sync.Mutex
	conns                mapset.Set
	notificationsEnabled bool
	notifyInterval       uint16
	probeType            []byte

	tempHandle     uint16
	tempCCCD       uint16
	intervalHandle uint16
	probeHandle    uint16
	serialHandle   uint16
}

// NewPeripheral instantiates a new peripheral on the given radio stack,
// executing functional options, if any
func NewPeripheral(stack Stack, options ...func(*Peripheral)) *Peripheral {
	p := &Peripheral{
		stack:                stack,
		logger:               &NullLogger{},
		name:                 defaultDeviceName,
		serialNumber:         defaultSerialNumber,
		conns:                mapset.NewSet(),
		notificationsEnabled: true,
		notifyInterval:       defaultNotifyInterval,
		probeType:            []byte{defaultProbeType},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(p)
	}

	return p
}

// Initialize registers the service table, seeds the characteristic values,
// writes the identity characteristic and starts advertising. A service table
// rejection is fatal; there is no safe partial-service state, so the caller
// must abort startup on error.
func (p *Peripheral) Initialize() error {
	handles, err := p.stack.RegisterServices([]ServiceSpec{
		{
			UUID: ServiceUUID,
			Characteristics: []CharacteristicSpec{
				{UUID: TemperatureUUID, Props: CharNotify | CharRead},
				{UUID: NotifyIntervalUUID, Props: CharRead | CharWrite},
				{UUID: ProbeTypeUUID, Props: CharRead | CharWrite},
			},
		},
		{
			UUID: DeviceInfoUUID,
			Characteristics: []CharacteristicSpec{
				{UUID: SerialNumberUUID, Props: CharRead},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register GATT services: %w", err)
	}

	p.tempHandle = handles[0][0]
	p.tempCCCD = p.tempHandle + 1
	p.intervalHandle = handles[0][1]
	p.probeHandle = handles[0][2]
	p.serialHandle = handles[1][0]

	if err := p.pushConfigValues(); err != nil {
		return fmt.Errorf("failed to seed characteristic values: %w", err)
	}
	if err := p.stack.WriteValue(p.serialHandle, []byte(p.serialNumber)); err != nil {
		return fmt.Errorf("failed to write serial number: %w", err)
	}

	p.stack.HandleEvents(Events{
		Connected:    p.onConnect,
		Disconnected: p.onDisconnect,
		Written:      p.onWrite,
	})

	if err := p.advertise(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}

	p.logger.Infof("advertising started as `%s` (serial %s)", p.name, p.serialNumber)
	return nil
}

// Notify encodes the measurement and sends it to every active connection. It
// is a no-op while no central is connected or notifications are disabled. A
// delivery failure on one connection does not prevent delivery to the others.
func (p *Peripheral) Notify(m Measurement) {
	p.mu.Lock()
	if p.conns.Cardinality() == 0 {
		p.mu.Unlock()
		p.logger.Debugf("no connections to notify")
		return
	}
	if !p.notificationsEnabled {
		p.mu.Unlock()
		p.logger.Debugf("notifications are not enabled by the central")
		return
	}
	conns := p.conns.ToSlice()
	attr := p.tempHandle
	p.mu.Unlock()

	value := encodeTemperature(m.Celsius)
	for _, c := range conns {
		conn := c.(string)
		if err := p.stack.Notify(conn, attr, value); err != nil {
			p.logger.Errorf("failed to send notification to %s: %s", conn, err)
			continue
		}
		p.logger.Debugf("notification sent to %s: % X", conn, value)
	}
}

// NotifyInterval returns the currently configured notify interval
func (p *Peripheral) NotifyInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return time.Duration(p.notifyInterval) * time.Millisecond
}

// NotificationsEnabled returns whether the central has notifications enabled
func (p *Peripheral) NotificationsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.notificationsEnabled
}

// Connections returns the number of active connections
func (p *Peripheral) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conns.Cardinality()
}

////////////////////////////////////////////////////////////////////////////////

func (p *Peripheral) onConnect(conn string) {
	p.mu.Lock()
	p.conns.Add(conn)
	grace := p.settleGrace
	p.mu.Unlock()

	p.logger.Infof("central connected: %s", conn)

	// Re-push the configuration values so a freshly connected client sees
	// consistent state. An optional settle grace period is applied via a
	// deferred timer; the event context must never block.
	push := func() {
		if err := p.pushConfigValues(); err != nil {
			p.logger.Errorf("failed to refresh characteristic values on connect: %s", err)
		}
	}
	if grace > 0 {
		time.AfterFunc(grace, push)
		return
	}
	push()
}

func (p *Peripheral) onDisconnect(conn string) {
	p.mu.Lock()
	p.conns.Remove(conn)
	p.notificationsEnabled = false
	p.mu.Unlock()

	p.logger.Infof("central disconnected: %s", conn)
}

func (p *Peripheral) onWrite(conn string, attr uint16) {
	switch attr {
	case p.tempCCCD:
		value := p.stack.ReadValue(attr)
		enabled := bytes.Equal(value, cccdEnableNotify)

		p.mu.Lock()
		p.notificationsEnabled = enabled
		p.mu.Unlock()

		p.logger.Infof("notifications %s by %s", enabledStr(enabled), conn)

	case p.intervalHandle:
		value := p.stack.ReadValue(attr)
		if len(value) != 2 {
			p.logger.Warnf("rejecting notify interval write of invalid length %d from %s", len(value), conn)
			return
		}
		interval := binary.LittleEndian.Uint16(value)

		p.mu.Lock()
		p.notifyInterval = interval
		p.mu.Unlock()

		p.logger.Infof("new notify interval: %d ms", interval)

		// Keep the advertised manufacturer data in sync with the interval
		if err := p.advertise(); err != nil {
			p.logger.Errorf("failed to rebuild advertising payload: %s", err)
		}

	case p.probeHandle:
		value := p.stack.ReadValue(attr)

		p.mu.Lock()
		p.probeType = value
		p.mu.Unlock()

		p.logger.Infof("new probe type value: % X", value)

	default:
		p.logger.Warnf("unexpected write to attribute handle %d from %s", attr, conn)
	}
}

// pushConfigValues writes the cached probe type and notify interval into
// their characteristic value caches
func (p *Peripheral) pushConfigValues() error {
	p.mu.Lock()
	probeType := p.probeType
	interval := p.notifyInterval
	p.mu.Unlock()

	if err := p.stack.WriteValue(p.probeHandle, probeType); err != nil {
		return err
	}
	return p.stack.WriteValue(p.intervalHandle, encodeInterval(interval))
}

// advertise builds the advertising payload / scan response pair from the
// current state and hands it to the stack
func (p *Peripheral) advertise() error {
	p.mu.Lock()
	interval := p.notifyInterval
	p.mu.Unlock()

	adv, err := advertisingPayload(ServiceUUID, interval)
	if err != nil {
		return err
	}
	scanResp, err := scanResponsePayload(p.name)
	if err != nil {
		return err
	}

	return p.stack.Advertise(advertisingIntervalMs, adv, scanResp)
}

// encodeTemperature encodes a temperature (in °C) as a signed little-endian
// 32-bit integer in hundredths of a degree, wrapping on overflow
func encodeTemperature(celsius float64) []byte {
	hundredths := int64(math.Round(celsius * 100))

	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, uint32(hundredths))
	return value
}

// encodeInterval encodes a notify interval (in ms) as an unsigned
// little-endian 16-bit integer
func encodeInterval(intervalMs uint16) []byte {
	value := make([]byte, 2)
	binary.LittleEndian.PutUint16(value, intervalMs)
	return value
}

func enabledStr(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
