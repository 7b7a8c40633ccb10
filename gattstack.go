package btprobe

import (
	"fmt"
	"sync"
	"time"

	"github.com/fako1024/gatt"
	"github.com/fako1024/gatt/linux/cmd"
)

const (

	// bringUpTimeout is the maximum time to wait for the radio to power on
	// and accept the service table
	bringUpTimeout = 10 * time.Second

	// notifierPollInterval is the cadence at which dropped notify
	// subscriptions are detected
	notifierPollInterval = 250 * time.Millisecond
)

// DefaultBTServerOptions denotes the default options used to instantiate the
// underlying bluetooth device in peripheral role
var DefaultBTServerOptions = []gatt.Option{
	gatt.LnxMaxConnections(4),
	gatt.LnxDeviceID(-1, true),
}

// cccd value payloads as seen by the attribute cache
var (
	cccdEnableNotify  = []byte{0x01, 0x00}
	cccdDisableNotify = []byte{0x00, 0x00}
)

type gattAttr struct {
	char  *gatt.Characteristic
	value []byte
}

// GattStack adapts a gatt.Device in peripheral role to the Stack capability
// set. Attribute value handles are assigned sequentially in declaration
// order; the client characteristic configuration descriptor of a notifiable
// characteristic is assigned its value handle + 1. Notify subscriptions
// surface as writes to that descriptor handle.
type GattStack struct {
	device gatt.Device
	logger Logger

	mu        sync.Mutex
	services  []*gatt.Service
	attrs     map[uint16]*gattAttr
	notifiers map[string]map[uint16]gatt.Notifier
	events    Events
	started   bool

	advParams *cmd.LESetAdvertisingParameters
	advData   *cmd.LESetAdvertisingData
	scanData  *cmd.LESetScanResponseData
}

// NewGattStack instantiates a new peripheral-role stack on top of the given
// bluetooth device
func NewGattStack(device gatt.Device, logger Logger) *GattStack {
	if logger == nil {
		logger = &NullLogger{}
	}
	return &GattStack{
		device:    device,
		logger:    logger,
		attrs:     map[uint16]*gattAttr{},
		notifiers: map[string]map[uint16]gatt.Notifier{},
	}
}

// RegisterServices builds the GATT service table and returns the assigned
// value handles, one slice per service. The table is pushed to the radio
// once Advertise() brings it up.
func (s *GattStack) RegisterServices(services []ServiceSpec) ([][]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([][]uint16, 0, len(services))
	var n uint16 = 1

	for _, spec := range services {
		uuid, err := gatt.ParseUUID(spec.UUID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service UUID `%s`: %w", spec.UUID, err)
		}

		svc := gatt.NewService(uuid)
		svcHandles := make([]uint16, 0, len(spec.Characteristics))
		n++ // service declaration

		for _, charSpec := range spec.Characteristics {
			charUUID, err := gatt.ParseUUID(charSpec.UUID)
			if err != nil {
				return nil, fmt.Errorf("failed to parse characteristic UUID `%s`: %w", charSpec.UUID, err)
			}

			char := svc.AddCharacteristic(charUUID)
			n++ // characteristic declaration
			valueHandle := n
			n++

			attr := &gattAttr{char: char}
			s.attrs[valueHandle] = attr
			svcHandles = append(svcHandles, valueHandle)

			if charSpec.Props&CharRead != 0 {
				char.HandleReadFunc(s.genReadHandler(valueHandle))
			}
			if charSpec.Props&CharWrite != 0 {
				char.HandleWriteFunc(s.genWriteHandler(valueHandle))
			}
			if charSpec.Props&CharNotify != 0 {
				cccdHandle := n
				n++
				s.attrs[cccdHandle] = &gattAttr{value: cccdDisableNotify}
				char.HandleNotifyFunc(s.genNotifyHandler(valueHandle, cccdHandle))
			}
		}

		s.services = append(s.services, svc)
		handles = append(handles, svcHandles)
	}

	return handles, nil
}

// ReadValue returns the cached value bytes of the given attribute
func (s *GattStack) ReadValue(attr uint16) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.attrs[attr]
	if !exists {
		return nil
	}
	value := make([]byte, len(a.value))
	copy(value, a.value)
	return value
}

// WriteValue replaces the cached value bytes of the given attribute
func (s *GattStack) WriteValue(attr uint16, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.attrs[attr]
	if !exists {
		return fmt.Errorf("unknown attribute handle %d", attr)
	}
	a.value = make([]byte, len(value))
	copy(a.value, value)
	return nil
}

// Notify sends a value notification for the given attribute to a single
// connected central
func (s *GattStack) Notify(conn string, attr uint16, value []byte) error {
	s.mu.Lock()
	notifier, exists := s.notifiers[conn][attr]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("no notify subscription for connection %s on attribute %d", conn, attr)
	}
	if _, err := notifier.Write(value); err != nil {
		return fmt.Errorf("failed to notify connection %s: %w", conn, err)
	}
	return nil
}

// HandleEvents registers the event callbacks. Must be called before
// Advertise.
func (s *GattStack) HandleEvents(ev Events) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = ev
}

// Advertise brings the radio up on first call (registering the service
// table with the stack) and starts advertising the given raw payload / scan
// response pair. Subsequent calls replace the advertised payloads.
func (s *GattStack) Advertise(intervalMs uint16, adv, scanResp []byte) error {
	if len(adv) > MaxEIRPacketLength {
		return fmt.Errorf("advertising payload exceeds %d bytes: %d", MaxEIRPacketLength, len(adv))
	}
	if len(scanResp) > MaxEIRPacketLength {
		return fmt.Errorf("scan response payload exceeds %d bytes: %d", MaxEIRPacketLength, len(scanResp))
	}

	// The HCI advertising interval is expressed in units of 0.625 ms
	units := uint16(uint32(intervalMs) * 8 / 5)

	advData := &cmd.LESetAdvertisingData{AdvertisingDataLength: uint8(len(adv))}
	copy(advData.AdvertisingData[:], adv)
	scanData := &cmd.LESetScanResponseData{ScanResponseDataLength: uint8(len(scanResp))}
	copy(scanData.ScanResponseData[:], scanResp)

	s.mu.Lock()
	s.advParams = &cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin: units,
		AdvertisingIntervalMax: units,
		AdvertisingChannelMap:  0x7,
	}
	s.advData = advData
	s.scanData = scanData
	started := s.started
	s.mu.Unlock()

	if started {
		if err := s.device.Option(
			gatt.LnxSetAdvertisingData(advData),
			gatt.LnxSetScanResponseData(scanData),
		); err != nil {
			return fmt.Errorf("failed to update advertising payload: %w", err)
		}
		return nil
	}

	return s.bringUp()
}

////////////////////////////////////////////////////////////////////////////////

func (s *GattStack) bringUp() error {

	resChan := make(chan error, 1)

	// Register handlers
	s.device.Handle(
		gatt.CentralConnected(s.onCentralConnected),
		gatt.CentralDisconnected(s.onCentralDisconnected),
	)

	if err := s.device.Init(func(d gatt.Device, state gatt.State) {
		switch state {
		case gatt.StatePoweredOn:
			resChan <- s.registerAndAdvertise(d)
		case gatt.StatePoweredOff:
			s.logger.Warnf("bluetooth device powered off")
		default:
			s.logger.Debugf("bluetooth device state changed: %s", state)
		}
	}); err != nil {
		return fmt.Errorf("failed to initialize bluetooth device: %w", err)
	}

	select {
	case err := <-resChan:
		if err != nil {
			return err
		}
	case <-time.After(bringUpTimeout):
		return fmt.Errorf("timed out waiting for bluetooth device to power on")
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	return nil
}

func (s *GattStack) registerAndAdvertise(d gatt.Device) error {
	s.mu.Lock()
	services := s.services
	advParams, advData, scanData := s.advParams, s.advData, s.scanData
	s.mu.Unlock()

	for _, svc := range services {
		if err := d.AddService(svc); err != nil {
			return fmt.Errorf("failed to register service %s: %w", svc.UUID(), err)
		}
	}
	if err := d.Option(
		gatt.LnxSetAdvertisingParameters(advParams),
		gatt.LnxSetAdvertisingData(advData),
		gatt.LnxSetScanResponseData(scanData),
		gatt.LnxSetAdvertisingEnable(true),
	); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	return nil
}

func (s *GattStack) onCentralConnected(c gatt.Central) {
	s.mu.Lock()
	handler := s.events.Connected
	s.mu.Unlock()

	if handler != nil {
		handler(c.ID())
	}
}

func (s *GattStack) onCentralDisconnected(c gatt.Central) {
	s.mu.Lock()
	delete(s.notifiers, c.ID())
	handler := s.events.Disconnected
	s.mu.Unlock()

	if handler != nil {
		handler(c.ID())
	}
}

func (s *GattStack) genReadHandler(attr uint16) func(resp gatt.ResponseWriter, req *gatt.ReadRequest) {
	return func(resp gatt.ResponseWriter, req *gatt.ReadRequest) {
		if _, err := resp.Write(s.ReadValue(attr)); err != nil {
			s.logger.Warnf("failed to serve read on attribute %d: %s", attr, err)
			resp.SetStatus(gatt.StatusUnexpectedError)
			return
		}
		resp.SetStatus(gatt.StatusSuccess)
	}
}

func (s *GattStack) genWriteHandler(attr uint16) func(r gatt.Request, data []byte) byte {
	return func(r gatt.Request, data []byte) byte {
		s.mu.Lock()
		a := s.attrs[attr]
		a.value = make([]byte, len(data))
		copy(a.value, data)
		handler := s.events.Written
		s.mu.Unlock()

		if handler != nil {
			handler(r.Central.ID(), attr)
		}
		return gatt.StatusSuccess
	}
}

// genNotifyHandler surfaces a notify subscription as a write of the enable
// value to the descriptor handle, stores the notifier for outbound sends and
// watches for the subscription being dropped
func (s *GattStack) genNotifyHandler(attr, cccd uint16) func(r gatt.Request, n gatt.Notifier) {
	return func(r gatt.Request, n gatt.Notifier) {
		conn := r.Central.ID()

		s.mu.Lock()
		if s.notifiers[conn] == nil {
			s.notifiers[conn] = map[uint16]gatt.Notifier{}
		}
		s.notifiers[conn][attr] = n
		s.attrs[cccd].value = cccdEnableNotify
		handler := s.events.Written
		s.mu.Unlock()

		if handler != nil {
			handler(conn, cccd)
		}

		go s.watchNotifier(conn, attr, cccd, n)
	}
}

func (s *GattStack) watchNotifier(conn string, attr, cccd uint16, n gatt.Notifier) {
	for !n.Done() {
		time.Sleep(notifierPollInterval)
	}

	s.mu.Lock()
	dropped := false
	if conns, exists := s.notifiers[conn]; exists && conns[attr] == n {
		delete(conns, attr)
		dropped = true
		s.attrs[cccd].value = cccdDisableNotify
	}
	handler := s.events.Written
	s.mu.Unlock()

	if dropped && handler != nil {
		handler(conn, cccd)
	}
}
