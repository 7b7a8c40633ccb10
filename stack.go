package btprobe

// CharProps denotes the permission set of a characteristic value
type CharProps byte

// Characteristic property flags
const (
	CharRead CharProps = 1 << iota
	CharWrite
	CharNotify
)

// CharacteristicSpec describes a single characteristic of a service table
type CharacteristicSpec struct {
	UUID  string
	Props CharProps
}

// ServiceSpec describes a single service of a service table
type ServiceSpec struct {
	UUID            string
	Characteristics []CharacteristicSpec
}

// Events denotes the callbacks dispatched by the radio stack. Handlers are
// invoked from the stack's event context and must run to completion without
// blocking; the stack serializes dispatch, so no two handlers overlap.
type Events struct {

	// Connected is called when a central connects
	Connected func(conn string)

	// Disconnected is called when a central disconnects
	Disconnected func(conn string)

	// Written is called after a central wrote the attribute with the given
	// handle; the written bytes are available via ReadValue
	Written func(conn string, attr uint16)
}

// Stack denotes the capability set required from the underlying radio stack.
// It mirrors the registration, value-cache and transport primitives of the
// firmware stacks this node targets; everything below this interface
// (advertising transport, connection establishment, packet framing) is
// outside the node's responsibility.
//
// RegisterServices assigns one value handle per characteristic, returned per
// service in declaration order. For a notifiable characteristic the client
// characteristic configuration descriptor is assigned the value handle + 1.
type Stack interface {

	// RegisterServices registers the service table and returns the assigned
	// value handles, one slice per service
	RegisterServices(services []ServiceSpec) ([][]uint16, error)

	// ReadValue returns the cached value bytes of the given attribute
	ReadValue(attr uint16) []byte

	// WriteValue replaces the cached value bytes of the given attribute,
	// making them visible to remote readers
	WriteValue(attr uint16, value []byte) error

	// Notify sends a value notification for the given attribute to a single
	// connected central
	Notify(conn string, attr uint16, value []byte) error

	// HandleEvents registers the event callbacks. Must be called before
	// Advertise.
	HandleEvents(ev Events)

	// Advertise brings the stack up (if required) and starts advertising the
	// given raw payload / scan response pair at the given interval
	Advertise(intervalMs uint16, adv, scanResp []byte) error
}
