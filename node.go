package btprobe

import "time"

// defaultPollInterval is the cooperative wait cadence while a conversion is
// in flight
const defaultPollInterval = 10 * time.Millisecond

// Node couples the acquisition driver to the peripheral: it polls the
// converter at a fixed cadence and forwards every valid measurement as a
// notification
type Node struct {
	sensor     *MAX6675
	peripheral *Peripheral
	logger     Logger

	pollInterval time.Duration
	sleep        func(time.Duration)
}

// NewNode instantiates a new node, executing functional options, if any
func NewNode(sensor *MAX6675, peripheral *Peripheral, options ...func(*Node)) *Node {
	n := &Node{
		sensor:       sensor,
		peripheral:   peripheral,
		logger:       &NullLogger{},
		pollInterval: defaultPollInterval,
		sleep:        time.Sleep,
	}

	for _, option := range options {
		option(n)
	}

	return n
}

// WithNodeLogger sets a logger
func WithNodeLogger(logger Logger) func(*Node) {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithPollInterval sets the cooperative wait cadence used while a conversion
// is in flight
func WithPollInterval(interval time.Duration) func(*Node) {
	return func(n *Node) {
		n.pollInterval = interval
	}
}

// Run executes acquisition cycles forever, pacing them by the currently
// configured notify interval. There is no cancellation and no conversion
// timeout: a converter that never reports ready stalls the loop indefinitely.
func (n *Node) Run() {
	for {
		n.cycle()
		n.sleep(n.peripheral.NotifyInterval())
	}
}

// cycle performs a single acquisition cycle: arm a conversion, wait
// cooperatively until the frame is ready, read it and (unless the frame is
// faulted) notify all connected centrals
func (n *Node) cycle() {
	n.sensor.Refresh()

	for !n.sensor.Ready() {
		n.sleep(n.pollInterval)
	}

	n.sensor.Read()
	m := n.sensor.Last()

	if m.Fault {
		n.logger.Warnf("thermocouple open or disconnected, suppressing notification")
		return
	}

	n.logger.Infof("current temperature: %s", &m)
	n.peripheral.Notify(m)
}
