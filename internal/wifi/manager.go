package wifi

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
)

const (
	// MaxRetry bounds consecutive automatic reconnect attempts after a
	// link loss. When the counter reaches MaxRetry the connection is
	// marked Failed and no further attempts are made.
	MaxRetry = 5

	// MaxNetworks caps the number of scan results retained.
	MaxNetworks = 20

	// ScanTimeout bounds a blocking Scan call.
	ScanTimeout = 10 * time.Second

	// ConnectTimeout bounds a blocking Connect call.
	ConnectTimeout = 30 * time.Second
)

// Manager owns the connection state machine. Foreground callers block in
// Scan/Connect/Disconnect; the driver's event goroutine mutates state
// through handleEvent. All shared fields are guarded by mu.
type Manager struct {
	mu  sync.Mutex
	drv Driver
	log *zap.Logger

	initialized bool
	tag         StateTag
	target      string
	retries     int
	address     string
	rssi        int8
	networks    []Network

	// Waiter channels are non-nil exactly while the corresponding
	// operation is outstanding. The event path is the only sender.
	scanWaiter    chan []Network
	connectWaiter chan bool

	scanTimeout    time.Duration
	connectTimeout time.Duration
}

// NewManager creates a Manager bound to the given driver and registers
// itself as the driver's event handler.
func NewManager(drv Driver) *Manager {
	m := &Manager{
		drv:            drv,
		log:            logging.GetLogger(),
		tag:            StateIdle,
		scanTimeout:    ScanTimeout,
		connectTimeout: ConnectTimeout,
	}
	drv.Subscribe(m.handleEvent)
	return m
}

// Initialize performs one-time radio bring-up. A second call is a no-op
// success. Bring-up failure is fatal to startup; the caller aborts.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		m.log.Warn("wireless manager already initialized")
		return nil
	}

	if err := m.drv.Init(); err != nil {
		return fmt.Errorf("wireless bring-up failed: %w", err)
	}

	m.initialized = true
	m.log.Info("wireless manager initialized")
	return nil
}

// Scan clears prior results, issues a scan request and blocks until the
// driver reports completion or ScanTimeout elapses. Returns ErrBusy if a
// scan or connect is already outstanding.
func (m *Manager) Scan() ([]Network, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if m.scanWaiter != nil || m.connectWaiter != nil {
		m.mu.Unlock()
		return nil, ErrBusy
	}

	m.networks = nil
	prev := m.tag
	if m.tag == StateIdle || m.tag == StateFailed {
		m.tag = StateScanning
	}

	waiter := make(chan []Network, 1)
	m.scanWaiter = waiter

	if err := m.drv.StartScan(); err != nil {
		m.scanWaiter = nil
		m.tag = prev
		m.mu.Unlock()
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	timeout := m.scanTimeout
	m.mu.Unlock()

	m.log.Info("scan started")

	select {
	case nets := <-waiter:
		return nets, nil
	case <-time.After(timeout):
		m.mu.Lock()
		m.scanWaiter = nil
		if m.tag == StateScanning {
			m.tag = prev
		}
		m.mu.Unlock()
		m.log.Error("scan timed out")
		return nil, ErrTimeout
	}
}

// Connect issues a connection request and blocks until the link is fully
// up, the attempt fails permanently, or ConnectTimeout elapses. An empty
// SSID is rejected immediately without touching any state. On timeout the
// state is left as the event path last set it.
func (m *Manager) Connect(ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("%w: SSID must not be empty", ErrInvalidArgument)
	}

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	if m.scanWaiter != nil || m.connectWaiter != nil {
		m.mu.Unlock()
		return ErrBusy
	}

	m.retries = 0
	m.target = ssid
	m.tag = StateConnecting

	waiter := make(chan bool, 1)
	m.connectWaiter = waiter

	if err := m.drv.Connect(ssid, password); err != nil {
		m.connectWaiter = nil
		m.tag = StateFailed
		m.mu.Unlock()
		return fmt.Errorf("connect request failed: %w", err)
	}
	timeout := m.connectTimeout
	m.mu.Unlock()

	m.log.Info("connecting", zap.String("ssid", ssid))

	select {
	case ok := <-waiter:
		if !ok {
			m.log.Error("connection failed", zap.String("ssid", ssid))
			return ErrConnectFailed
		}
		m.log.Info("connected", zap.String("ssid", ssid))
		return nil
	case <-time.After(timeout):
		m.mu.Lock()
		m.connectWaiter = nil
		m.mu.Unlock()
		m.log.Error("connection timed out", zap.String("ssid", ssid))
		return ErrTimeout
	}
}

// Disconnect tears down the current association and returns the state
// machine to Idle. A disconnect while already disconnected is a no-op
// success.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}

	switch m.tag {
	case StateConnected, StateConnecting, StateRetrying:
	default:
		return nil
	}

	if err := m.drv.Disconnect(); err != nil {
		return fmt.Errorf("disconnect request failed: %w", err)
	}

	m.log.Info("disconnected", zap.String("ssid", m.target))
	m.tag = StateIdle
	m.target = ""
	m.retries = 0
	m.address = ""
	m.rssi = 0
	return nil
}

// handleEvent runs on the driver's goroutine and is the only writer of
// connection state outside the foreground request paths.
func (m *Manager) handleEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Kind {
	case EventScanComplete:
		m.handleScanComplete(e.Networks)

	case EventLinkUp:
		m.log.Debug("link up", zap.String("ssid", m.target))

	case EventLinkDown:
		m.handleLinkDown()

	case EventAddressAcquired:
		m.handleAddressAcquired(e.Addr, e.RSSI)
	}
}

// handleScanComplete builds the retained result set: empty identifiers
// dropped, capped at MaxNetworks, stably sorted by signal strength
// descending (ties keep first-seen order). Caller holds mu.
func (m *Manager) handleScanComplete(raw []Network) {
	nets := make([]Network, 0, len(raw))
	for _, n := range raw {
		if n.SSID == "" {
			continue
		}
		nets = append(nets, n)
		if len(nets) == MaxNetworks {
			break
		}
	}
	sort.SliceStable(nets, func(i, j int) bool {
		return nets[i].RSSI > nets[j].RSSI
	})

	m.networks = nets
	if m.tag == StateScanning {
		m.tag = StateIdle
	}
	m.log.Info("scan complete", zap.Int("networks", len(nets)))

	if m.scanWaiter != nil {
		m.scanWaiter <- nets
		m.scanWaiter = nil
	}
}

// handleLinkDown drives the automatic retry path. The counter increments
// on every link loss; reconnects are issued while it stays below MaxRetry,
// and the MaxRetry'th consecutive loss marks the connection Failed with no
// further attempts. Caller holds mu.
func (m *Manager) handleLinkDown() {
	switch m.tag {
	case StateConnecting, StateConnected, StateRetrying:
	default:
		return
	}

	m.address = ""
	m.rssi = 0
	m.retries++

	if m.retries < MaxRetry {
		m.tag = StateRetrying
		m.log.Warn("link down, reconnecting",
			zap.String("ssid", m.target),
			zap.Int("attempt", m.retries),
			zap.Int("max", MaxRetry))
		if err := m.drv.Reconnect(); err != nil {
			m.log.Error("reconnect request failed", zap.Error(err))
			m.failLocked()
		}
		return
	}

	m.log.Error("link down, retry budget exhausted", zap.String("ssid", m.target))
	m.failLocked()
}

// failLocked marks the connection Failed and releases any blocked
// connect caller. Caller holds mu.
func (m *Manager) failLocked() {
	m.tag = StateFailed
	if m.connectWaiter != nil {
		m.connectWaiter <- false
		m.connectWaiter = nil
	}
}

// handleAddressAcquired completes a connection attempt: the link is fully
// up once an address is assigned. Caller holds mu.
func (m *Manager) handleAddressAcquired(addr string, rssi int8) {
	switch m.tag {
	case StateConnecting, StateRetrying:
		m.tag = StateConnected
		m.retries = 0
		m.address = addr
		m.rssi = rssi
		m.log.Info("address acquired",
			zap.String("ssid", m.target),
			zap.String("address", addr))
		if m.connectWaiter != nil {
			m.connectWaiter <- true
			m.connectWaiter = nil
		}
	case StateConnected:
		// Address renewal on an established link.
		m.address = addr
		m.rssi = rssi
	}
}

// Status returns a point-in-time snapshot. Never blocks.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{State: m.tag, Retries: m.retries}
	if m.tag == StateConnected {
		s.SSID = m.target
		s.Address = m.address
		s.RSSI = m.rssi
	}
	return s
}

// Networks returns the last completed scan's result set. Never blocks.
func (m *Manager) Networks() []Network {
	m.mu.Lock()
	defer m.mu.Unlock()

	nets := make([]Network, len(m.networks))
	copy(nets, m.networks)
	return nets
}
