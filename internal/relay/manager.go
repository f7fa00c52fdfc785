package relay

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
)

// All addresses every channel at once. Real channel ids start at 1.
const All = 0

// ErrUnknownChannel indicates an id that is not configured.
var ErrUnknownChannel = fmt.Errorf("unknown relay channel")

// Channel maps a relay id to its GPIO pin.
type Channel struct {
	ID  int
	Pin int
}

type channelState struct {
	pin      int
	on       bool
	switches uint64
}

// Manager owns the configured relay channels. All operations are
// synchronous and guarded by a single mutex.
type Manager struct {
	mu      sync.Mutex
	log     *zap.Logger
	backend Backend

	channels map[int]*channelState
	order    []int
	totalOps uint64
}

// NewManager configures every channel for output and leaves it Off.
// A channel that fails bring-up fails construction.
func NewManager(backend Backend, channels []Channel) (*Manager, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no relay channels configured")
	}

	m := &Manager{
		log:      logging.GetLogger(),
		backend:  backend,
		channels: make(map[int]*channelState, len(channels)),
	}
	for _, c := range channels {
		if c.ID == All {
			return nil, fmt.Errorf("relay channel id %d is reserved", All)
		}
		if _, dup := m.channels[c.ID]; dup {
			return nil, fmt.Errorf("duplicate relay channel id %d", c.ID)
		}
		if err := backend.ConfigureOutput(c.Pin); err != nil {
			return nil, fmt.Errorf("relay %d (pin %d) bring-up: %w", c.ID, c.Pin, err)
		}
		m.channels[c.ID] = &channelState{pin: c.Pin}
		m.order = append(m.order, c.ID)
	}
	sort.Ints(m.order)

	m.log.Info("relay manager ready", zap.Int("channels", len(m.order)))
	return m, nil
}

// SetState drives one channel, or every channel when id is All. The
// fan-out continues past a failing channel; the aggregate result is the
// AND of the per-channel results. Switch counts increment only when the
// commanded state differs from the current one.
func (m *Manager) SetState(id int, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != All {
		return m.setLocked(id, on)
	}

	var failed []string
	for _, cid := range m.order {
		if err := m.setLocked(cid, on); err != nil {
			failed = append(failed, fmt.Sprintf("relay %d: %v", cid, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s", strings.Join(failed, "; "))
	}
	return nil
}

// Toggle flips one channel, or each channel individually when id is All
// (mixed states end up mixed the other way, not unified).
func (m *Manager) Toggle(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != All {
		c, ok := m.channels[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownChannel, id)
		}
		return m.setLocked(id, !c.on)
	}

	var failed []string
	for _, cid := range m.order {
		c := m.channels[cid]
		if err := m.setLocked(cid, !c.on); err != nil {
			failed = append(failed, fmt.Sprintf("relay %d: %v", cid, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s", strings.Join(failed, "; "))
	}
	return nil
}

// setLocked mutates a single channel. Caller holds mu.
func (m *Manager) setLocked(id int, on bool) error {
	c, ok := m.channels[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}

	m.totalOps++
	if c.on == on {
		return nil
	}

	level := 0
	if on {
		level = 1
	}
	if err := m.backend.Write(c.pin, level); err != nil {
		m.log.Error("relay write failed",
			zap.Int("relay", id),
			zap.Int("pin", c.pin),
			zap.Error(err))
		return err
	}

	c.on = on
	c.switches++
	m.log.Debug("relay switched", zap.Int("relay", id), zap.Bool("on", on))
	return nil
}

// State reports the current state of one channel.
func (m *Manager) State(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.channels[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return c.on, nil
}

// IDs returns the configured channel ids in ascending order.
func (m *Manager) IDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.order...)
}

// Status renders one line per channel.
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	for i, cid := range m.order {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Relay %d: %s", cid, onOff(m.channels[cid].on))
	}
	return b.String()
}

// DebugStatus renders per-channel bookkeeping plus the total operation
// counter.
func (m *Manager) DebugStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	b.WriteString("Relay debug:")
	for _, cid := range m.order {
		c := m.channels[cid]
		fmt.Fprintf(&b, "\n  Relay %d (pin %d): %s, %d switches",
			cid, c.pin, onOff(c.on), c.switches)
	}
	fmt.Fprintf(&b, "\n  Total operations: %d", m.totalOps)
	return b.String()
}

// Shutdown forces every channel Off regardless of last commanded state.
// Errors are logged, not returned; teardown always visits every channel.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cid := range m.order {
		if err := m.setLocked(cid, false); err != nil {
			m.log.Error("relay shutdown write failed",
				zap.Int("relay", cid), zap.Error(err))
		}
	}
	m.log.Info("relay channels forced off")
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
