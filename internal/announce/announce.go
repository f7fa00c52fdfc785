package announce

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
)

const (
	// ServiceType is the mDNS service type the agent registers under.
	ServiceType = "_stationd._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Announcer registers the agent as an mDNS service while connected and
// withdraws it on disconnect. All methods are nil-safe so callers can
// carry a disabled announcer without guarding every call.
type Announcer struct {
	mu  sync.Mutex
	log *zap.Logger

	instance string
	port     int
	server   *zeroconf.Server
}

// New creates an announcer that registers under the given instance name
// and port.
func New(instance string, port int) *Announcer {
	return &Announcer{
		log:      logging.GetLogger(),
		instance: instance,
		port:     port,
	}
}

// Announce registers the service, replacing any previous registration.
// The TXT records carry the associated network and address so peers can
// tell stations apart.
func (a *Announcer) Announce(ssid, addr string) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{"ssid=" + ssid, "addr=" + addr}
	server, err := zeroconf.Register(a.instance, ServiceType, ServiceDomain, a.port, txt, nil)
	if err != nil {
		return fmt.Errorf("mDNS register: %w", err)
	}

	a.server = server
	a.log.Info("presence announced",
		zap.String("instance", a.instance),
		zap.String("ssid", ssid))
	return nil
}

// Withdraw removes the registration. Not registered is a no-op.
func (a *Announcer) Withdraw() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.log.Info("presence withdrawn")
}
