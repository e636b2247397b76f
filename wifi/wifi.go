// Package wifi provides a thin, host-simulated stand-in for the device's
// Wi-Fi station/AP bring-up, per §4.7's [EXPANSION]: true radio bring-up is
// out of scope (§1 Non-goals), but the HTTP API needs a concrete
// collaborator to call.
package wifi

import (
	"context"
	"sync"
)

// Network describes one scanned access point.
type Network struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
	Auth string `json:"auth"`
}

// Credentials is a requested station configuration.
type Credentials struct {
	SSID     string
	Password string
	DHCP     bool
}

// Manager scans for and configures Wi-Fi station settings.
type Manager interface {
	Scan(ctx context.Context) ([]Network, error)
	Configure(ctx context.Context, creds Credentials) error
}

// Simulated is a host Manager: Scan returns a static list, Configure is a
// no-op that records the last requested credentials.
type Simulated struct {
	mu    sync.Mutex
	last  Credentials
	fixed []Network
}

// NewSimulated returns a Simulated manager with a plausible fixed scan
// result list.
func NewSimulated() *Simulated {
	return &Simulated{fixed: []Network{
		{SSID: "Garage", RSSI: -42, Auth: "WPA2"},
		{SSID: "Pit Lane", RSSI: -61, Auth: "WPA2"},
	}}
}

func (s *Simulated) Scan(ctx context.Context) ([]Network, error) {
	out := make([]Network, len(s.fixed))
	copy(out, s.fixed)
	return out, nil
}

func (s *Simulated) Configure(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	s.last = creds
	s.mu.Unlock()
	return nil
}

// Last returns the most recently requested credentials, used by tests.
func (s *Simulated) Last() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
