// Package network aggregates shared-infrastructure evidence into a
// network risk score. It never concludes fraud — it surfaces evidence
// for the calibrator and policy engine to weigh.
package network

import "context"

// Context is a read-only snapshot of shared-infrastructure evidence for
// one session's {ip, device_id} pair, supplied by the optional network
// context provider named in spec §6.
type Context struct {
	SharedAccountsOnIP  int
	SharedUsersOnDevice int
	IsDatacenterIP      bool
	IPInKnownProxyRange bool
	IsInRiskyCluster    bool
	ClusterFraudRate    float64
}

// Provider looks up the Context for a session. Its absence (a nil
// Provider, or a lookup miss) is not an error: the evaluator falls back
// to scoring session-level VPN/Tor flags only.
type Provider interface {
	Lookup(ctx context.Context, ipAddress, deviceID string) (*Context, bool, error)
}

// InMemoryProvider is a static map-backed Provider, the in-process
// stand-in for a Redis-backed deployment.
type InMemoryProvider struct {
	entries map[string]Context
}

// NewInMemoryProvider builds a provider over a fixed key->Context map,
// keyed by "ip|deviceID".
func NewInMemoryProvider(entries map[string]Context) *InMemoryProvider {
	if entries == nil {
		entries = make(map[string]Context)
	}
	return &InMemoryProvider{entries: entries}
}

func (p *InMemoryProvider) Lookup(ctx context.Context, ipAddress, deviceID string) (*Context, bool, error) {
	c, ok := p.entries[ipAddress+"|"+deviceID]
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}
