package network

import (
	"context"

	"sentrydesk/internal/types"
)

const (
	weightSharedAccountsOnIP  = 0.30
	weightSharedUsersOnDevice = 0.25
	weightProxyRange          = 0.25
	weightDatacenterIP        = 0.15
	weightRiskyCluster        = 0.20
	weightVPN                 = 0.10
	weightTor                 = 0.35

	sharedAccountsSaturation = 5 // accounts at/above this count score the full weight
	sharedUsersSaturation    = 5
)

// Evaluator is the network evaluator named in the agent router's phase
// 1 fan-out. It is evidence-only: it never concludes fraud, only
// surfaces weighted signals and one tag per active signal.
type Evaluator struct {
	provider Provider // nil is valid: falls back to session-flag-only scoring
}

// New constructs a network evaluator. provider may be nil.
func New(provider Provider) *Evaluator {
	return &Evaluator{provider: provider}
}

// Evaluate aggregates shared-infrastructure evidence into a [0,1] score.
// When no context is available (nil provider, or a lookup miss) it
// emits only vpn_or_proxy_detected / tor_exit_node_detected if the
// session flags are set, with a score of 0 if neither is set.
func (e *Evaluator) Evaluate(ctx context.Context, input types.InputContext) (types.NetworkEvaluation, error) {
	var netCtx *Context
	if e.provider != nil {
		found, ok, err := e.provider.Lookup(ctx, input.Session.IPAddress, input.Device.DeviceID)
		if err != nil {
			return types.NetworkEvaluation{}, err
		}
		if ok {
			netCtx = found
		}
	}

	var score float64
	var evidence []string

	if netCtx != nil {
		if netCtx.SharedAccountsOnIP > 0 {
			frac := saturate(netCtx.SharedAccountsOnIP, sharedAccountsSaturation)
			score += weightSharedAccountsOnIP * frac
			evidence = append(evidence, "ip_shared_with_other_accounts")
		}
		if netCtx.SharedUsersOnDevice > 0 {
			frac := saturate(netCtx.SharedUsersOnDevice, sharedUsersSaturation)
			score += weightSharedUsersOnDevice * frac
			evidence = append(evidence, "device_seen_on_other_users")
		}
		if netCtx.IPInKnownProxyRange {
			score += weightProxyRange
			evidence = append(evidence, "ip_in_known_proxy_range")
		}
		if netCtx.IsDatacenterIP {
			score += weightDatacenterIP
			evidence = append(evidence, "datacenter_ip_detected")
		}
		if netCtx.IsInRiskyCluster {
			score += weightRiskyCluster * netCtx.ClusterFraudRate
			evidence = append(evidence, "member_of_risky_ip_device_cluster")
		}
	}

	if input.Session.IsVPN {
		score += weightVPN
		evidence = append(evidence, "vpn_or_proxy_detected")
	}
	if input.Session.IsTor {
		score += weightTor
		evidence = append(evidence, "tor_exit_node_detected")
	}

	if score > 1 {
		score = 1
	}

	return types.NetworkEvaluation{NetworkRisk: score, Evidence: evidence}, nil
}

func saturate(count, saturation int) float64 {
	if count >= saturation {
		return 1
	}
	return float64(count) / float64(saturation)
}
