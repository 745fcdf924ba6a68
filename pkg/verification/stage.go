package verification

import "github.com/gotempsh/temps-cli/pkg/api/client"

// Stage is where a domain sits in the certificate verification protocol,
// as read from the last fetched server state.
type Stage string

const (
	StageNoOrder        Stage = "no_order"
	StageOrderCreated   Stage = "order_created"
	StageChallengeReady Stage = "challenge_ready"
	StageVerifying      Stage = "verifying"
	StageActive         Stage = "active"
	StageFailed         Stage = "failed"
)

// Action is a mutation a user may trigger from a stage.
type Action string

const (
	ActionCreateOrder Action = "create-order"
	ActionRefresh     Action = "refresh"
	ActionVerify      Action = "verify"
	ActionCancel      Action = "cancel"
	ActionRenew       Action = "renew"
)

// Derive maps a domain and its order (nil when none exists) to a stage.
// It never checks that a transition was valid.
func Derive(domain client.Domain, order *client.AcmeOrder) Stage {
	switch {
	case domain.Status == client.DomainActive:
		return StageActive
	case order == nil:
		return StageNoOrder
	case domain.Status == client.DomainFailed, domain.Status == client.DomainExpired,
		order.Status == client.OrderInvalid:
		return StageFailed
	case order.Status == client.OrderProcessing, order.Status == client.OrderReady,
		domain.Status == client.DomainPendingValidation:
		return StageVerifying
	case domain.HasDNSChallenge(), order.HasAuthorizations():
		return StageChallengeReady
	}
	return StageOrderCreated
}

// Actions lists the mutations offered at stage.
func Actions(stage Stage) []Action {
	switch stage {
	case StageNoOrder:
		return []Action{ActionCreateOrder}
	case StageOrderCreated:
		return []Action{ActionRefresh, ActionCancel}
	case StageChallengeReady:
		return []Action{ActionVerify, ActionCancel}
	case StageVerifying:
		return []Action{ActionRefresh, ActionCancel}
	case StageFailed:
		return []Action{ActionVerify, ActionCancel}
	case StageActive:
		return []Action{ActionRenew}
	}
	return nil
}

// Terminal reports whether the protocol has settled.
func (s Stage) Terminal() bool {
	return s == StageActive || s == StageFailed
}
