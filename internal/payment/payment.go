// Package payment implements the challenge payment handoff: checkout
// session creation against the payment provider, payment verification on
// return, and prop-trader provisioning once the payment is confirmed.
package payment

import (
	"context"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
)

// Status tracks a challenge purchase through the handoff.
type Status string

const (
	StatusRegistered        Status = "registered"
	StatusChallengeSelected Status = "challenge_selected"
	StatusPaymentPending    Status = "payment_pending"
	StatusPaymentVerified   Status = "payment_verified"
	StatusProvisioned       Status = "provisioning_complete"
)

// transitions lists the legal next states for each status.
var transitions = map[Status][]Status{
	StatusRegistered:        {StatusChallengeSelected},
	StatusChallengeSelected: {StatusPaymentPending},
	StatusPaymentPending:    {StatusPaymentVerified, StatusChallengeSelected},
	StatusPaymentVerified:   {StatusProvisioned},
	StatusProvisioned:       {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Handoff is one customer's progress through the payment flow.
type Handoff struct {
	SessionID  string
	UserID     int
	CustomerID int
	PlanID     string
	Status     Status
	UpdatedAt  time.Time
}

// Advance moves the handoff to the next status, rejecting illegal jumps.
func (h *Handoff) Advance(to Status, now time.Time) error {
	if !CanTransition(h.Status, to) {
		return errors.Payment("illegal payment state transition", nil).
			WithDetails("from", string(h.Status)).
			WithDetails("to", string(to))
	}
	h.Status = to
	h.UpdatedAt = now
	return nil
}

// CheckoutSession is the provider-neutral view of a checkout session.
type CheckoutSession struct {
	ID          string
	URL         string
	AmountTotal int64
	Paid        bool
	Metadata    map[string]string
}

// CheckoutParams is what the provider needs to open a session.
type CheckoutParams struct {
	PlanID      string
	PlanName    string
	Description string
	Amount      int64
	UserID      int
	CustomerID  int
	SuccessURL  string
	CancelURL   string
}

// CheckoutProvider abstracts the payment provider so the flow can be
// tested without live credentials.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// CheckoutStore persists handoff state keyed by provider session id, so a
// repeated verification callback is idempotent. Implementations may be
// absent: the service runs stateless without one.
type CheckoutStore interface {
	SaveHandoff(ctx context.Context, h *Handoff) error
	GetHandoff(ctx context.Context, sessionID string) (*Handoff, error)
	UpdateStatus(ctx context.Context, sessionID string, status Status) error
}
