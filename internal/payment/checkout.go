package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/metrics"
	"github.com/BitFund-Trading/onboarding_layer/internal/signup"
)

// Service drives the payment handoff end to end.
type Service struct {
	plans    signup.Plans
	provider CheckoutProvider
	cms      *cms.Client
	store    CheckoutStore
	log      *logging.Logger
	metrics  *metrics.Metrics
	origin   string

	now func() time.Time
}

// Config wires a payment service.
type Config struct {
	Plans    signup.Plans
	Provider CheckoutProvider
	CMS      *cms.Client
	Store    CheckoutStore
	Log      *logging.Logger
	Metrics  *metrics.Metrics

	// Origin is the public origin the provider redirects back to.
	Origin string
}

func NewService(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	if cfg.Plans == nil {
		cfg.Plans = signup.DefaultPlans()
	}
	return &Service{
		plans:    cfg.Plans,
		provider: cfg.Provider,
		cms:      cfg.CMS,
		store:    cfg.Store,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		origin:   cfg.Origin,
		now:      time.Now,
	}
}

// CheckoutRequest selects a challenge plan for a registered customer.
type CheckoutRequest struct {
	PlanID     string `json:"challengeType"`
	UserID     int    `json:"userId"`
	CustomerID int    `json:"customerId"`
}

// CreateCheckout opens a provider checkout session for the selected plan.
// The charge amount always comes from the plan table, never from the
// request, and is denominated in cents.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	plan, ok := s.plans[req.PlanID]
	if !ok {
		return nil, errors.BadRequest("unknown challenge type: " + req.PlanID)
	}
	if req.UserID == 0 {
		return nil, errors.BadRequest("userId is required")
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		PlanID:      req.PlanID,
		PlanName:    plan.Name,
		Description: plan.Description,
		Amount:      plan.Price * 100,
		UserID:      req.UserID,
		CustomerID:  req.CustomerID,
		SuccessURL:  s.origin + "/signup/challenger?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.origin + "/signup/challenger?canceled=true",
	})
	if err != nil {
		return nil, errors.Payment("create checkout session", err)
	}

	if s.store != nil {
		handoff := &Handoff{
			SessionID:  sess.ID,
			UserID:     req.UserID,
			CustomerID: req.CustomerID,
			PlanID:     req.PlanID,
			Status:     StatusPaymentPending,
			UpdatedAt:  s.now(),
		}
		if err := s.store.SaveHandoff(ctx, handoff); err != nil {
			return nil, errors.Internal("persist checkout session", err)
		}
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"plan":       req.PlanID,
		"session_id": sess.ID,
		"amount":     plan.Price * 100,
	}).Info("checkout session created")
	return sess, nil
}

// VerifyPayment confirms a provider session is paid and that its amount
// and metadata still match the plan table. Verification of an already
// verified session is a no-op success.
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, errors.BadRequest("session_id is required")
	}

	sess, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Payment("retrieve checkout session", err)
	}
	if !sess.Paid {
		return nil, errors.Payment("payment has not completed", nil).
			WithDetails("session_id", sessionID)
	}

	planID := sess.Metadata["challengeType"]
	plan, ok := s.plans[planID]
	if !ok {
		return nil, errors.Payment("session references unknown challenge type", nil).
			WithDetails("challengeType", planID)
	}
	if sess.AmountTotal != plan.Price*100 {
		return nil, errors.Payment("paid amount does not match plan price", nil).
			WithDetails("paid", sess.AmountTotal).
			WithDetails("expected", plan.Price*100)
	}

	if s.store != nil {
		stored, err := s.store.GetHandoff(ctx, sessionID)
		if err == nil && stored != nil && stored.Status != StatusPaymentPending {
			return sess, nil
		}
		if err := s.store.UpdateStatus(ctx, sessionID, StatusPaymentVerified); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("failed to record verified payment")
		}
	}

	s.log.WithContext(ctx).WithField("session_id", sessionID).Info("payment verified")
	return sess, nil
}

// SessionUserIDs reads the pipeline ids the checkout carried through the
// provider metadata.
func SessionUserIDs(sess *CheckoutSession) (userID, customerID int) {
	userID, _ = strconv.Atoi(sess.Metadata["userId"])
	customerID, _ = strconv.Atoi(sess.Metadata["customerId"])
	return userID, customerID
}
