package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/pipeline"
)

// DemoAccount holds generated MT5 demo credentials for a funded challenge.
type DemoAccount struct {
	Login            string  `json:"login"`
	Password         string  `json:"password"`
	InvestorPassword string  `json:"investorPassword"`
	Server           string  `json:"server"`
	Balance          float64 `json:"balance"`
	Leverage         string  `json:"leverage"`
}

const demoServer = "BitFund-Demo01"

const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}

func randomPassword(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// NewDemoAccount generates credentials for a demo trading account funded
// to the plan's account size.
func NewDemoAccount(accountSize float64) (*DemoAccount, error) {
	login, err := randomDigits(8)
	if err != nil {
		return nil, errors.Internal("generate demo login", err)
	}
	password, err := randomPassword(12)
	if err != nil {
		return nil, errors.Internal("generate demo password", err)
	}
	investor, err := randomPassword(12)
	if err != nil {
		return nil, errors.Internal("generate investor password", err)
	}
	return &DemoAccount{
		Login:            login,
		Password:         password,
		InvestorPassword: investor,
		Server:           demoServer,
		Balance:          accountSize,
		Leverage:         "1:100",
	}, nil
}

// ProvisionResult is what a completed provisioning run produced.
type ProvisionResult struct {
	PropTraderID int          `json:"propTraderId"`
	Demo         *DemoAccount `json:"demoAccount"`
	PlanID       string       `json:"challengeType"`
}

// Provision turns a verified payment into a funded challenge: it creates
// the prop-trader record sized from the plan table, generates the demo
// account, and back-links the credentials and the prop-trader role onto
// the existing records. The back-links do not fail the provisioning.
func (s *Service) Provision(ctx context.Context, token string, sess *CheckoutSession) (*ProvisionResult, error) {
	planID := sess.Metadata["challengeType"]
	plan, ok := s.plans[planID]
	if !ok {
		return nil, errors.Payment("session references unknown challenge type", nil).
			WithDetails("challengeType", planID)
	}
	userID, _ := SessionUserIDs(sess)
	if userID == 0 {
		return nil, errors.Payment("session metadata is missing the user id", nil)
	}

	// A session provisions exactly once. Credentials are generated
	// locally and never persisted, so a repeat is rejected rather than
	// replayed.
	if s.store != nil {
		handoff, err := s.store.GetHandoff(ctx, sess.ID)
		if err != nil {
			return nil, errors.Internal("load payment handoff", err)
		}
		if handoff != nil && handoff.Status == StatusProvisioned {
			return nil, errors.Payment("challenge already provisioned for this session", nil).
				WithDetails("sessionId", sess.ID)
		}
	}

	result := &ProvisionResult{PlanID: planID}

	stages := []pipeline.Stage{
		{
			Name: "create-prop-trader",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				id, err := s.cms.CreatePropTrader(ctx, token, cms.PropTraderProfile{
					User:               userID,
					Status:             "challenge_active",
					ChallengeType:      planID,
					AccountSize:        plan.AccountSize,
					ProfitTarget:       plan.ProfitTarget,
					MaxDrawdown:        plan.MaxDrawdown,
					DailyDrawdownLimit: plan.DailyDrawdown,
					CurrentBalance:     plan.AccountSize,
					ProfitLoss:         0,
					ChallengeStartDate: s.now().Format(time.RFC3339),
					AgreedToTerms:      true,
				})
				if err != nil {
					return err
				}
				result.PropTraderID = id
				run.Set("propTraderID", id)
				return nil
			},
		},
		{
			Name: "create-mt5-demo-account",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				demo, err := NewDemoAccount(plan.AccountSize)
				if err != nil {
					return err
				}
				result.Demo = demo
				return nil
			},
		},
		{
			Name:       "attach-demo-credentials",
			BestEffort: true,
			Run: func(ctx context.Context, run *pipeline.Run) error {
				return s.cms.UpdateRecord(ctx, token, "prop-traders", result.PropTraderID, map[string]interface{}{
					"mt5_login":    result.Demo.Login,
					"mt5_password": result.Demo.Password,
					"mt5_server":   result.Demo.Server,
				})
			},
		},
		{
			Name:       "upgrade-user-role",
			BestEffort: true,
			Run: func(ctx context.Context, run *pipeline.Run) error {
				return s.cms.UpdateUser(ctx, token, userID, map[string]interface{}{
					"role": cms.RolePropTrader,
				})
			},
		},
	}

	p := pipeline.New("provision-"+planID, stages, s.log, s.metrics)
	if _, err := p.Execute(ctx, pipeline.NewRun()); err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.UpdateStatus(ctx, sess.ID, StatusProvisioned); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("failed to record provisioned status")
		}
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"plan":           planID,
		"prop_trader_id": result.PropTraderID,
		"demo_login":     result.Demo.Login,
	}).Info(fmt.Sprintf("challenge provisioned for user %d", userID))
	return result, nil
}
