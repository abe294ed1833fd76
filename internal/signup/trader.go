package signup

import (
	"context"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/pipeline"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

// Retail wallet limits applied to every new trader wallet.
const (
	traderWalletDailyLimit   = 50000
	traderWalletMonthlyLimit = 200000
)

// defaultLeverageLimit applies when no leverage was entered.
const defaultLeverageLimit = 100

// TraderFlow registers a retail trading account with its profile and an
// active USD wallet.
type TraderFlow struct {
	deps *Deps
}

func NewTraderFlow(deps *Deps) *TraderFlow {
	return &TraderFlow{deps: deps}
}

func (f *TraderFlow) Name() string { return "trader" }

func (f *TraderFlow) Steps() []wizard.Step {
	return []wizard.Step{
		{
			Title:       "Account",
			Description: "Login credentials",
			Validate: wizard.All(
				wizard.CheckUsername,
				wizard.CheckEmail,
				wizard.CheckPassword(8),
			),
		},
		{
			Title:       "Personal",
			Description: "Contact details and wallet PIN",
			Validate: wizard.All(
				wizard.CheckRequired("fullName", "phone", "country"),
				wizard.CheckWalletPIN,
			),
		},
		{
			Title:       "Trading",
			Description: "Trading preferences and terms",
			Validate: wizard.All(
				f.checkLeverage,
				checkAsset("avatar"),
				wizard.CheckAgreed(map[string]string{
					"agreedToTerms": "You must agree to the terms and conditions",
				}),
			),
		},
	}
}

// checkLeverage only validates the leverage limit when one was entered.
func (f *TraderFlow) checkLeverage(form *wizard.FormState) []string {
	if form.Get("leverageLimit") == nil {
		return nil
	}
	return wizard.CheckNumeric("leverageLimit", "Leverage limit must be a number")(form)
}

// Register validates every step, then creates the account, the retail
// trader profile, and the profile's wallet, in that order. The wallet id
// and profile id come back on the run.
func (f *TraderFlow) Register(ctx context.Context, form *wizard.FormState) (*pipeline.Run, error) {
	if err := validateAll(f.Steps(), form); err != nil {
		return nil, err
	}
	d := f.deps

	stages := []pipeline.Stage{
		d.registerStage(form, cms.RoleAuthenticated, true),
		{
			Name: "create-trader-profile",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				leverage := form.Int("leverageLimit", defaultLeverageLimit)
				if leverage == 0 {
					leverage = defaultLeverageLimit
				}
				id, err := d.CMS.CreateRetailTrader(ctx, run.StringValue(KeyToken), cms.RetailTraderProfile{
					User:               run.IntValue(KeyUserID),
					Status:             "pending",
					FullName:           form.String("fullName"),
					Phone:              form.String("phone"),
					Country:            form.String("country"),
					WalletPIN:          form.Int("wallet_pin", 0),
					TradingLevel:       form.String("tradingLevel"),
					AccountType:        form.String("accountType"),
					TradingSince:       form.String("tradingSince"),
					LeverageLimit:      leverage,
					FeeDiscountTier:    form.String("feeDiscountTier"),
					MonthlyTradingGoal: form.Float("monthlyTradingGoal", 0),
					Notes:              form.String("notes"),
					AgreedToTerms:      form.Bool("agreedToTerms"),
				})
				if err != nil {
					return err
				}
				run.Set(KeyProfileID, id)
				return nil
			},
		},
		{
			Name: "create-wallet",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				walletID := d.walletID("TRD", run.IntValue(KeyUserID))
				id, err := d.CMS.CreateWallet(ctx, run.StringValue(KeyToken), cms.Wallet{
					Balance:      0,
					Currency:     "USD",
					IsActive:     true,
					WalletID:     walletID,
					WalletType:   "retail",
					DailyLimit:   traderWalletDailyLimit,
					MonthlyLimit: traderWalletMonthlyLimit,
					RetailTrader: run.IntValue(KeyProfileID),
				})
				if err != nil {
					return err
				}
				run.Set(KeyWalletID, id)
				run.Set("walletRef", walletID)
				return nil
			},
		},
		d.uploadStage(form, "avatar", "api::retail-trader.retail-trader", "avatar"),
		{
			Name: "link-profile",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				return d.CMS.UpdateUser(ctx, run.StringValue(KeyToken), run.IntValue(KeyUserID), map[string]interface{}{
					"retail_trader": run.IntValue(KeyProfileID),
				})
			},
		},
	}

	return d.execute(ctx, f.Name(), stages)
}
