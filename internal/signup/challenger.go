package signup

import (
	"context"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/pipeline"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

// ChallengerFlow registers a funded-challenge customer. The account is
// created with the customer role; the prop-trader upgrade happens after
// payment is verified, not here.
type ChallengerFlow struct {
	deps *Deps
}

func NewChallengerFlow(deps *Deps) *ChallengerFlow {
	return &ChallengerFlow{deps: deps}
}

func (f *ChallengerFlow) Name() string { return "challenger" }

func (f *ChallengerFlow) Steps() []wizard.Step {
	return []wizard.Step{
		{
			Title:       "Account",
			Description: "Login credentials and contact details",
			Validate: wizard.All(
				wizard.CheckUsername,
				wizard.CheckEmail,
				wizard.CheckPassword(6),
				wizard.CheckRequired("fullName", "phone"),
				wizard.CheckWalletPIN,
				wizard.CheckAgreed(map[string]string{
					"agreedToRiskDisclosure": "You must agree to the risk disclosure",
				}),
			),
		},
		{
			Title:       "Challenge",
			Description: "Choose a challenge plan",
			Validate:    f.checkChallengeType,
		},
		{
			Title:       "Profile",
			Description: "Optional avatar and trading preferences",
			Validate:    checkAsset("avatar"),
		},
		{
			Title:       "Review",
			Description: "Confirm and submit",
		},
	}
}

// checkChallengeType requires a plan selection that actually exists.
func (f *ChallengerFlow) checkChallengeType(form *wizard.FormState) []string {
	planID := form.String("challengeType")
	if planID == "" {
		return []string{"Select a challenge type"}
	}
	if _, ok := f.deps.Plans[planID]; !ok {
		return []string{"Unknown challenge type: " + planID}
	}
	return nil
}

// Register validates every step, then runs the registration chain:
// account, customer profile, optional avatar, and the user back-link to
// the profile. The selected challenge id is carried on the run for the
// payment handoff.
func (f *ChallengerFlow) Register(ctx context.Context, form *wizard.FormState) (*pipeline.Run, error) {
	if err := validateAll(f.Steps(), form); err != nil {
		return nil, err
	}
	d := f.deps

	stages := []pipeline.Stage{
		d.registerStage(form, cms.RoleCustomer, true),
		{
			Name: "create-customer-profile",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				id, err := d.CMS.CreateCustomerProfile(ctx, run.StringValue(KeyToken), cms.CustomerProfile{
					FullName:     form.String("fullName"),
					Phone:        form.String("phone"),
					Country:      form.String("country"),
					WalletPIN:    form.Int("wallet_pin", 0),
					User:         run.IntValue(KeyUserID),
					WalletStatus: "pending_verification",
					PublishedAt:  d.now(),
				})
				if err != nil {
					return err
				}
				run.Set(KeyProfileID, id)
				run.Set("challengeType", form.String("challengeType"))
				return nil
			},
		},
		d.uploadStage(form, "avatar", "api::customer-profile.customer-profile", "avatar"),
		{
			Name: "link-profile",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				return d.CMS.UpdateUser(ctx, run.StringValue(KeyToken), run.IntValue(KeyUserID), map[string]interface{}{
					"customer_profile": run.IntValue(KeyProfileID),
				})
			},
		},
	}

	return d.execute(ctx, f.Name(), stages)
}
