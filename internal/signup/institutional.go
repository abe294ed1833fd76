package signup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/pipeline"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

// Corporate wallet limits applied to every new institutional wallet.
const (
	corporateWalletDailyLimit   = 1000000
	corporateWalletMonthlyLimit = 10000000
)

// InstitutionalFlow registers an institutional client: company details,
// contacts, compliance attestations, and a corporate wallet.
type InstitutionalFlow struct {
	deps *Deps
}

func NewInstitutionalFlow(deps *Deps) *InstitutionalFlow {
	return &InstitutionalFlow{deps: deps}
}

func (f *InstitutionalFlow) Name() string { return "institutional" }

func (f *InstitutionalFlow) Steps() []wizard.Step {
	return []wizard.Step{
		{
			Title:       "Company",
			Description: "Legal entity details",
			Validate: wizard.CheckRequired(
				"companyName",
				"legalEntityType",
				"businessRegistrationNumber",
				"countryOfIncorporation",
			),
		},
		{
			Title:       "Contacts",
			Description: "Primary contact and addresses",
			Validate: wizard.All(
				wizard.CheckSection("primaryContactPerson",
					"primary contact name and email are required",
					"name", "email"),
				wizard.CheckSection("billingAddress",
					"billing address street, city, and country are required",
					"street", "city", "country"),
			),
		},
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
			Title:       "Trading",
			Description: "Platform and volume profile",
			Validate: wizard.All(
				wizard.CheckRequired("platformType", "tradingVolume"),
				checkAsset("logo"),
			),
		},
		{
			Title:       "Compliance",
			Description: "Agreements and attestations",
			Validate: wizard.CheckAgreed(map[string]string{
				"serviceAgreementSigned": "The service agreement must be signed",
				"kycVerified":            "KYC verification must be confirmed",
				"amlChecked":             "AML screening must be confirmed",
			}),
		},
	}
}

// marshalSection serializes a nested block to the string column the CMS
// schema stores it in.
func marshalSection(form *wizard.FormState, section string) string {
	sec := form.Section(section)
	if len(sec) == 0 {
		return ""
	}
	b, err := json.Marshal(sec)
	if err != nil {
		return ""
	}
	return string(b)
}

// supportLevel derives the assigned support tier from declared volume.
// Every institutional client starts at premium; the largest books get
// enterprise support.
func supportLevel(volume string) string {
	if volume == "over_500m" {
		return "enterprise"
	}
	return "premium"
}

// apiAccess is granted for programmatic platform types.
func apiAccess(platform string) bool {
	return platform == "fix_api" || platform == "rest_api"
}

// Register validates every step, then creates the account, institutional
// client record, and corporate wallet. The operational address falls back
// to the billing address when not separately entered.
func (f *InstitutionalFlow) Register(ctx context.Context, form *wizard.FormState) (*pipeline.Run, error) {
	if err := validateAll(f.Steps(), form); err != nil {
		return nil, err
	}
	d := f.deps

	stages := []pipeline.Stage{
		d.registerStage(form, cms.RoleInstitutionalClient, false),
		{
			Name: "create-institutional-client",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				operational := marshalSection(form, "operationalAddress")
				if operational == "" {
					operational = marshalSection(form, "billingAddress")
				}
				id, err := d.CMS.CreateInstitutionalClient(ctx, run.StringValue(KeyToken), cms.InstitutionalClient{
					User:                       run.IntValue(KeyUserID),
					Status:                     "pending_review",
					CompanyName:                form.String("companyName"),
					LegalEntityType:            form.String("legalEntityType"),
					BusinessRegistrationNumber: form.String("businessRegistrationNumber"),
					CountryOfIncorporation:     form.String("countryOfIncorporation"),
					TaxIdentificationNumber:    form.String("taxIdentificationNumber"),
					PlatformType:               form.String("platformType"),
					PrimaryContactPerson:       marshalSection(form, "primaryContactPerson"),
					BillingAddress:             marshalSection(form, "billingAddress"),
					OperationalAddress:         operational,
					KYCVerified:                form.Bool("kycVerified"),
					AMLChecked:                 form.Bool("amlChecked"),
					ServiceAgreementSigned:     form.Bool("serviceAgreementSigned"),
					APIAccess:                  apiAccess(form.String("platformType")),
					SupportLevel:               supportLevel(form.String("tradingVolume")),
					TradingVolume:              form.Float("tradingVolumeUSD", 0),
					CustomFeePlan:              form.String("customFeePlan"),
					RiskProfile:                form.String("riskProfile"),
					TotalAssets:                form.Float("totalAssets", 0),
					AnnualRevenue:              form.Float("annualRevenue", 0),
					PublishedAt:                d.now().Format(time.RFC3339),
				})
				if err != nil {
					return err
				}
				run.Set(KeyProfileID, id)
				return nil
			},
		},
		{
			Name: "create-corporate-wallet",
			Run: func(ctx context.Context, run *pipeline.Run) error {
				walletID := d.walletID("INST", run.IntValue(KeyUserID))
				id, err := d.CMS.CreateWallet(ctx, run.StringValue(KeyToken), cms.Wallet{
					Balance:             0,
					Currency:            "USD",
					IsActive:            true,
					WalletID:            walletID,
					WalletType:          "corporate",
					DailyLimit:          corporateWalletDailyLimit,
					MonthlyLimit:        corporateWalletMonthlyLimit,
					InstitutionalClient: run.IntValue(KeyProfileID),
				})
				if err != nil {
					return err
				}
				run.Set(KeyWalletID, id)
				run.Set("walletRef", walletID)
				return nil
			},
		},
		d.uploadStage(form, "logo", "api::institutional-client.institutional-client", "companyLogo"),
		{
			Name:       "link-profile",
			BestEffort: true,
			Run: func(ctx context.Context, run *pipeline.Run) error {
				return d.CMS.UpdateUser(ctx, run.StringValue(KeyToken), run.IntValue(KeyUserID), map[string]interface{}{
					"institutional_client": run.IntValue(KeyProfileID),
				})
			},
		},
	}

	return d.execute(ctx, f.Name(), stages)
}
