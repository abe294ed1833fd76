// Package signup defines the account-onboarding flows: step lists,
// per-step validators, and the registration pipelines that create the
// account, role-specific profile, and dependent records on the CMS.
package signup

import (
	"context"
	"fmt"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/metrics"
	"github.com/BitFund-Trading/onboarding_layer/internal/pipeline"
	"github.com/BitFund-Trading/onboarding_layer/internal/session"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

// Run value keys threaded between pipeline stages.
const (
	KeyToken     = "token"
	KeyUserID    = "userID"
	KeyProfileID = "profileID"
	KeyWalletID  = "walletID"
)

// Asset is a binary upload (avatar or logo) collected by a wizard step.
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
}

const maxAssetSize = 5 << 20

var validAssetTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ValidateAsset checks an optional upload against the accepted image types
// and the 5 MB limit. A nil asset is valid: uploads are optional.
func ValidateAsset(a *Asset) []string {
	if a == nil {
		return nil
	}
	var problems []string
	if !validAssetTypes[a.ContentType] {
		problems = append(problems, "invalid file type, upload JPEG, PNG, or GIF")
	}
	if len(a.Data) > maxAssetSize {
		problems = append(problems, "file is too large, maximum size is 5MB")
	}
	return problems
}

// assetField reads an Asset out of the form, tolerating absence.
func assetField(form *wizard.FormState, field string) *Asset {
	a, _ := form.Get(field).(*Asset)
	return a
}

// checkAsset validates an optional upload field during its step.
func checkAsset(field string) wizard.Validator {
	return func(form *wizard.FormState) []string {
		return ValidateAsset(assetField(form, field))
	}
}

// Deps carries the collaborators shared by all flows.
type Deps struct {
	CMS      *cms.Client
	Sessions session.Store
	Log      *logging.Logger
	Metrics  *metrics.Metrics
	Plans    Plans

	// now is injected for deterministic wallet ids in tests.
	now func() time.Time
}

// NewDeps normalizes a dependency set.
func NewDeps(cmsClient *cms.Client, sessions session.Store, log *logging.Logger, m *metrics.Metrics, plans Plans) *Deps {
	if log == nil {
		log = logging.Default()
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	if plans == nil {
		plans = DefaultPlans()
	}
	return &Deps{CMS: cmsClient, Sessions: sessions, Log: log, Metrics: m, Plans: plans, now: time.Now}
}

// Flow is one signup variant.
type Flow interface {
	// Name identifies the flow (challenger, trader, institutional).
	Name() string

	// Steps returns the wizard step definitions.
	Steps() []wizard.Step

	// Register validates every step and executes the registration
	// pipeline against the CMS.
	Register(ctx context.Context, form *wizard.FormState) (*pipeline.Run, error)
}

// NewWizard builds a wizard over a flow's steps.
func NewWizard(f Flow) *wizard.Wizard {
	return wizard.New(f.Steps())
}

// validateAll runs every step validator before submission. The pipeline is
// never invoked when any step fails.
func validateAll(steps []wizard.Step, form *wizard.FormState) error {
	for i, step := range steps {
		if step.Validate == nil {
			continue
		}
		if problems := step.Validate(form); len(problems) > 0 {
			return errors.Validation(problems[0]).
				WithDetails("step", i).
				WithDetails("problems", problems)
		}
	}
	return nil
}

// registerStage creates the base account record and publishes the token
// and user id for the rest of the chain. Accounts that need manual
// approval register unconfirmed.
func (d *Deps) registerStage(form *wizard.FormState, role int, confirmed bool) pipeline.Stage {
	return pipeline.Stage{
		Name: "register-account",
		Run: func(ctx context.Context, run *pipeline.Run) error {
			auth, err := d.CMS.Register(ctx, cms.RegisterRequest{
				Username:  form.String("username"),
				Email:     form.String("email"),
				Password:  form.String("password"),
				Confirmed: confirmed,
				Blocked:   false,
				Role:      role,
			})
			if err != nil {
				return err
			}
			run.Set(KeyToken, auth.JWT)
			run.Set(KeyUserID, auth.User.ID)
			run.Set("username", auth.User.Username)
			run.Set("email", auth.User.Email)
			return nil
		},
	}
}

// uploadStage attaches an optional image to the created profile record.
// Upload failure never fails the registration.
func (d *Deps) uploadStage(form *wizard.FormState, field, ref, refField string) pipeline.Stage {
	return pipeline.Stage{
		Name:       "upload-" + field,
		BestEffort: true,
		Run: func(ctx context.Context, run *pipeline.Run) error {
			asset := assetField(form, field)
			if asset == nil {
				return nil
			}
			return d.CMS.Upload(ctx, run.StringValue(KeyToken), cms.UploadRequest{
				Ref:         ref,
				RefID:       run.IntValue(KeyProfileID),
				Field:       refField,
				Filename:    asset.Filename,
				ContentType: asset.ContentType,
				Data:        asset.Data,
			})
		},
	}
}

// persistSession stores the token and user after a successful pipeline
// run, the equivalent of the web client's token/user storage keys.
func (d *Deps) persistSession(run *pipeline.Run) error {
	sess := &session.Session{
		Token: run.StringValue(KeyToken),
		User: session.User{
			ID:       run.IntValue(KeyUserID),
			Username: run.StringValue("username"),
			Email:    run.StringValue("email"),
		},
	}
	if profileID := run.IntValue(KeyProfileID); profileID != 0 {
		sess.User.Profile = map[string]interface{}{"id": profileID}
	}
	if err := d.Sessions.Save(sess); err != nil {
		return errors.Internal("persist session", err)
	}
	return nil
}

// execute runs a flow pipeline and persists the session on success.
func (d *Deps) execute(ctx context.Context, name string, stages []pipeline.Stage) (*pipeline.Run, error) {
	p := pipeline.New(name, stages, d.Log, d.Metrics)
	run, err := p.Execute(ctx, pipeline.NewRun())
	if err != nil {
		return run, err
	}
	if err := d.persistSession(run); err != nil {
		return run, err
	}
	return run, nil
}

// walletID formats a wallet identifier the way the platform's records are
// keyed: prefix, owning user id, and creation timestamp.
func (d *Deps) walletID(prefix string, userID int) string {
	return fmt.Sprintf("%s-%d-%d", prefix, userID, d.now().UnixMilli())
}
