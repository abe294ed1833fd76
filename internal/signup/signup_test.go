package signup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/cms"
	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/session"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

// fakeCMS is a stand-in backend recording every request path in order,
// plus the last JSON body sent to each path.
type fakeCMS struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]interface{}
	nextID   map[string]int
	failPath string
	failCode int
	failMsg  string
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		bodies: make(map[string]map[string]interface{}),
		nextID: map[string]int{
			"/api/customer-profiles":     11,
			"/api/retail-traders":        7,
			"/api/institutional-clients": 21,
			"/api/wallets":               9,
		},
	}
}

func (f *fakeCMS) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// body returns the last JSON body posted to path, unwrapping the data
// envelope when present.
func (f *fakeCMS) body(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.bodies[path]
	if !ok {
		t.Fatalf("no request body recorded for %s", path)
	}
	if data, ok := body["data"].(map[string]interface{}); ok {
		return data
	}
	return body
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if body != nil {
		f.bodies[r.URL.Path] = body
	}
	f.mu.Unlock()

	if f.failPath != "" && strings.HasPrefix(r.URL.Path, f.failPath) {
		w.WriteHeader(f.failCode)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"status": f.failCode, "message": f.failMsg},
		})
		return
	}

	switch {
	case r.URL.Path == "/api/auth/local/register":
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jwt": "test-jwt-token",
			"user": map[string]interface{}{
				"id": 42, "username": "trader1", "email": "trader1@example.com",
			},
		})
	case r.URL.Path == "/api/upload":
		w.Write([]byte(`[{"id": 3}]`))
	case r.Method == http.MethodPut:
		w.Write([]byte(`{"id": 42}`))
	default:
		id := f.nextID[r.URL.Path]
		fmt.Fprintf(w, `{"data": {"id": %d}}`, id)
	}
}

func newTestDeps(t *testing.T, backend *fakeCMS) (*Deps, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	client := cms.NewClient(srv.URL, 5*time.Second, nil)
	deps := NewDeps(client, store, nil, nil, DefaultPlans())
	deps.now = func() time.Time { return time.Unix(1700000000, 0) }
	return deps, store
}

func traderForm() *wizard.FormState {
	return wizard.NewFormStateFrom(map[string]interface{}{
		"username":        "trader1",
		"email":           "trader1@example.com",
		"password":        "s3cret-pass",
		"confirmPassword": "s3cret-pass",
		"fullName":        "Pat Trader",
		"phone":           "+15550000001",
		"country":         "US",
		"wallet_pin":      "123456",
		"agreedToTerms":   true,
	})
}

func TestTraderRegister_StageOrderAndThreading(t *testing.T) {
	backend := newFakeCMS()
	deps, store := newTestDeps(t, backend)
	flow := NewTraderFlow(deps)

	run, err := flow.Register(context.Background(), traderForm())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !run.Succeeded() {
		t.Fatal("run did not succeed")
	}

	want := []string{
		"POST /api/auth/local/register",
		"POST /api/retail-traders",
		"POST /api/wallets",
		"PUT /api/users/42",
	}
	got := backend.calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}

	if run.IntValue(KeyUserID) != 42 {
		t.Errorf("userID = %d, want 42", run.IntValue(KeyUserID))
	}
	if run.IntValue(KeyProfileID) != 7 {
		t.Errorf("profileID = %d, want 7", run.IntValue(KeyProfileID))
	}
	if run.IntValue(KeyWalletID) != 9 {
		t.Errorf("walletID = %d, want 9", run.IntValue(KeyWalletID))
	}
	if ref := run.StringValue("walletRef"); ref != "TRD-42-1700000000000" {
		t.Errorf("wallet ref = %q", ref)
	}

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("Load session: %v", err)
	}
	if sess.Token != "test-jwt-token" {
		t.Errorf("session token = %q", sess.Token)
	}
	if sess.User.ID != 42 || sess.User.Username != "trader1" {
		t.Errorf("session user = %+v", sess.User)
	}
}

func TestTraderRegister_ProfilePendingWithDefaultLeverage(t *testing.T) {
	tests := []struct {
		name         string
		leverage     interface{}
		wantLeverage float64
	}{
		{name: "absent", leverage: nil, wantLeverage: 100},
		{name: "zero", leverage: "0", wantLeverage: 100},
		{name: "entered", leverage: "50", wantLeverage: 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeCMS()
			deps, _ := newTestDeps(t, backend)
			flow := NewTraderFlow(deps)

			form := traderForm()
			if tc.leverage != nil {
				form.Set("leverageLimit", tc.leverage)
			}
			if _, err := flow.Register(context.Background(), form); err != nil {
				t.Fatalf("Register: %v", err)
			}

			profile := backend.body(t, "/api/retail-traders")
			if got := profile["leverageLimit"]; got != tc.wantLeverage {
				t.Errorf("leverageLimit = %v, want %v", got, tc.wantLeverage)
			}
			if got := profile["status"]; got != "pending" {
				t.Errorf("status = %v, want pending", got)
			}
		})
	}
}

func TestTraderRegister_ConfirmedAuthenticatedAccount(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewTraderFlow(deps)

	if _, err := flow.Register(context.Background(), traderForm()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	account := backend.body(t, "/api/auth/local/register")
	if got := account["role"]; got != float64(cms.RoleAuthenticated) {
		t.Errorf("role = %v, want %d", got, cms.RoleAuthenticated)
	}
	if got := account["confirmed"]; got != true {
		t.Errorf("confirmed = %v, want true", got)
	}
}

func TestTraderRegister_ShortPasswordNeverReachesBackend(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewTraderFlow(deps)

	form := traderForm()
	form.Set("password", "abc")
	form.Set("confirmPassword", "abc")

	_, err := flow.Register(context.Background(), form)
	if err == nil {
		t.Fatal("expected validation error")
	}
	svcErr := errors.GetServiceError(err)
	if svcErr == nil || svcErr.Code != errors.CodeValidation {
		t.Fatalf("error = %v, want validation error", err)
	}
	if calls := backend.calls(); len(calls) != 0 {
		t.Fatalf("backend was called: %v", calls)
	}
}

func TestTraderRegister_PasswordMismatchFails(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewTraderFlow(deps)

	form := traderForm()
	form.Set("confirmPassword", "different-pass")

	if _, err := flow.Register(context.Background(), form); err == nil {
		t.Fatal("expected validation error")
	}
	if calls := backend.calls(); len(calls) != 0 {
		t.Fatalf("backend was called: %v", calls)
	}
}

func TestTraderRegister_ProfileFailureSkipsWallet(t *testing.T) {
	backend := newFakeCMS()
	backend.failPath = "/api/retail-traders"
	backend.failCode = http.StatusBadRequest
	backend.failMsg = "wallet_pin must be an integer"
	deps, store := newTestDeps(t, backend)
	flow := NewTraderFlow(deps)

	run, err := flow.Register(context.Background(), traderForm())
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if !strings.Contains(err.Error(), "wallet_pin must be an integer") {
		t.Errorf("error %q does not carry the backend message", err)
	}
	for _, call := range backend.calls() {
		if strings.Contains(call, "/api/wallets") {
			t.Fatal("wallet was created after profile failure")
		}
	}
	if run != nil && run.Succeeded() {
		t.Error("run reported success after critical failure")
	}
	if _, err := store.Load(); err != session.ErrNoSession {
		t.Errorf("session persisted after failed run: %v", err)
	}
}

func challengerForm() *wizard.FormState {
	return wizard.NewFormStateFrom(map[string]interface{}{
		"username":               "challenger1",
		"email":                  "challenger1@example.com",
		"password":               "secret1",
		"confirmPassword":        "secret1",
		"fullName":               "Sam Challenger",
		"phone":                  "+15550000002",
		"wallet_pin":             "654321",
		"agreedToRiskDisclosure": true,
		"challengeType":          "elite",
	})
}

func TestChallengerRegister_Success(t *testing.T) {
	backend := newFakeCMS()
	deps, store := newTestDeps(t, backend)
	flow := NewChallengerFlow(deps)

	run, err := flow.Register(context.Background(), challengerForm())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{
		"POST /api/auth/local/register",
		"POST /api/customer-profiles",
		"PUT /api/users/42",
	}
	got := backend.calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if run.IntValue(KeyProfileID) != 11 {
		t.Errorf("profileID = %d, want 11", run.IntValue(KeyProfileID))
	}
	if run.StringValue("challengeType") != "elite" {
		t.Errorf("challengeType = %q", run.StringValue("challengeType"))
	}

	profile := backend.body(t, "/api/customer-profiles")
	if got := profile["wallet_status"]; got != "pending_verification" {
		t.Errorf("wallet_status = %v, want pending_verification", got)
	}

	if _, err := store.Load(); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
}

func TestChallengerRegister_UnknownChallengeType(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewChallengerFlow(deps)

	form := challengerForm()
	form.Set("challengeType", "platinum")

	if _, err := flow.Register(context.Background(), form); err == nil {
		t.Fatal("expected validation error")
	}
	if calls := backend.calls(); len(calls) != 0 {
		t.Fatalf("backend was called: %v", calls)
	}
}

func TestChallengerRegister_BadPINBlocked(t *testing.T) {
	deps, _ := newTestDeps(t, newFakeCMS())
	flow := NewChallengerFlow(deps)

	for _, pin := range []string{"12345", "1234567", "12345a", ""} {
		form := challengerForm()
		form.Set("wallet_pin", pin)
		if _, err := flow.Register(context.Background(), form); err == nil {
			t.Errorf("pin %q accepted", pin)
		}
	}
}

func TestChallengerRegister_AvatarUploadFailureStillSucceeds(t *testing.T) {
	backend := newFakeCMS()
	backend.failPath = "/api/upload"
	backend.failCode = http.StatusInternalServerError
	backend.failMsg = "storage unavailable"
	deps, store := newTestDeps(t, backend)
	flow := NewChallengerFlow(deps)

	form := challengerForm()
	form.Set("avatar", &Asset{Filename: "me.png", ContentType: "image/png", Data: []byte("png")})

	run, err := flow.Register(context.Background(), form)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !run.Succeeded() {
		t.Error("run should succeed despite upload failure")
	}

	var uploaded, linked bool
	for _, call := range backend.calls() {
		if strings.Contains(call, "/api/upload") {
			uploaded = true
		}
		if strings.Contains(call, "/api/users/42") {
			linked = true
		}
	}
	if !uploaded {
		t.Error("upload was never attempted")
	}
	if !linked {
		t.Error("profile back-link skipped after best-effort failure")
	}
	if _, err := store.Load(); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
}

func institutionalForm() *wizard.FormState {
	form := wizard.NewFormStateFrom(map[string]interface{}{
		"username":                   "acme_capital",
		"email":                      "ops@acme.example",
		"password":                   "corp-secret-1",
		"confirmPassword":            "corp-secret-1",
		"companyName":                "Acme Capital Ltd",
		"legalEntityType":            "llc",
		"businessRegistrationNumber": "BRN-2201",
		"countryOfIncorporation":     "GB",
		"platformType":               "fix_api",
		"tradingVolume":              "100m_to_500m",
		"serviceAgreementSigned":     true,
		"kycVerified":                true,
		"amlChecked":                 true,
	})
	form.MergeSection("primaryContactPerson", map[string]interface{}{
		"name": "Jordan Lee", "email": "jordan@acme.example",
	})
	form.MergeSection("billingAddress", map[string]interface{}{
		"street": "1 Fen Court", "city": "London", "country": "GB",
	})
	return form
}

func TestInstitutionalRegister_Success(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewInstitutionalFlow(deps)

	run, err := flow.Register(context.Background(), institutionalForm())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{
		"POST /api/auth/local/register",
		"POST /api/institutional-clients",
		"POST /api/wallets",
		"PUT /api/users/42",
	}
	got := backend.calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if ref := run.StringValue("walletRef"); !strings.HasPrefix(ref, "INST-42-") {
		t.Errorf("wallet ref = %q", ref)
	}

	account := backend.body(t, "/api/auth/local/register")
	if got := account["role"]; got != float64(cms.RoleInstitutionalClient) {
		t.Errorf("role = %v, want %d", got, cms.RoleInstitutionalClient)
	}
	if got := account["confirmed"]; got != false {
		t.Errorf("confirmed = %v, want false pending approval", got)
	}

	client := backend.body(t, "/api/institutional-clients")
	if got := client["supportLevel"]; got != "premium" {
		t.Errorf("supportLevel = %v, want premium", got)
	}
}

func TestInstitutionalRegister_MissingContactBlocked(t *testing.T) {
	backend := newFakeCMS()
	deps, _ := newTestDeps(t, backend)
	flow := NewInstitutionalFlow(deps)

	form := institutionalForm()
	form.Set("primaryContactPerson", map[string]interface{}{"name": "Jordan Lee"})

	if _, err := flow.Register(context.Background(), form); err == nil {
		t.Fatal("expected validation error")
	}
	if calls := backend.calls(); len(calls) != 0 {
		t.Fatalf("backend was called: %v", calls)
	}
}

func TestInstitutionalMergeSectionKeepsSiblings(t *testing.T) {
	form := institutionalForm()
	form.MergeSection("primaryContactPerson", map[string]interface{}{"phone": "+442071234567"})

	sec := form.Section("primaryContactPerson")
	if sec["name"] != "Jordan Lee" {
		t.Errorf("merge clobbered name: %v", sec)
	}
	if sec["phone"] != "+442071234567" {
		t.Errorf("merge lost phone: %v", sec)
	}
}

func TestSupportLevelAndAPIAccess(t *testing.T) {
	if supportLevel("over_500m") != "enterprise" {
		t.Error("over_500m should map to enterprise support")
	}
	if supportLevel("under_10m") != "premium" {
		t.Error("lower volumes should map to premium support")
	}
	if !apiAccess("fix_api") || !apiAccess("rest_api") {
		t.Error("programmatic platforms should grant api access")
	}
	if apiAccess("web") {
		t.Error("web platform should not grant api access")
	}
}

func TestValidateAsset(t *testing.T) {
	tests := []struct {
		name  string
		asset *Asset
		ok    bool
	}{
		{"nil asset", nil, true},
		{"png", &Asset{ContentType: "image/png", Data: []byte("x")}, true},
		{"gif", &Asset{ContentType: "image/gif", Data: []byte("x")}, true},
		{"pdf rejected", &Asset{ContentType: "application/pdf", Data: []byte("x")}, false},
		{"oversize", &Asset{ContentType: "image/jpeg", Data: make([]byte, maxAssetSize+1)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			problems := ValidateAsset(tc.asset)
			if tc.ok && len(problems) != 0 {
				t.Errorf("unexpected problems: %v", problems)
			}
			if !tc.ok && len(problems) == 0 {
				t.Error("expected problems")
			}
		})
	}
}
