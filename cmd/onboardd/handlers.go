package main

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/BitFund-Trading/onboarding_layer/internal/database"
	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/httputil"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/payment"
	"github.com/BitFund-Trading/onboarding_layer/internal/signup"
	"github.com/BitFund-Trading/onboarding_layer/internal/wizard"
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"status":  "healthy",
		"service": "onboardd",
	})
}

// handleSteps returns a flow's wizard layout so clients can render the
// step list without hardcoding it.
func (s *server) handleSteps(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flows[mux.Vars(r)["flow"]]
	if !ok {
		httputil.NotFound(w, "unknown signup flow")
		return
	}

	type stepInfo struct {
		Index       int    `json:"index"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	steps := flow.Steps()
	out := make([]stepInfo, len(steps))
	for i, step := range steps {
		out[i] = stepInfo{Index: i, Title: step.Title, Description: step.Description}
	}
	httputil.WriteSuccess(w, out)
}

// handleValidateStep checks one wizard step against submitted values, so
// the client can gate its Next button server-side.
func (s *server) handleValidateStep(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flows[mux.Vars(r)["flow"]]
	if !ok {
		httputil.NotFound(w, "unknown signup flow")
		return
	}

	var req struct {
		Step   int                    `json:"step"`
		Values map[string]interface{} `json:"values"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	wiz := signup.NewWizard(flow)
	if req.Step < 0 || req.Step >= len(wiz.Steps()) {
		httputil.BadRequest(w, "step index out of range")
		return
	}
	for field, value := range req.Values {
		wiz.Form().Set(field, value)
	}

	valid, problems := wiz.Validate(req.Step)
	httputil.WriteSuccess(w, map[string]interface{}{
		"valid":    valid,
		"problems": problems,
	})
}

func (s *server) handlePlans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.deps.Plans)
}

func (s *server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.quotes.Quotes())
}

func (s *server) handleCandles(w http.ResponseWriter, r *http.Request) {
	instrument := mux.Vars(r)["instrument"]
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	candles, err := s.quotes.Candles(r.Context(), instrument, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, candles)
}

// uploadPayload is how a client sends an optional image inline.
type uploadPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// decodeAsset converts an inline upload field to a validated Asset.
func decodeAsset(raw interface{}) (*signup.Asset, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, false
	}
	encoded, _ := m["data"].(string)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	filename, _ := m["filename"].(string)
	contentType, _ := m["contentType"].(string)
	return &signup.Asset{Filename: filename, ContentType: contentType, Data: data}, true
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	flowName := mux.Vars(r)["flow"]
	flow, ok := s.flows[flowName]
	if !ok {
		httputil.NotFound(w, "unknown signup flow")
		return
	}

	var values map[string]interface{}
	if !httputil.DecodeJSON(w, r, &values) {
		return
	}

	form := wizard.NewFormStateFrom(values)
	for _, field := range []string{"avatar", "logo"} {
		if raw := form.Get(field); raw != nil {
			asset, ok := decodeAsset(raw)
			if !ok {
				httputil.BadRequest(w, field+" must carry base64 data")
				return
			}
			form.Set(field, asset)
		}
	}

	run, err := flow.Register(r.Context(), form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.audit(r, "signup.completed", run.IntValue(signup.KeyUserID), map[string]interface{}{
		"flow": flowName,
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"jwt": run.StringValue(signup.KeyToken),
		"user": map[string]interface{}{
			"id":       run.IntValue(signup.KeyUserID),
			"username": run.StringValue("username"),
			"email":    run.StringValue("email"),
		},
		"profileId":     run.IntValue(signup.KeyProfileID),
		"walletId":      run.StringValue("walletRef"),
		"challengeType": run.StringValue("challengeType"),
	})
}

func (s *server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req payment.CheckoutRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	sess, err := s.payments.CreateCheckout(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.audit(r, "checkout.created", req.UserID, map[string]interface{}{
		"plan":       req.PlanID,
		"session_id": sess.ID,
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"sessionId":      sess.ID,
		"url":            sess.URL,
		"publishableKey": s.cfg.StripePublishableKey,
	})
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
}

func (s *server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	sess, err := s.payments.VerifyPayment(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"paid":          true,
		"sessionId":     sess.ID,
		"challengeType": sess.Metadata["challengeType"],
	})
}

func (s *server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	token := bearerToken(r)
	if token == "" {
		httputil.Unauthorized(w, "a bearer token is required to provision the account")
		return
	}

	sess, err := s.payments.VerifyPayment(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.payments.Provision(r.Context(), token, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	userID, _ := payment.SessionUserIDs(sess)
	if s.store != nil && result.Demo != nil {
		if err := s.store.SaveDemoAccount(r.Context(), userID, result.PropTraderID, result.Demo); err != nil {
			s.log.WithContext(r.Context()).WithError(err).Warn("failed to persist demo account")
		}
	}
	s.audit(r, "challenge.provisioned", userID, map[string]interface{}{
		"plan":           result.PlanID,
		"prop_trader_id": result.PropTraderID,
	})

	httputil.WriteSuccess(w, result)
}

// writeError maps a ServiceError to its HTTP response.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("request failed", err)
	}
	if serviceErr.HTTPStatus >= 500 {
		s.log.WithContext(r.Context()).WithError(err).Error("request failed")
	}
	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
}

// audit records an event when a repository is configured.
func (s *server) audit(r *http.Request, event string, userID int, details map[string]interface{}) {
	if s.store == nil {
		return
	}
	ev := database.AuditEvent{
		TraceID: logging.GetTraceID(r.Context()),
		Event:   event,
		UserID:  userID,
		Details: details,
	}
	if err := s.store.RecordAudit(r.Context(), ev); err != nil {
		s.log.WithContext(r.Context()).WithError(err).Warn("audit write failed")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
