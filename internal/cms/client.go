// Package cms is the typed client for the CMS backend's REST surface:
// account registration, role-specific profiles, wallets, uploads, and
// relation updates. Requests after registration carry the bearer token
// issued with the account.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/httputil"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
)

// Client talks to the CMS backend.
type Client struct {
	http *httputil.Client
	log  *logging.Logger
}

// NewClient creates a CMS client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Default()
	}
	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, Timeout: timeout}),
		log:  log,
	}
}

// Register creates the base account record and returns the issued token
// and user. The CMS's own error message is surfaced verbatim.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	resp, err := c.http.Post(ctx, "/api/auth/local/register", "", req)
	if err != nil {
		return nil, errors.Internal("registration request failed", err)
	}

	var auth AuthResponse
	if err := c.decode(resp, &auth); err != nil {
		return nil, err
	}
	if auth.JWT == "" || auth.User.ID == 0 {
		return nil, errors.Upstream(resp.StatusCode, "registration response missing token or user")
	}

	c.log.WithContext(ctx).WithField("cms_user_id", auth.User.ID).Info("account registered")
	return &auth, nil
}

// CreateCustomerProfile creates a customer-profiles record and returns its id.
func (c *Client) CreateCustomerProfile(ctx context.Context, token string, profile CustomerProfile) (int, error) {
	return c.createRecord(ctx, token, "/api/customer-profiles", profile)
}

// CreateRetailTrader creates a retail-traders record and returns its id.
func (c *Client) CreateRetailTrader(ctx context.Context, token string, profile RetailTraderProfile) (int, error) {
	return c.createRecord(ctx, token, "/api/retail-traders", profile)
}

// CreateInstitutionalClient creates an institutional-clients record and
// returns its id.
func (c *Client) CreateInstitutionalClient(ctx context.Context, token string, client InstitutionalClient) (int, error) {
	return c.createRecord(ctx, token, "/api/institutional-clients", client)
}

// CreatePropTrader creates a prop-traders record and returns its id.
func (c *Client) CreatePropTrader(ctx context.Context, token string, profile PropTraderProfile) (int, error) {
	return c.createRecord(ctx, token, "/api/prop-traders", profile)
}

// CreateWallet creates a wallets record and returns its id.
func (c *Client) CreateWallet(ctx context.Context, token string, wallet Wallet) (int, error) {
	return c.createRecord(ctx, token, "/api/wallets", wallet)
}

// UpdateUser applies a partial update to the base user record. User
// updates are sent without the data envelope.
func (c *Client) UpdateUser(ctx context.Context, token string, userID int, fields map[string]interface{}) error {
	resp, err := c.http.Put(ctx, fmt.Sprintf("/api/users/%d", userID), token, fields)
	if err != nil {
		return errors.Internal("user update request failed", err)
	}
	return c.decode(resp, nil)
}

// UpdateRecord applies a partial update to a collection record.
func (c *Client) UpdateRecord(ctx context.Context, token, collection string, id int, fields map[string]interface{}) error {
	resp, err := c.http.Put(ctx, fmt.Sprintf("/api/%s/%d", collection, id), token, dataEnvelope{Data: fields})
	if err != nil {
		return errors.Internal("record update request failed", err)
	}
	return c.decode(resp, nil)
}

// Upload attaches a binary asset to a record field via multipart upload.
func (c *Client) Upload(ctx context.Context, token string, req UploadRequest) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("files", req.Filename)
	if err != nil {
		return errors.Internal("build upload form", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return errors.Internal("write upload data", err)
	}
	_ = mw.WriteField("ref", req.Ref)
	_ = mw.WriteField("refId", fmt.Sprintf("%d", req.RefID))
	_ = mw.WriteField("field", req.Field)
	if err := mw.Close(); err != nil {
		return errors.Internal("finalize upload form", err)
	}

	resp, err := c.http.DoRaw(ctx, http.MethodPost, "/api/upload", token, mw.FormDataContentType(), &buf)
	if err != nil {
		return errors.Internal("upload request failed", err)
	}
	return c.decode(resp, nil)
}

// createRecord posts a payload wrapped in the data envelope and returns
// the created record's id.
func (c *Client) createRecord(ctx context.Context, token, path string, payload interface{}) (int, error) {
	resp, err := c.http.Post(ctx, path, token, dataEnvelope{Data: payload})
	if err != nil {
		return 0, errors.Internal("create request failed", err)
	}

	var rec record
	if err := c.decode(resp, &rec); err != nil {
		return 0, err
	}
	if rec.Data.ID == 0 {
		return 0, errors.Upstream(resp.StatusCode, "create response missing record id")
	}
	return rec.Data.ID, nil
}

// decode reads a CMS response. Error responses become ServiceErrors
// carrying the backend's message; 401/403 map to Unauthorized so callers
// can clear the stored session and force a re-login.
func (c *Client) decode(resp *http.Response, target interface{}) error {
	if resp.StatusCode < 400 {
		return httputilDecode(resp, target)
	}
	defer resp.Body.Close()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil {
		return errors.Upstream(resp.StatusCode, "")
	}

	message := ""
	var apiErr apiError
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil {
		message = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if message == "" {
			message = "authentication rejected by backend"
		}
		return errors.Unauthorized(message)
	default:
		return errors.Upstream(resp.StatusCode, message)
	}
}

func httputilDecode(resp *http.Response, target interface{}) error {
	if err := httputil.DecodeResponse(resp, target); err != nil {
		return errors.Internal("decode backend response", err)
	}
	return nil
}
