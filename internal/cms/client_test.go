package cms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil), srv
}

func TestRegister_Success(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/local/register" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("register must not carry an Authorization header")
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Username != "trader1" || req.Role != RoleAuthenticated {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(AuthResponse{
			JWT:  "token-abc",
			User: AuthUser{ID: 42, Username: req.Username, Email: req.Email},
		})
	})

	auth, err := client.Register(context.Background(), RegisterRequest{
		Username: "trader1", Email: "t@example.com", Password: "secret123",
		Confirmed: true, Role: RoleAuthenticated,
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if auth.JWT != "token-abc" || auth.User.ID != 42 {
		t.Errorf("auth = %+v", auth)
	}
}

func TestRegister_BackendMessageSurfacedVerbatim(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"status":  400,
				"name":    "ApplicationError",
				"message": "Email is already taken",
			},
		})
	})

	_, err := client.Register(context.Background(), RegisterRequest{Username: "trader1"})
	if err == nil {
		t.Fatal("expected error")
	}
	se := errors.GetServiceError(err)
	if se == nil || se.Message != "Email is already taken" {
		t.Errorf("error = %v, want backend message verbatim", err)
	}
}

func TestCreateRecord_BearerTokenAndEnvelope(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("Authorization = %q", got)
		}
		var envelope struct {
			Data CustomerProfile `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if envelope.Data.WalletPIN != 123456 || envelope.Data.User != 42 {
			t.Errorf("payload = %+v", envelope.Data)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": 7}})
	})

	id, err := client.CreateCustomerProfile(context.Background(), "token-abc", CustomerProfile{
		FullName: "Jane Doe", Phone: "+1234567890", WalletPIN: 123456,
		User: 42, WalletStatus: "pending_verification", PublishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateCustomerProfile() error: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
}

func TestDecode_UnauthorizedMapsToAuthError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"status": 401, "message": "Missing or invalid credentials"},
		})
	})

	_, err := client.CreateWallet(context.Background(), "stale", Wallet{WalletID: "TRD-1-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
}

func TestUpload_MultipartFields(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("ref"); got != "api::customer-profile.customer-profile" {
			t.Errorf("ref = %q", got)
		}
		if got := r.FormValue("refId"); got != "7" {
			t.Errorf("refId = %q", got)
		}
		if got := r.FormValue("field"); got != "avatar" {
			t.Errorf("field = %q", got)
		}
		file, header, err := r.FormFile("files")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "avatar.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})

	err := client.Upload(context.Background(), "token-abc", UploadRequest{
		Ref:         "api::customer-profile.customer-profile",
		RefID:       7,
		Field:       "avatar",
		Filename:    "avatar.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50, 0x4e, 0x47},
	})
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
}

func TestUpdateUser_NoEnvelope(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/users/42" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if _, wrapped := body["data"]; wrapped {
			t.Error("user updates must not be wrapped in a data envelope")
		}
		if body["customer_profile"] != float64(7) {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte("{}"))
	})

	err := client.UpdateUser(context.Background(), "token-abc", 42, map[string]interface{}{"customer_profile": 7})
	if err != nil {
		t.Fatalf("UpdateUser() error: %v", err)
	}
}
