package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/license-service/internal/adapters/security"
	"github.com/keygate/license-service/internal/application"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

type memLicenses struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.License
}

func (r *memLicenses) Create(_ context.Context, rec domain.License) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.CustomerID == rec.CustomerID {
			return domain.License{}, domain.ErrConflict
		}
	}
	r.records[rec.LicenseID] = rec
	return rec, nil
}

func (r *memLicenses) GetByKey(_ context.Context, licenseKey string) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.LicenseKey == licenseKey {
			return rec, nil
		}
	}
	return domain.License{}, domain.ErrNotFound
}

func (r *memLicenses) GetByID(_ context.Context, licenseID uuid.UUID) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[licenseID]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *memLicenses) List(_ context.Context, limit, offset int) ([]domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.License, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	if offset >= len(out) {
		return []domain.License{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLicenses) ConditionalUpdate(_ context.Context, rec domain.License, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[rec.LicenseID]
	if !ok || stored.Revision != expectedRevision {
		return domain.ErrRevisionConflict
	}
	rec.Revision = expectedRevision + 1
	r.records[rec.LicenseID] = rec
	return nil
}

type noopOutbox struct{}

func (noopOutbox) Enqueue(context.Context, ports.OutboxEvent) error { return nil }
func (noopOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (noopOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (noopOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (noopOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	hasher := security.NewBcryptHasher(4)
	secretHash, err := hasher.Hash("super-secret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	signer, err := security.NewEphemeralJWTSigner("test-key")
	if err != nil {
		t.Fatalf("init signer: %v", err)
	}

	svc := application.NewService(application.Dependencies{
		Licenses:        &memLicenses{records: map[uuid.UUID]domain.License{}},
		Outbox:          noopOutbox{},
		Hasher:          hasher,
		TokenSigner:     signer,
		AdminSecretHash: secretHash,
	})
	return NewRouter(NewHandler(svc))
}

func doJSON(t *testing.T, router http.Handler, method, path, ip, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/admin/v1/login", "127.0.0.1", "", map[string]string{"secret": "super-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login status = %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return envelope.Data.Token
}

func issueLicense(t *testing.T, router http.Handler, token string) (uuid.UUID, string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/admin/v1/licenses", "127.0.0.1", token, map[string]any{
		"customer_id":      "cust-" + uuid.NewString(),
		"duration_months":  12,
		"allowed_software": []string{"editor"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create license status = %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			LicenseID  uuid.UUID `json:"license_id"`
			LicenseKey string    `json:"license_key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return envelope.Data.LicenseID, envelope.Data.LicenseKey
}

func TestVerifyEndpointDecisionStatuses(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := adminToken(t, router)
	_, licenseKey := issueLicense(t, router, token)

	// Unknown key.
	rec := doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{
		"license_key": "LIC-AAAAA-BBBBB-CCCCC",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown key status = %d", rec.Code)
	}

	// First activation binds and allows.
	rec = doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{
		"license_key": licenseKey,
		"software":    "editor",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("first activation status = %d: %s", rec.Code, rec.Body.String())
	}
	var allowed application.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &allowed); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if allowed.Decision != domain.DecisionAllowed {
		t.Fatalf("decision = %s", allowed.Decision)
	}
	if allowed.Message == "" {
		t.Fatalf("response body must carry a message member")
	}
	if allowed.ExpiresAt == nil {
		t.Fatalf("allowed response must carry expires_at")
	}

	// Unlicensed software.
	rec = doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{
		"license_key": licenseKey,
		"software":    "unlicensed-tool",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("software denial status = %d", rec.Code)
	}

	// Mismatched origin inside the grace window.
	rec = doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "203.0.113.7", "", map[string]string{
		"license_key": licenseKey,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatch status = %d", rec.Code)
	}
	var denied application.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &denied); err != nil {
		t.Fatalf("decode denial: %v", err)
	}
	if denied.Decision != domain.DecisionDeniedIPMismatch {
		t.Fatalf("decision = %s", denied.Decision)
	}
	if denied.BlockedUntil == nil {
		t.Fatalf("denial must carry blocked_until")
	}

	// Lockout now denies the bound origin too.
	rec = doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{
		"license_key": licenseKey,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("lockout status = %d", rec.Code)
	}
	var blocked application.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &blocked); err != nil {
		t.Fatalf("decode blocked: %v", err)
	}
	if blocked.Decision != domain.DecisionBlocked {
		t.Fatalf("decision = %s", blocked.Decision)
	}
	var blockedBody map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &blockedBody); err != nil {
		t.Fatalf("decode blocked body: %v", err)
	}
	if msg, ok := blockedBody["message"].(string); !ok || msg == "" {
		t.Fatalf("blocked body missing message member: %v", blockedBody)
	}
	if _, ok := blockedBody["blocked_until"]; !ok {
		t.Fatalf("blocked body missing blocked_until: %v", blockedBody)
	}
}

func TestVerifyEndpointRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/licenses/v1/verify", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/admin/v1/licenses", "127.0.0.1", "", map[string]any{
		"customer_id":     "cust-1",
		"duration_months": 1,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/admin/v1/licenses", "127.0.0.1", "not-a-token", map[string]any{
		"customer_id":     "cust-1",
		"duration_months": 1,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
}

func TestAdminLoginRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/admin/v1/login", "127.0.0.1", "", map[string]string{"secret": "guess"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminUnblockFlow(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := adminToken(t, router)
	licenseID, licenseKey := issueLicense(t, router, token)

	// Bind, then trip the lockout.
	if rec := doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{"license_key": licenseKey}); rec.Code != http.StatusOK {
		t.Fatalf("bind status = %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "203.0.113.7", "", map[string]string{"license_key": licenseKey}); rec.Code != http.StatusForbidden {
		t.Fatalf("mismatch status = %d", rec.Code)
	}

	path := fmt.Sprintf("/admin/v1/licenses/%s/unblock", licenseID)
	rec := doJSON(t, router, http.MethodPost, path, "127.0.0.1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d: %s", rec.Code, rec.Body.String())
	}

	// The bound origin passes again.
	if rec := doJSON(t, router, http.MethodPost, "/licenses/v1/verify", "10.0.0.1", "", map[string]string{"license_key": licenseKey}); rec.Code != http.StatusOK {
		t.Fatalf("post-unblock status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAndListLicenses(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := adminToken(t, router)
	licenseID, _ := issueLicense(t, router, token)

	rec := doJSON(t, router, http.MethodGet, "/admin/v1/licenses/"+licenseID.String(), "127.0.0.1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/admin/v1/licenses", "127.0.0.1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/admin/v1/licenses/not-a-uuid", "127.0.0.1", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestReadIPNormalizesIPv6Peers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/licenses/v1/verify", nil)
	req.RemoteAddr = "[::1]:54321"
	if got := readIP(req); got != "::1" {
		t.Fatalf("peer fallback = %q, want %q", got, "::1")
	}

	// The same origin via the forwarded header must yield the same string.
	fwd := httptest.NewRequest(http.MethodPost, "/licenses/v1/verify", nil)
	fwd.Header.Set("X-Forwarded-For", "::1")
	if got := readIP(fwd); got != "::1" {
		t.Fatalf("forwarded = %q, want %q", got, "::1")
	}

	bare := httptest.NewRequest(http.MethodPost, "/licenses/v1/verify", nil)
	bare.RemoteAddr = "203.0.113.7:443"
	if got := readIP(bare); got != "203.0.113.7" {
		t.Fatalf("ipv4 peer = %q, want %q", got, "203.0.113.7")
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}
