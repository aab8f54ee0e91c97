package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"crimewatch/backend/internal/auth/service"
	"crimewatch/backend/internal/authz"
	reportdomain "crimewatch/backend/internal/report/domain"
	"crimewatch/backend/internal/security"
	"crimewatch/backend/internal/session"
	sessiondomain "crimewatch/backend/internal/session/domain"
	userdomain "crimewatch/backend/internal/user/domain"
)

type stubUsers struct{ users map[string]*userdomain.User }

func (s stubUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (s stubUsers) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return s.users[email], nil
}

func (s stubUsers) GetParentID(ctx context.Context, id string) (string, error) { return "", nil }

type stubRoles struct{ roles map[string][]string }

func (s stubRoles) RoleNamesByUser(ctx context.Context, userID string) ([]string, error) {
	return s.roles[userID], nil
}

func (s stubRoles) HasGrant(ctx context.Context, roleNames []string, module, permission string) (bool, error) {
	return false, nil
}

type stubSessions struct {
	mu     sync.Mutex
	byHash map[string]*sessiondomain.Session
}

func (s *stubSessions) GetByTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHash[hash]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *stubSessions) Create(ctx context.Context, sess *sessiondomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.byHash[sess.TokenHash] = &cp
	return nil
}

func (s *stubSessions) ReplaceToken(ctx context.Context, oldHash, newHash string, issuedAt time.Time) (*sessiondomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHash[oldHash]
	if !ok || sess.RevokedAt != nil {
		return nil, nil
	}
	delete(s.byHash, oldHash)
	sess.TokenHash = newHash
	sess.RotationCount++
	sess.IssuedAt = issuedAt
	s.byHash[newHash] = sess
	cp := *sess
	return &cp, nil
}

func (s *stubSessions) RevokeByTokenHash(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byHash[hash]; ok && sess.RevokedAt == nil {
		t := time.Now().UTC()
		sess.RevokedAt = &t
	}
	return nil
}

func (s *stubSessions) RevokeByID(ctx context.Context, id string) error { return nil }

type stubReports struct {
	mu      sync.Mutex
	reports map[string]*reportdomain.Report
}

func (s *stubReports) GetByID(ctx context.Context, id string) (*reportdomain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *rep
	return &cp, nil
}

func (s *stubReports) List(ctx context.Context, limit, offset int) ([]*reportdomain.Report, error) {
	return s.ListByCreator(ctx, "", limit, offset)
}

func (s *stubReports) ListByCreator(ctx context.Context, userID string, limit, offset int) ([]*reportdomain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*reportdomain.Report, 0)
	for _, rep := range s.reports {
		if userID == "" || rep.CreatedBy == userID {
			cp := *rep
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubReports) Create(ctx context.Context, rep *reportdomain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rep
	s.reports[rep.ID] = &cp
	return nil
}

func (s *stubReports) Update(ctx context.Context, rep *reportdomain.Report) error {
	return s.Create(ctx, rep)
}

func (s *stubReports) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, id)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte("Password123!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	now := time.Now().UTC()
	users := stubUsers{users: map[string]*userdomain.User{
		"user@example.com": {
			ID: "u1", Email: "user@example.com", PasswordHash: hash,
			Active: true, CreatedAt: now, UpdatedAt: now,
		},
	}}
	roles := stubRoles{roles: map[string][]string{}}
	ledger := session.NewLedger(&stubSessions{byHash: map[string]*sessiondomain.Session{}}, 10, 24*time.Hour)
	auth := service.NewAuthService(users, roles, ledger, tokens, hasher, nil)
	engine := authz.NewEngine(roles, users, nil)

	handler := New(Deps{
		Auth:    auth,
		Engine:  engine,
		Reports: &stubReports{reports: map[string]*reportdomain.Report{}},
		Logger:  zap.NewNop(),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, base string) (accessToken string) {
	t.Helper()
	body := bytes.NewReader([]byte(`{"email":"user@example.com","password":"Password123!"}`))
	resp, err := http.Post(base+"/api/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out.AccessToken
}

func TestServer_ProtectedRouteRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/reports")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_LoginThenCreateAndListReports(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv.URL)

	payload := map[string]any{
		"crime_type":  "robbery",
		"latitude":    -13.52,
		"longitude":   -71.97,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/reports", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var reports []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(reports) != 1 {
		t.Errorf("list returned %d reports, want 1", len(reports))
	}
}

func TestServer_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("Get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}
