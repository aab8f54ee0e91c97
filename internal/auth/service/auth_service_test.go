package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/security"
	"crimewatch/backend/internal/session"
	sessiondomain "crimewatch/backend/internal/session/domain"
	userdomain "crimewatch/backend/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
	// failures injects transient failures: each GetByEmail/GetByID call pops one.
	failures []error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*userdomain.User{}, byEmail: map[string]*userdomain.User{}}
}

func (r *memUserRepo) add(u *userdomain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
}

func (r *memUserRepo) popFailure() error {
	if len(r.failures) == 0 {
		return nil
	}
	err := r.failures[0]
	r.failures = r.failures[1:]
	return err
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.popFailure(); err != nil {
		return nil, err
	}
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.popFailure(); err != nil {
		return nil, err
	}
	return r.byEmail[email], nil
}

type memRoleReader struct {
	mu    sync.Mutex
	roles map[string][]string
	// failures injects transient failures: each RoleNamesByUser call pops one.
	failures []error
}

func newMemRoleReader() *memRoleReader {
	return &memRoleReader{roles: map[string][]string{}}
}

func (r *memRoleReader) set(userID string, roles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = roles
}

func (r *memRoleReader) RoleNamesByUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, err
	}
	return r.roles[userID], nil
}

type memSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byHash: map[string]*sessiondomain.Session{}}
}

func (r *memSessionRepo) GetByTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byHash[s.TokenHash] = &cp
	return nil
}

func (r *memSessionRepo) ReplaceToken(ctx context.Context, oldHash, newHash string, issuedAt time.Time) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[oldHash]
	if !ok || s.RevokedAt != nil {
		return nil, nil
	}
	delete(r.byHash, oldHash)
	s.TokenHash = newHash
	s.RotationCount++
	s.IssuedAt = issuedAt
	r.byHash[newHash] = s
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) RevokeByTokenHash(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byHash[hash]; ok && s.RevokedAt == nil {
		t := time.Now().UTC()
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		if s.ID == id && s.RevokedAt == nil {
			t := time.Now().UTC()
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memSessionRepo) backdate(token string, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byHash[security.HashRefreshToken(token)]; ok {
		s.SessionStart = start
	}
}

type testEnv struct {
	svc      *AuthService
	users    *memUserRepo
	roles    *memRoleReader
	sessions *memSessionRepo
}

func newTestEnv(t *testing.T, maxRotations int, maxSessionAge time.Duration) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := newMemUserRepo()
	roles := newMemRoleReader()
	sessions := newMemSessionRepo()
	ledger := session.NewLedger(sessions, maxRotations, maxSessionAge)
	hasher := security.NewHasher(4)
	svc := NewAuthService(users, roles, ledger, tokens, hasher, nil)
	return &testEnv{svc: svc, users: users, roles: roles, sessions: sessions}
}

func (e *testEnv) addUser(t *testing.T, id, email, password string, superadmin bool, roles ...string) {
	t.Helper()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	now := time.Now().UTC()
	e.users.add(&userdomain.User{
		ID: id, Email: email, PasswordHash: hash,
		Active: true, Superadmin: superadmin,
		CreatedAt: now, UpdatedAt: now,
	})
	e.roles.set(id, roles...)
}

func TestAuthService_LoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false, "analyst")
	ctx := context.Background()

	res, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("Login should return both tokens")
	}
	if res.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", res.UserID)
	}

	claims, err := env.svc.Authenticate(res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("Subject = %q, want u1", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "analyst" {
		t.Errorf("Roles = %v, want [analyst]", claims.Roles)
	}
}

func TestAuthService_LoginFailuresAreGeneric(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "user@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.svc.Login(ctx, "nobody@example.com", "whatever"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.svc.Login(ctx, "", ""); err != ErrInvalidCredentials {
		t.Errorf("empty credentials: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginInactiveUser(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	hasher := security.NewHasher(4)
	hash, _ := hasher.Hash([]byte("Password123!"))
	env.users.add(&userdomain.User{ID: "u1", Email: "user@example.com", PasswordHash: hash, Active: false})

	if _, err := env.svc.Login(context.Background(), "user@example.com", "Password123!"); err != ErrInvalidCredentials {
		t.Errorf("inactive user: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_RefreshInvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	refreshed, err := env.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh should rotate the token value")
	}
	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != session.ErrTokenNotFound {
		t.Errorf("replayed old token: want ErrTokenNotFound, got %v", err)
	}
	// The successor token still works.
	if _, err := env.svc.Refresh(ctx, refreshed.RefreshToken); err != nil {
		t.Errorf("successor token should rotate, got %v", err)
	}
}

func TestAuthService_RefreshRotationLimit(t *testing.T) {
	const max = 3
	env := newTestEnv(t, max, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	token := login.RefreshToken
	for i := 0; i < max; i++ {
		res, err := env.svc.Refresh(ctx, token)
		if err != nil {
			t.Fatalf("Refresh %d: %v", i+1, err)
		}
		token = res.RefreshToken
	}
	if _, err := env.svc.Refresh(ctx, token); err != session.ErrRotationLimitExceeded {
		t.Fatalf("refresh %d: want ErrRotationLimitExceeded, got %v", max+1, err)
	}
	if _, err := env.svc.Refresh(ctx, token); err != session.ErrTokenNotFound {
		t.Errorf("lineage should be unusable after cap, got %v", err)
	}
}

func TestAuthService_RefreshSessionMaxAge(t *testing.T) {
	env := newTestEnv(t, 1000, 1*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.sessions.backdate(login.RefreshToken, time.Now().UTC().Add(-2*time.Hour))

	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != session.ErrSessionExpired {
		t.Fatalf("aged session: want ErrSessionExpired, got %v", err)
	}
}

func TestAuthService_ConcurrentRefreshOneWinner(t *testing.T) {
	env := newTestEnv(t, 100, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Refresh(ctx, login.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, notFound int
	for err := range errs {
		switch err {
		case nil:
			wins++
		case session.ErrTokenNotFound:
			notFound++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || notFound != 1 {
		t.Errorf("concurrent refresh: wins=%d notFound=%d, want 1/1", wins, notFound)
	}
}

func TestAuthService_RefreshReReadsRoles(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false, "viewer")
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := env.svc.Authenticate(login.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "viewer" {
		t.Fatalf("initial roles = %v, want [viewer]", claims.Roles)
	}

	// Role change mid-session takes effect on the next refresh, not before.
	env.roles.set("u1", "viewer", "moderator")
	refreshed, err := env.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err = env.svc.Authenticate(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(claims.Roles) != 2 {
		t.Errorf("refreshed roles = %v, want [viewer moderator]", claims.Roles)
	}
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := env.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Errorf("second Logout should succeed, got %v", err)
	}
	if err := env.svc.Logout(ctx, "never-issued"); err != nil {
		t.Errorf("Logout of unknown token should succeed, got %v", err)
	}
	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != session.ErrTokenNotFound {
		t.Errorf("refresh after logout: want ErrTokenNotFound, got %v", err)
	}

	// Access tokens are stateless: the paired token validates until expiry.
	if _, err := env.svc.Authenticate(login.AccessToken); err != nil {
		t.Errorf("access token should outlive logout, got %v", err)
	}
}

func TestAuthService_TransientErrorRetriedOnce(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	transient := errors.Join(db.ErrTransient, errors.New("connection reset"))
	env.users.mu.Lock()
	env.users.failures = []error{transient}
	env.users.mu.Unlock()

	// One transient failure, then success on the internal retry.
	if _, err := env.svc.Login(ctx, "user@example.com", "Password123!"); err != nil {
		t.Errorf("Login with one transient failure should succeed via retry, got %v", err)
	}

	env.users.mu.Lock()
	env.users.failures = []error{transient, transient}
	env.users.mu.Unlock()

	// Two failures exhaust the single retry and surface the transient error.
	if _, err := env.svc.Login(ctx, "user@example.com", "Password123!"); !errors.Is(err, db.ErrTransient) {
		t.Errorf("Login with repeated transient failures: want ErrTransient, got %v", err)
	}
}

func TestAuthService_TransientRoleReadRetried(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false, "analyst")
	ctx := context.Background()

	transient := errors.Join(db.ErrTransient, errors.New("connection reset"))
	env.roles.mu.Lock()
	env.roles.failures = []error{transient}
	env.roles.mu.Unlock()

	res, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login with one transient role read failure should succeed via retry, got %v", err)
	}
	claims, err := env.svc.Authenticate(res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "analyst" {
		t.Errorf("roles after retried read = %v, want [analyst]", claims.Roles)
	}

	// The same retry covers the role re-read on refresh.
	env.roles.mu.Lock()
	env.roles.failures = []error{transient}
	env.roles.mu.Unlock()
	if _, err := env.svc.Refresh(ctx, res.RefreshToken); err != nil {
		t.Errorf("Refresh with one transient role read failure should succeed via retry, got %v", err)
	}
}

func TestAuthService_RefreshDeactivatedUser(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)
	env.addUser(t, "u1", "user@example.com", "Password123!", false)
	ctx := context.Background()

	login, err := env.svc.Login(ctx, "user@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.users.mu.Lock()
	env.users.byID["u1"].Active = false
	env.users.mu.Unlock()

	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != session.ErrTokenNotFound {
		t.Errorf("refresh for deactivated user: want ErrTokenNotFound, got %v", err)
	}
}

func TestAuthService_AuthenticateErrorKinds(t *testing.T) {
	env := newTestEnv(t, 10, 24*time.Hour)

	if _, err := env.svc.Authenticate("garbage"); err != security.ErrMalformedToken {
		t.Errorf("garbage token: want ErrMalformedToken, got %v", err)
	}

	expired, err := security.NewTestTokenProviderTTL(-time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTL: %v", err)
	}
	tok, _, err := expired.IssueAccess("u1", nil, false)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := env.svc.Authenticate(tok); err != security.ErrTokenExpired {
		t.Errorf("expired token: want ErrTokenExpired, got %v", err)
	}
}
