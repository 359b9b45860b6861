package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "blog-platform/auth-service/internal/account/domain"
	accountrepo "blog-platform/auth-service/internal/account/repository"
	"blog-platform/auth-service/internal/audit"
	"blog-platform/auth-service/internal/security"
	sessiondomain "blog-platform/auth-service/internal/session/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
// All credential failures collapse into ErrInvalidCredentials so a caller
// cannot distinguish an unknown identifier from a wrong password or a
// deactivated account.
var (
	ErrIdentifierTaken     = errors.New("identifier already in use")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrAccountNotFound     = errors.New("user not found")
)

// TooManyAttemptsError is returned by Login when the attempt window for the
// identifier or client IP is exhausted.
type TooManyAttemptsError struct {
	RetryAfterSec int64
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many login attempts, retry in %ds", e.RetryAfterSec)
}

// TokenPair is the outcome of a successful Login or Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         accountdomain.Public
}

// LoginInput carries the credentials plus the device and provenance metadata
// recorded on the session. DeviceID and DeviceName are optional client labels;
// IPAddress and UserAgent come from the edge layer.
type LoginInput struct {
	Identifier string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	ListByOwner(ctx context.Context, ownerID string) ([]*sessiondomain.Session, error)
	Delete(ctx context.Context, id string) error
}

// LoginLimiter throttles login attempts. Implemented by ratelimit.Limiter.
type LoginLimiter interface {
	AllowLogin(ctx context.Context, identifier, ip string) (retryAfterSec int64, allowed bool, err error)
}

// AuthService implements register, login, refresh, logout, and whoami over
// password credentials and persisted refresh sessions.
type AuthService struct {
	accounts   AccountRepo
	sessions   SessionRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	limiter    LoginLimiter
	auditor    audit.AuditLogger
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
// limiter and auditor may be nil; throttling and audit are then skipped.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	limiter LoginLimiter,
	auditor audit.AuditLogger,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		limiter:    limiter,
		auditor:    auditor,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account with the given username, email, and password.
// Returns the public projection only: the caller must Login separately to
// obtain tokens. Emails are stored lowercased; usernames keep their case.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*accountdomain.Public, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	for _, identifier := range []string{username, email} {
		existing, err := s.accounts.GetByIdentifier(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrIdentifierTaken
		}
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	acct := &accountdomain.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		IsActive:     true,
		CreatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		// The database unique constraints close the check-then-insert
		// race: a concurrent Register of the same identifier loses here.
		if errors.Is(err, accountrepo.ErrDuplicate) {
			return nil, ErrIdentifierTaken
		}
		return nil, err
	}
	s.logAudit(ctx, acct.ID, "auth.register", "account", "")
	public := acct.Public()
	return &public, nil
}

// Login authenticates the identifier (email or username) and password,
// persists a session bound to a new refresh token, and returns the pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.AllowLogin(ctx, identifier, in.IPAddress)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &TooManyAttemptsError{RetryAfterSec: retryAfter}
		}
	}
	acct, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if acct == nil || !acct.IsActive {
		s.logAudit(ctx, "", "auth.login_failure", "account", identifier)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(acct.PasswordHash, in.Password); err != nil {
		s.logAudit(ctx, acct.ID, "auth.login_failure", "account", "")
		return nil, ErrInvalidCredentials
	}
	pair, err := s.issueSession(ctx, acct, in.DeviceID, in.DeviceName, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, acct.ID, "auth.login", "session", in.DeviceName)
	return pair, nil
}

// Refresh verifies the refresh token against both its signature and a
// matching unexpired session, then rotates: the consumed session is deleted
// and a new one is persisted for the new refresh token. The old token is
// unusable afterwards regardless of its remaining signature validity.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	identity, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	acct, err := s.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	sess, err := s.findSessionByToken(ctx, acct.ID, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefreshToken
	}
	if sess.Expired(s.now()) {
		return nil, ErrRefreshTokenExpired
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return nil, err
	}
	pair, err := s.issueSession(ctx, acct, sess.DeviceID, sess.DeviceName, sess.IPAddress, sess.UserAgent)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, acct.ID, "auth.refresh", "session", "")
	return pair, nil
}

// Logout deletes the session matching the refresh token, if any. It is
// idempotent: an unknown, already-revoked, or malformed token is still a
// successful logout.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) error {
	if accountID == "" || refreshToken == "" {
		return nil
	}
	sess, err := s.findSessionByToken(ctx, accountID, refreshToken)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	s.logAudit(ctx, accountID, "auth.logout", "session", "")
	return nil
}

// WhoAmI returns the public projection of the account, or ErrAccountNotFound
// when the subject no longer resolves to a stored account.
func (s *AuthService) WhoAmI(ctx context.Context, accountID string) (*accountdomain.Public, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	public := acct.Public()
	return &public, nil
}

// issueSession mints a token pair and persists the session holding the
// refresh token's hash.
func (s *AuthService) issueSession(ctx context.Context, acct *accountdomain.Account, deviceID, deviceName, ip, userAgent string) (*TokenPair, error) {
	refreshToken, _, err := s.tokens.IssueRefresh(acct.ID, acct.Username, acct.Email)
	if err != nil {
		return nil, err
	}
	accessToken, _, err := s.tokens.IssueAccess(acct.ID, acct.Username, acct.Email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &sessiondomain.Session{
		ID:         uuid.New().String(),
		OwnerID:    acct.ID,
		TokenHash:  security.HashRefreshToken(refreshToken),
		DeviceID:   deviceID,
		DeviceName: deviceName,
		IPAddress:  ip,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.sessionTTL),
		CreatedAt:  now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         acct.Public(),
	}, nil
}

// findSessionByToken scans the owner's sessions for one whose stored hash
// matches the raw token. The comparison is constant-time per record.
func (s *AuthService) findSessionByToken(ctx context.Context, ownerID, refreshToken string) (*sessiondomain.Session, error) {
	sessions, err := s.sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if security.RefreshTokenHashEqual(refreshToken, sess.TokenHash) {
			return sess, nil
		}
	}
	return nil, nil
}

func (s *AuthService) logAudit(ctx context.Context, accountID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, accountID, action, resource, metadata)
}
