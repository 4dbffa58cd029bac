package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/apperr"
	"classtrack/internal/roster"
)

// Accounts is the slice of the roster repository the auth flow needs.
type Accounts interface {
	AccountByUsername(ctx context.Context, username string) (roster.Account, error)
	AccountByID(ctx context.Context, id int64) (roster.Account, error)
	SetCurrentSession(ctx context.Context, accountID int64, sessionID string) error
}

// Service issues and validates account sessions.
type Service struct {
	accounts Accounts
	issuer   string
	key      string
	ttl      time.Duration
}

// NewService creates an auth service.
func NewService(accounts Accounts, issuer, key string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{accounts: accounts, issuer: issuer, key: key, ttl: ttl}
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   roster.Account
}

// Login verifies credentials and issues a token whose session id becomes the
// account's single active session; any earlier token is invalidated by the
// same write.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	acc, err := s.accounts.AccountByUsername(ctx, username)
	if err != nil {
		// Credential probing gets the same answer as a wrong password.
		return LoginResult{}, apperr.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, apperr.Unauthorized("invalid credentials")
	}

	sessionID := uuid.NewString()
	if err := s.accounts.SetCurrentSession(ctx, acc.ID, sessionID); err != nil {
		return LoginResult{}, err
	}
	acc.CurrentSessionID = sessionID

	token, exp, err := Issue(strconv.FormatInt(acc.ID, 10), acc.Role, sessionID, s.issuer, s.key, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: exp, Account: acc}, nil
}

// Authenticate parses a token and checks its session id against the stored
// one, reading per request rather than caching.
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (roster.Account, Claims, error) {
	claims, err := Parse(tokenStr, s.key, s.issuer)
	if err != nil {
		return roster.Account{}, Claims{}, apperr.Unauthorized("invalid token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return roster.Account{}, Claims{}, apperr.Unauthorized("invalid token subject")
	}
	acc, err := s.accounts.AccountByID(ctx, id)
	if err != nil {
		return roster.Account{}, Claims{}, apperr.Unauthorized("account not found")
	}
	if acc.CurrentSessionID != claims.SessionID {
		return roster.Account{}, Claims{}, apperr.ErrSessionExpired
	}
	return acc, claims, nil
}

// HashPassword returns the bcrypt hash used for stored account passwords.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
