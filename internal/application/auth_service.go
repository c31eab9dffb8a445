package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// CredentialStore exposes the account operations required by the auth service.
type CredentialStore interface {
	CreateUser(ctx context.Context, creds persistence.UserCredentials) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (persistence.UserCredentials, error)
}

// AuthSessionStore captures the persistence interactions for issued auth sessions.
type AuthSessionStore interface {
	CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error)
	GetAuthSession(ctx context.Context, id string) (persistence.AuthSession, error)
	RevokeAuthSession(ctx context.Context, id string, revokedAt time.Time) (persistence.AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// tokenClaims is the JWT payload issued at login. The registered ID doubles as
// the stored auth session ID so tokens can be revoked server-side.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService coordinates account registration, login, and token validation.
type AuthService struct {
	credentials    CredentialStore
	sessions       AuthSessionStore
	verifyPassword PasswordVerifier
	signingKey     []byte
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions AuthSessionStore, signingKey []byte, idGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, signingKey, idGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions AuthSessionStore, signingKey []byte, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: VerifyPassword,
		signingKey:     signingKey,
		idGenerator:    idGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// RegisterUser validates input, hashes the password, and persists a new account.
func (s *AuthService) RegisterUser(ctx context.Context, params RegisterUserParams) (user persistence.User, err error) {
	if s == nil || s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "RegisterUser", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
	if _, mailErr := mail.ParseAddress(email); email == "" || mailErr != nil {
		vErr.Add("email", "a valid email address is required")
	}
	if len(params.Password) < 8 {
		vErr.Add("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(params.DisplayName) == "" {
		vErr.Add("display_name", "display name is required")
	}
	switch params.Role {
	case lifecycle.RoleClient, lifecycle.RoleInterpreter:
	case lifecycle.RoleAdmin:
		if !params.Principal.IsAdmin() {
			err = ErrUnauthorized
			return
		}
	default:
		vErr.Add("role", "role must be CLIENT, INTERPRETER, or ADMIN")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, err := HashPassword(params.Password, DefaultArgon2idParams)
	if err != nil {
		return
	}

	now := s.now()
	user = persistence.User{
		ID:          s.idGenerator(),
		Email:       email,
		DisplayName: strings.TrimSpace(params.DisplayName),
		Role:        string(params.Role),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.credentials.CreateUser(ctx, persistence.UserCredentials{User: user, PasswordHash: hash}); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyExists
		}
		user = persistence.User{}
		return
	}

	return
}

// Authenticate validates credentials and issues a signed token backed by a
// revocable auth session.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil || s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds persistence.UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if creds.Disabled {
		err = ErrAccountDisabled
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	session := persistence.AuthSession{
		ID:        s.idGenerator(),
		UserID:    creds.User.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if s.sessions != nil {
		if err = s.sessions.DeleteExpiredAuthSessions(ctx, now); err != nil {
			return
		}
		if session, err = s.sessions.CreateAuthSession(ctx, session); err != nil {
			return
		}
	}

	claims := tokenClaims{
		Role: creds.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   creds.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	var token string
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Token: token, ExpiresAt: session.ExpiresAt}
	return
}

// ValidateToken verifies the signed token, checks that its backing auth
// session is still live, and returns the acting principal.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", strings.TrimSpace(token) != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	claims, parseErr := s.parseToken(token)
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			err = ErrSessionExpired
			return
		}
		err = ErrUnauthorized
		return
	}

	if s.sessions != nil {
		var session persistence.AuthSession
		session, err = s.sessions.GetAuthSession(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				err = ErrUnauthorized
			}
			return
		}
		if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
			err = ErrSessionRevoked
			return
		}
		if !session.ExpiresAt.After(s.now()) {
			err = ErrSessionExpired
			return
		}
	}

	principal = Principal{UserID: claims.Subject, Role: lifecycle.Role(claims.Role)}
	return
}

// RevokeToken invalidates the auth session backing the token.
func (s *AuthService) RevokeToken(ctx context.Context, token string) error {
	if s == nil || s.sessions == nil {
		return fmt.Errorf("auth session store not configured")
	}

	logger := s.loggerWith(ctx, "RevokeToken")

	claims, err := s.parseToken(token)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		logger.ErrorContext(ctx, "failed to revoke token", "error", err, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	now := s.now()
	if _, err := s.sessions.RevokeAuthSession(ctx, claims.ID, now); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	if err := s.sessions.DeleteExpiredAuthSessions(ctx, now); err != nil {
		logger.ErrorContext(ctx, "failed to prune expired auth sessions", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "token revoked")
	return nil
}

func (s *AuthService) parseToken(token string) (*tokenClaims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrUnauthorized
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(trimmed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return claims, err
	}
	return claims, nil
}
