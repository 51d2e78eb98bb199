// Package auth signs users up and in, issues session tokens and tells
// subscribers when a session starts or ends.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown emails, wrong passwords and bad
	// or revoked tokens.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is a validation failure: the address is already
	// registered.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", domain.ErrValidation)
)

const (
	MinPasswordLength = 6
	DefaultTokenTTL   = 7 * 24 * time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository is the persistence auth needs.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Session is returned on sign-up and sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
}

// SessionEvent reports a sign-in or sign-out.
type SessionEvent struct {
	UserID   int64
	Email    string
	SignedIn bool
}

type Service struct {
	users  UserRepository
	secret []byte
	ttl    time.Duration
	cost   int
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	subs    map[int]func(SessionEvent)
	nextSub int
}

func NewService(users UserRepository, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]func(SessionEvent)),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, domain.Invalid("a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, domain.Invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, domain.External("create user", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return s.startSession(user)
}

// SignIn checks the password and issues a new session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, domain.External("get user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(user)
}

func (s *Service) startSession(user *domain.User) (*Session, error) {
	token, claims, err := generateToken(s.secret, user.ID, user.Email, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	s.notify(SessionEvent{UserID: user.ID, Email: user.Email, SignedIn: true})
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    user.ID,
		Email:     user.Email,
	}, nil
}

// Authenticate validates the token signature, expiry and revocation state.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := parseToken(s.secret, token, s.now)
	if err != nil {
		s.logger.Debug("rejected token", "error", err)
		return nil, ErrInvalidCredentials
	}
	revoked, err := s.users.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, domain.External("check token", err)
	}
	if revoked {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// SignOut revokes token. Signing out an already revoked token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := parseToken(s.secret, token, s.now)
	if err != nil {
		return ErrInvalidCredentials
	}
	revoked, err := s.users.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return domain.External("check token", err)
	}
	if revoked {
		return nil
	}
	if err := s.users.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return domain.External("revoke token", err)
	}
	s.logger.Info("user signed out", "user_id", claims.UserID)
	s.notify(SessionEvent{UserID: claims.UserID, Email: claims.Email, SignedIn: false})
	return nil
}

// Subscribe registers fn for session changes and returns a func that
// removes it.
func (s *Service) Subscribe(fn func(SessionEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) notify(ev SessionEvent) {
	s.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
