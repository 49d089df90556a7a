package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/metrics"
)

const (
	// ResetTokenBytes gives 256 bits of entropy.
	ResetTokenBytes          = 32
	DefaultResetTokenExpiry  = time.Hour
	maxBcryptPasswordBytes   = 72
	defaultMinPasswordLength = 8
)

type Service struct {
	config     *config.AuthConfig
	production bool
	log        *zap.Logger
	repository Repository
	hasher     PasswordHasher
	tokens     *TokenIssuer
	metrics    *metrics.Metrics
	now        func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

type Option func(*Service)

// WithClock replaces time.Now; the TokenIssuer should share the same clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithProduction hides reset links from ForgotPassword results.
func WithProduction(production bool) Option {
	return func(s *Service) {
		s.production = production
	}
}

func NewService(
	config *config.AuthConfig,
	log *zap.Logger,
	repo Repository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	opts ...Option,
) *Service {
	s := &Service{
		config:     config,
		log:        log,
		repository: repo,
		hasher:     hasher,
		tokens:     tokens,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
	Profile   ProfileFields
}

type AuthResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

type ForgotPasswordResult struct {
	Message string
	// ResetLink is only populated outside production.
	ResetLink string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	defer func() { s.observe("register", err) }()

	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := s.validateRegister(in); err != nil {
		return nil, err
	}

	if _, err := s.repository.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, conflictError(MsgEmailInUse)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, s.internal("lookup user by email", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	user := &User{
		Email:        in.Email,
		PasswordHash: digest,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		IsActive:     true,
	}
	profile := newProfile(in.Role, in.FirstName, in.LastName, in.Profile)

	// A concurrent registration may win between the lookup and the insert;
	// the store's unique constraint decides.
	if err := s.repository.CreateUser(ctx, user, profile); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, conflictError(MsgEmailInUse)
		}
		return nil, s.internal("create user", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, s.internal("issue token", err)
	}

	s.log.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return &AuthResult{Token: token, User: user.Summary()}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (_ *AuthResult, err error) {
	defer func() { s.observe("login", err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password are required")
	}

	user, err := s.repository.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same bcrypt cost as a real mismatch
			s.hasher.Verify(password, s.dummy())
			return nil, authenticationError(MsgInvalidCredentials)
		}
		return nil, s.internal("lookup user by email", err)
	}

	if !user.IsActive {
		return nil, authenticationError(MsgAccountDeactivated)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, authenticationError(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, s.internal("issue token", err)
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID))

	return &AuthResult{Token: token, User: user.Summary()}, nil
}

// ForgotPassword succeeds with the same message whether or not the email
// belongs to an account.
func (s *Service) ForgotPassword(ctx context.Context, email string) (_ *ForgotPasswordResult, err error) {
	defer func() { s.observe("forgot_password", err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, validationError("Email is required")
	}

	result := &ForgotPasswordResult{Message: MsgForgotPassword}

	user, err := s.repository.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return result, nil
		}
		return nil, s.internal("lookup user by email", err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return nil, s.internal("generate reset token", err)
	}

	expiry := s.now().Add(s.resetExpiry())
	if err := s.repository.SetResetToken(ctx, user.ID, hash, expiry); err != nil {
		return nil, s.internal("store reset token", err)
	}

	s.log.Info("password reset requested", zap.Uint("user_id", user.ID))

	if !s.production {
		link, err := s.resetLink(token)
		if err != nil {
			return nil, s.internal("build reset link", err)
		}
		result.ResetLink = link
	}

	return result, nil
}

// ResetPassword replaces the password of the user holding token. No session
// token is issued; the user logs in again.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	if token == "" || password == "" {
		return validationError("Token and password are required")
	}
	if err := s.validatePassword(password); err != nil {
		return err
	}

	hash := hashResetToken(token)
	now := s.now()

	if _, err := s.repository.GetUserByResetToken(ctx, hash, now); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return validationError(MsgInvalidResetToken)
		}
		return s.internal("lookup reset token", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return s.internal("hash password", err)
	}

	if err := s.repository.ConsumeResetToken(ctx, hash, digest, now); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			return validationError(MsgInvalidResetToken)
		}
		return s.internal("consume reset token", err)
	}

	s.log.Info("password reset completed")
	return nil
}

// Verify resolves a bearer token to a live, active user.
func (s *Service) Verify(ctx context.Context, token string) (_ *UserSummary, err error) {
	defer func() { s.observe("verify", err) }()

	if token == "" {
		return nil, authenticationError(MsgTokenRequired)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, authenticationError(MsgTokenExpired)
		}
		return nil, authenticationError(MsgInvalidToken)
	}

	user, err := s.repository.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, authenticationError(MsgInvalidUser)
		}
		return nil, s.internal("lookup user by id", err)
	}
	if !user.IsActive {
		return nil, authenticationError(MsgInvalidUser)
	}

	// Tokens carry second-precision iat
	if user.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		return nil, authenticationError(MsgTokenRevoked)
	}

	summary := user.Summary()
	return &summary, nil
}

// Me returns the user and the role profile created at registration.
func (s *Service) Me(ctx context.Context, userID uint) (_ *UserSummary, _ *Profile, err error) {
	defer func() { s.observe("me", err) }()

	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, authenticationError(MsgInvalidUser)
		}
		return nil, nil, s.internal("lookup user by id", err)
	}

	profile, err := s.repository.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, nil, s.internal("load profile", err)
	}

	summary := user.Summary()
	return &summary, &profile, nil
}

func (s *Service) UpdateNames(ctx context.Context, userID uint, firstName, lastName string) (_ *UserSummary, err error) {
	defer func() { s.observe("update_names", err) }()

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, validationError("First name and last name are required")
	}

	if err := s.repository.UpdateNames(ctx, userID, firstName, lastName); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, authenticationError(MsgInvalidUser)
		}
		return nil, s.internal("update names", err)
	}

	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		return nil, s.internal("reload user", err)
	}
	summary := user.Summary()
	return &summary, nil
}

// Deactivate flips the active flag off; users are never deleted.
func (s *Service) Deactivate(ctx context.Context, userID uint) (err error) {
	defer func() { s.observe("deactivate", err) }()

	if err := s.repository.SetActive(ctx, userID, false); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return validationError("User not found")
		}
		return s.internal("deactivate user", err)
	}
	s.log.Info("user deactivated", zap.Uint("user_id", userID))
	return nil
}

func (s *Service) validateRegister(in RegisterInput) error {
	var missing []string
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if in.LastName == "" {
		missing = append(missing, "lastName")
	}
	if in.Role == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return validationError("Missing required fields: " + strings.Join(missing, ", "))
	}

	if !in.Role.Valid() {
		return validationError("Role must be either startup or investor")
	}
	// Reject display-name forms like "Ada <ada@example.com>"
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return validationError("Invalid email format")
	}
	return s.validatePassword(in.Password)
}

func (s *Service) validatePassword(password string) error {
	minLen := s.config.MinPasswordLength
	if minLen <= 0 {
		minLen = defaultMinPasswordLength
	}
	if len(password) < minLen {
		return validationError(fmt.Sprintf("Password must be at least %d characters", minLen))
	}
	if len(password) > maxBcryptPasswordBytes {
		return validationError(fmt.Sprintf("Password must be at most %d bytes", maxBcryptPasswordBytes))
	}
	return nil
}

func (s *Service) resetExpiry() time.Duration {
	if s.config.ResetTokenExpiration > 0 {
		return s.config.ResetTokenExpiration
	}
	return DefaultResetTokenExpiry
}

func (s *Service) resetLink(token string) (string, error) {
	u, err := url.Parse(s.config.ResetURLBase)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("fundnest-timing-equaliser")
		if err != nil {
			s.log.Error("failed to build dummy digest", zap.Error(err))
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

func (s *Service) internal(operation string, err error) error {
	s.log.Error("auth operation failed",
		zap.String("operation", operation),
		zap.Error(err))
	return internalError(operation, err)
}

func (s *Service) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(ErrorCode(err))
	}
	s.metrics.ObserveAuth(operation, outcome)
}

// GenerateResetToken returns a random hex token for the user and the SHA-256
// digest that is stored in its place.
func GenerateResetToken() (token, hash string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
