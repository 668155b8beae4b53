package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"gradevault/backend/internal/audit"
	"gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/mfa"
	mfadomain "gradevault/backend/internal/mfa/domain"
	"gradevault/backend/internal/mfa/mail"
	"gradevault/backend/internal/security"
)

// Sentinel errors for auth service; handler maps them to gRPC codes.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidOTP             = errors.New("invalid, expired, or already used code")
	ErrInvalidTOTP            = errors.New("invalid authenticator code")
	ErrMFAAlreadyEnabled      = errors.New("authenticator already enrolled")
	ErrMFANotEnrolled         = errors.New("no authenticator enrolled")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
)

// RateLimitedError reports a locked-out verification target with a concrete
// retry-after duration.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// Next steps a login can require before session credentials are issued.
const (
	StepOTP  = "otp"
	StepTOTP = "totp"
)

// LoginResult tells the caller which verification step comes next. DevOTP is
// set only when the dev OTP return mode is enabled.
type LoginResult struct {
	UserID       string
	NextStep     string
	OTPExpiresAt time.Time
	DevOTP       string
}

// AuthResult holds the outcome of Register (user_id only) or a completed
// authentication (tokens).
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Role         string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateTOTPSecret(ctx context.Context, id string, secret string) error
	EnableMFA(ctx context.Context, id string) error
}

// OTPRepo is the minimal one-time credential repository needed by the auth service.
type OTPRepo interface {
	Create(ctx context.Context, c *mfadomain.OneTimeCredential) error
	GetLatestForUser(ctx context.Context, userID string) (*mfadomain.OneTimeCredential, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptLimiter gates OTP and authenticator code verification per email.
type AttemptLimiter interface {
	IsLimited(key string) (bool, time.Duration)
	RecordFailure(key string) (remaining int, locked bool)
	RecordSuccess(key string)
}

// DevOTPStore exposes issued plain OTPs to clients in dev mode only.
type DevOTPStore interface {
	Put(ctx context.Context, email, otp string, expiresAt time.Time)
}

// AuthService implements registration and the two-factor login pipeline:
// password, then a mailed one-time code, then an authenticator code.
type AuthService struct {
	userRepo    UserRepo
	otpRepo     OTPRepo
	limiter     AttemptLimiter
	mailer      mail.Sender
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	auditor     audit.AuditLogger
	totpIssuer  string
	otpTTL      time.Duration
	devOTPStore DevOTPStore
}

// NewAuthService returns an AuthService with the given dependencies.
// devOTPStore may be nil; then issued OTPs are never exposed to clients.
func NewAuthService(
	userRepo UserRepo,
	otpRepo OTPRepo,
	limiter AttemptLimiter,
	mailer mail.Sender,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditor audit.AuditLogger,
	totpIssuer string,
	otpTTL time.Duration,
	devOTPStore DevOTPStore,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		otpRepo:     otpRepo,
		limiter:     limiter,
		mailer:      mailer,
		hasher:      hasher,
		tokens:      tokens,
		auditor:     auditor,
		totpIssuer:  totpIssuer,
		otpTTL:      otpTTL,
		devOTPStore: devOTPStore,
	}
}

// Register creates a user with a fresh key pair. Only graders keep the
// private half; subjects and admins hold the public key alone.
// Returns AuthResult with UserID only; the caller must complete the login
// pipeline to get tokens.
func (s *AuthService) Register(ctx context.Context, name, email, password string, role domain.Role) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	publicPEM, privatePEM, err := security.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if role != domain.RoleGrader {
		privatePEM = ""
	}
	user := &domain.User{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(name),
		Email:         email,
		Role:          role,
		PasswordHash:  hashed,
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
		CreatedAt:     time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, user.ID, "register", "auth", `{"role":"`+string(role)+`"}`)
	return &AuthResult{UserID: user.ID, Role: string(role)}, nil
}

// Login verifies the password and starts the second factor: identities with
// an enrolled authenticator are challenged for a rolling code directly,
// everyone else gets a mailed one-time code.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a hash anyway so unknown emails take as long as wrong passwords.
		s.hasher.Verify([]byte(password), "")
		s.auditor.LogEvent(ctx, "", "login_failure", "auth", "")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify([]byte(password), user.PasswordHash) {
		s.auditor.LogEvent(ctx, user.ID, "login_failure", "auth", "")
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		return &LoginResult{UserID: user.ID, NextStep: StepTOTP}, nil
	}

	code, err := mfa.GenerateOTP()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	// Expired codes can never verify; drop them before issuing a new one.
	if _, err := s.otpRepo.DeleteExpired(ctx, now); err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.otpTTL)
	cred := &mfadomain.OneTimeCredential{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		CodeHash:  mfa.HashOTP(code),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.otpRepo.Create(ctx, cred); err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, user.Email, code, expiresAt); err != nil {
		return nil, err
	}
	result := &LoginResult{UserID: user.ID, NextStep: StepOTP, OTPExpiresAt: expiresAt}
	if s.devOTPStore != nil {
		s.devOTPStore.Put(ctx, user.Email, code, expiresAt)
		result.DevOTP = code
	}
	s.auditor.LogEvent(ctx, user.ID, "otp_issued", "auth", "")
	return result, nil
}

// VerifyOTP checks the mailed code against the newest unused credential for
// the email. A match consumes the credential; a consumed or expired
// credential never matches again.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if limited, retryAfter := s.limiter.IsLimited(email); limited {
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	cred, err := s.otpRepo.GetLatestForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if cred == nil || !cred.Usable(now) || !mfa.OTPEqual(code, cred.CodeHash) {
		s.limiter.RecordFailure(email)
		s.auditor.LogEvent(ctx, user.ID, "otp_failure", "auth", "")
		return nil, ErrInvalidOTP
	}
	if err := s.otpRepo.MarkUsed(ctx, cred.ID); err != nil {
		return nil, err
	}
	s.limiter.RecordSuccess(email)
	s.auditor.LogEvent(ctx, user.ID, "otp_verified", "auth", "")
	return &LoginResult{UserID: user.ID, NextStep: StepTOTP}, nil
}

// StartTOTPEnrollment generates a fresh authenticator secret for the user
// and stores it. MFA stays disabled until the first rolling code verifies.
func (s *AuthService) StartTOTPEnrollment(ctx context.Context, email string) (*mfa.TOTPEnrollment, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	enrollment, err := mfa.NewTOTPEnrollment(s.totpIssuer, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateTOTPSecret(ctx, user.ID, enrollment.Secret); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, user.ID, "totp_enroll_started", "auth", "")
	return enrollment, nil
}

// VerifyTOTP checks a rolling authenticator code and, on success, issues
// session credentials. The first success after enrollment marks MFA enabled.
// Attempts are rate limited per email; the stored secret is not consulted
// while the email is locked out.
func (s *AuthService) VerifyTOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if limited, retryAfter := s.limiter.IsLimited(email); limited {
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if user.TOTPSecret == "" {
		return nil, ErrMFANotEnrolled
	}
	if !mfa.ValidateTOTP(code, user.TOTPSecret, time.Now()) {
		s.limiter.RecordFailure(email)
		s.auditor.LogEvent(ctx, user.ID, "totp_failure", "auth", "")
		return nil, ErrInvalidTOTP
	}
	s.limiter.RecordSuccess(email)
	if !user.MFAEnabled {
		if err := s.userRepo.EnableMFA(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	refreshToken, _, _, err := s.tokens.IssueRefresh(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, user.ID, "login_success", "auth", "")
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       user.ID,
		Role:         string(user.Role),
	}, nil
}

// Refresh validates the refresh token and returns a new access token. The
// refresh token itself is kept as-is and stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	ident, err := s.tokens.Validate(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(ident.UserID, ident.Email, ident.Role)
	if err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, ident.UserID, "token_refreshed", "auth", "")
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       ident.UserID,
		Role:         ident.Role,
	}, nil
}

// Me returns the profile of the authenticated user identified by email.
func (s *AuthService) Me(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
