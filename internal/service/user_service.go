package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	DefaultAccessTokenExpiration  = 30 * time.Minute
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour

	TokenTypeBearer = "bearer"
)

var (
	ErrInvalidCredentials = domain.NewAuthenticationError("incorrect username or password")
	ErrInvalidToken       = domain.NewAuthenticationError("could not validate credentials")
	ErrTokenExpired       = domain.NewAuthenticationError("token has expired")
	ErrPasswordMismatch   = domain.NewValidationError("passwords do not match")
	ErrWrongPassword      = domain.NewValidationError("current password is incorrect")
)

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Email           string
	Nickname        string
	Password        string
	PasswordConfirm string
	Address         domain.Address
	PaymentMethod   string
}

// ProfileUpdate is a partial update of the caller's own profile. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Email         *string
	Nickname      *string
	Address       *domain.Address
	PaymentMethod *string
}

// TokenPair is what a successful login returns
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// TokenConfig controls JWT signing and lifetimes
type TokenConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// Login accepts either the email or the nickname as login.
	Login(ctx context.Context, login, password string) (*TokenPair, *domain.User, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	// EnsureAdmin creates the admin account, or promotes an existing account
	// with that email. created reports whether a new row was written.
	EnsureAdmin(ctx context.Context, email, nickname, password string) (user *domain.User, created bool, err error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	txManager        repository.TxManager
	tokens           TokenConfig
	now              func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	txManager repository.TxManager,
	tokens TokenConfig,
) UserService {
	if tokens.AccessExpiry <= 0 {
		tokens.AccessExpiry = DefaultAccessTokenExpiration
	}
	if tokens.RefreshExpiry <= 0 {
		tokens.RefreshExpiry = DefaultRefreshTokenExpiration
	}
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		txManager:        txManager,
		tokens:           tokens,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new customer account with a hashed password
func (s *userService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Password != input.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	email := normalizeEmail(input.Email)
	nickname := strings.TrimSpace(input.Nickname)

	if err := s.checkAvailable(ctx, uuid.Nil, email, nickname); err != nil {
		return nil, err
	}

	hashedPassword, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:            uuid.New(),
		Email:         email,
		Nickname:      nickname,
		PasswordHash:  hashedPassword,
		Role:          domain.RoleCustomer,
		Address:       input.Address,
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// A concurrent registration can still win the race; the unique
	// constraints turn that into the same validation errors.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// checkAvailable rejects an email or nickname already used by another account
func (s *userService) checkAvailable(ctx context.Context, self uuid.UUID, email, nickname string) error {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil && existing.ID != self {
		return repository.ErrEmailTaken
	}

	existing, err = s.userRepo.FindByNickname(ctx, nickname)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil && existing.ID != self {
		return repository.ErrNicknameTaken
	}

	return nil
}

// Login authenticates a user and returns JWT tokens
func (s *userService) Login(ctx context.Context, login, password string) (*TokenPair, *domain.User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		login = normalizeEmail(login)
	}

	user, err := s.userRepo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, TokenType: TokenTypeBearer, RefreshToken: refreshToken}, user, nil
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// already gone
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if s.now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.User, error) {
	var user *domain.User
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}

		if update.Email != nil {
			user.Email = normalizeEmail(*update.Email)
		}
		if update.Nickname != nil {
			user.Nickname = strings.TrimSpace(*update.Nickname)
		}
		if update.Address != nil {
			user.Address = *update.Address
		}
		if update.PaymentMethod != nil {
			user.PaymentMethod = *update.PaymentMethod
		}

		if err := s.checkAvailable(ctx, user.ID, user.Email, user.Nickname); err != nil {
			return err
		}

		user.UpdatedAt = s.now()
		return s.userRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password and revokes every refresh token
func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.verifyPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrWrongPassword
	}

	hashedPassword, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
			return err
		}
		return s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
	})
}

func (s *userService) EnsureAdmin(ctx context.Context, email, nickname, password string) (*domain.User, bool, error) {
	email = normalizeEmail(email)

	var (
		admin   *domain.User
		created bool
	)
	// A failed promotion must not leave a customer account behind.
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("failed to look up admin: %w", err)
		}
		if existing != nil {
			if !existing.IsAdmin() {
				if err := s.userRepo.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
					return err
				}
				existing.Role = domain.RoleAdmin
			}
			admin = existing
			return nil
		}

		user, err := s.Register(ctx, RegisterInput{
			Email:           email,
			Nickname:        nickname,
			Password:        password,
			PasswordConfirm: password,
		})
		if err != nil {
			return err
		}
		if err := s.userRepo.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
			return err
		}
		user.Role = domain.RoleAdmin
		admin, created = user, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return admin, created, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with user ID and role claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// generateRefreshToken stores a random opaque token for the user
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	tokenString := hex.EncodeToString(buf)

	now := s.now()
	if _, err := s.refreshTokenRepo.PurgeStale(ctx, user.ID, now); err != nil {
		return "", err
	}

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: now.Add(s.tokens.RefreshExpiry),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}
