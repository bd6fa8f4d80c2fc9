package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestUserService(store *memory.Store) UserService {
	return NewUserService(store.Users(), store.RefreshTokens(), store, TokenConfig{Secret: testSecret})
}

// bcrypt makes every case slow; a few dozen runs are enough.
func slowParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	return parameters
}

func register(t *testing.T, svc UserService, email, nickname, password string) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:           email,
		Nickname:        nickname,
		Password:        password,
		PasswordConfirm: password,
	})
	require.NoError(t, err)
	return user
}

// Property: registration stores a bcrypt hash, never the plaintext
func TestProperty_RegistrationStoresHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(slowParameters())

	properties.Property("passwords are hashed with bcrypt", prop.ForAll(
		func(email, nickname, password string) bool {
			store := memory.NewStore()
			svc := newTestUserService(store)
			ctx := context.Background()

			user, err := svc.Register(ctx, RegisterInput{
				Email:           email,
				Nickname:        nickname,
				Password:        password,
				PasswordConfirm: password,
			})
			if err != nil {
				t.Logf("FAIL: registration failed: %v", err)
				return false
			}

			stored, err := store.Users().FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: could not find stored user: %v", err)
				return false
			}

			if stored.PasswordHash == password {
				t.Logf("FAIL: password stored as plaintext for %s", email)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: stored hash does not match password: %v", err)
				return false
			}

			return stored.Role == domain.RoleCustomer && user.ID == stored.ID
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z][a-z0-9_-]{2,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: a duplicate email or nickname fails with a validation error and
// creates no user row
func TestProperty_DuplicateRegistrationRejected(t *testing.T) {
	properties := gopter.NewProperties(slowParameters())

	properties.Property("second registration with a used email or nickname fails", prop.ForAll(
		func(email, nickname string, reuseEmail bool) bool {
			store := memory.NewStore()
			svc := newTestUserService(store)
			ctx := context.Background()

			if _, err := svc.Register(ctx, RegisterInput{
				Email: email, Nickname: nickname, Password: "secret123", PasswordConfirm: "secret123",
			}); err != nil {
				t.Logf("FAIL: first registration failed: %v", err)
				return false
			}

			second := RegisterInput{Email: "other-" + email, Nickname: nickname, Password: "secret123", PasswordConfirm: "secret123"}
			if reuseEmail {
				second = RegisterInput{Email: email, Nickname: nickname + "x", Password: "secret123", PasswordConfirm: "secret123"}
			}

			_, err := svc.Register(ctx, second)
			kind, ok := domain.KindOf(err)
			if !ok || kind != domain.KindValidation {
				t.Logf("FAIL: expected validation error, got %v", err)
				return false
			}

			if _, err := store.Users().FindByEmail(ctx, second.Email); !reuseEmail && err == nil {
				t.Logf("FAIL: duplicate nickname still created a row")
				return false
			}
			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.com`),
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegister_PasswordConfirmationMustMatch(t *testing.T) {
	svc := newTestUserService(memory.NewStore())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "u@x.com", Nickname: "u1", Password: "secret123", PasswordConfirm: "secret124",
	})
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestLogin_ByEmailOrNickname(t *testing.T) {
	svc := newTestUserService(memory.NewStore())
	ctx := context.Background()
	user := register(t, svc, "u@x.com", "shopper", "secret123")

	for _, login := range []string{"u@x.com", "U@X.com", "shopper"} {
		tokens, got, err := svc.Login(ctx, login, "secret123")
		require.NoError(t, err, login)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, TokenTypeBearer, tokens.TokenType)
		assert.NotEmpty(t, tokens.RefreshToken)

		claims, err := svc.ValidateToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, domain.RoleCustomer, claims.Role)
	}

	_, _, err := svc.Login(ctx, "shopper", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newTestUserService(memory.NewStore())

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: uuid.New(), Role: domain.RoleAdmin})
	signed, err := foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: uuid.New(),
		Role:   domain.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err = expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshAndLogout(t *testing.T) {
	svc := newTestUserService(memory.NewStore())
	ctx := context.Background()
	register(t, svc, "u@x.com", "shopper", "secret123")

	tokens, _, err := svc.Login(ctx, "u@x.com", "secret123")
	require.NoError(t, err)

	access, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	_, err = svc.ValidateToken(access)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tokens.RefreshToken))
	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// unknown tokens log out silently
	assert.NoError(t, svc.Logout(ctx, "unknown"))
}

func TestLogin_PurgesStaleRefreshTokens(t *testing.T) {
	store := memory.NewStore()
	svc := newTestUserService(store)
	ctx := context.Background()
	register(t, svc, "u@x.com", "shopper", "secret123")

	first, _, err := svc.Login(ctx, "shopper", "secret123")
	require.NoError(t, err)
	second, _, err := svc.Login(ctx, "shopper", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, first.RefreshToken))

	_, _, err = svc.Login(ctx, "shopper", "secret123")
	require.NoError(t, err)

	_, err = store.RefreshTokens().FindByToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenNotFound)
	_, err = store.RefreshTokens().FindByToken(ctx, second.RefreshToken)
	assert.NoError(t, err, "live tokens survive")
}

func TestUpdateProfile_RechecksUniqueness(t *testing.T) {
	svc := newTestUserService(memory.NewStore())
	ctx := context.Background()
	first := register(t, svc, "a@x.com", "alpha", "secret123")
	register(t, svc, "b@x.com", "beta", "secret123")

	taken := "beta"
	_, err := svc.UpdateProfile(ctx, first.ID, ProfileUpdate{Nickname: &taken})
	assert.ErrorIs(t, err, repository.ErrNicknameTaken)

	same := "alpha"
	city := domain.Address{City: "Lisbon", Country: "PT"}
	updated, err := svc.UpdateProfile(ctx, first.ID, ProfileUpdate{Nickname: &same, Address: &city})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", updated.Address.City)

	stored, err := svc.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "PT", stored.Address.Country)
}

func TestChangePassword_RevokesRefreshTokens(t *testing.T) {
	svc := newTestUserService(memory.NewStore())
	ctx := context.Background()
	user := register(t, svc, "u@x.com", "shopper", "secret123")

	tokens, _, err := svc.Login(ctx, "shopper", "secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong", "newsecret1"), ErrWrongPassword)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secret123", "newsecret1"))

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Login(ctx, "shopper", "newsecret1")
	assert.NoError(t, err)
}

func TestEnsureAdmin_CreatesOnceAndPromotes(t *testing.T) {
	svc := newTestUserService(memory.NewStore())
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "admin@x.com", "admin", "adminpass1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	again, created, err := svc.EnsureAdmin(ctx, "admin@x.com", "admin", "adminpass1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	customer := register(t, svc, "c@x.com", "customer", "secret123")
	promoted, created, err := svc.EnsureAdmin(ctx, "c@x.com", "ignored", "ignored1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, customer.ID, promoted.ID)
	assert.True(t, promoted.IsAdmin())
}

// failingRoles lets every user call through but refuses role changes.
type failingRoles struct {
	repository.UserRepository
}

func (failingRoles) UpdateRole(context.Context, uuid.UUID, domain.Role) error {
	return errors.New("role update refused")
}

func TestEnsureAdmin_FailedPromotionLeavesNoAccount(t *testing.T) {
	store := memory.NewStore()
	svc := NewUserService(failingRoles{store.Users()}, store.RefreshTokens(), store, TokenConfig{Secret: testSecret})
	ctx := context.Background()

	_, _, err := svc.EnsureAdmin(ctx, "admin@x.com", "admin", "adminpass1")
	require.Error(t, err)

	_, err = store.Users().FindByEmail(ctx, "admin@x.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = store.Users().FindByNickname(ctx, "admin")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	// nothing was left behind, so a healthy retry creates the admin
	admin, created, err := newTestUserService(store).EnsureAdmin(ctx, "admin@x.com", "admin", "adminpass1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin())
}
