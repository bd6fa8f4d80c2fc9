package memory

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

type users struct{ store *Store }

var _ repository.UserRepository = (*users)(nil)

// checkUnique mirrors the users_email_key and users_nickname_key constraints
func (u *users) checkUnique(user *domain.User) error {
	for id, existing := range u.store.data.users {
		if id == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if existing.Nickname == user.Nickname {
			return repository.ErrNicknameTaken
		}
	}
	return nil
}

func (u *users) Create(ctx context.Context, user *domain.User) error {
	u.store.wlock(ctx)
	defer u.store.wunlock(ctx)

	if err := u.checkUnique(user); err != nil {
		return err
	}
	u.store.data.users[user.ID] = *user
	return nil
}

func (u *users) Update(ctx context.Context, user *domain.User) error {
	u.store.wlock(ctx)
	defer u.store.wunlock(ctx)

	existing, ok := u.store.data.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := u.checkUnique(user); err != nil {
		return err
	}

	existing.Email = user.Email
	existing.Nickname = user.Nickname
	existing.Address = user.Address
	existing.PaymentMethod = user.PaymentMethod
	existing.UpdatedAt = user.UpdatedAt
	u.store.data.users[user.ID] = existing
	return nil
}

func (u *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	u.store.wlock(ctx)
	defer u.store.wunlock(ctx)

	existing, ok := u.store.data.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	existing.PasswordHash = passwordHash
	existing.UpdatedAt = time.Now().UTC()
	u.store.data.users[id] = existing
	return nil
}

func (u *users) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	u.store.wlock(ctx)
	defer u.store.wunlock(ctx)

	existing, ok := u.store.data.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	existing.Role = role
	existing.UpdatedAt = time.Now().UTC()
	u.store.data.users[id] = existing
	return nil
}

func (u *users) find(ctx context.Context, match func(domain.User) bool) (*domain.User, error) {
	u.store.rlock(ctx)
	defer u.store.runlock(ctx)

	for _, user := range u.store.data.users {
		if match(user) {
			cp := user
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (u *users) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return u.find(ctx, func(user domain.User) bool { return user.ID == id })
}

func (u *users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return u.find(ctx, func(user domain.User) bool { return user.Email == email })
}

func (u *users) FindByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	return u.find(ctx, func(user domain.User) bool { return user.Nickname == nickname })
}

func (u *users) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	return u.find(ctx, func(user domain.User) bool { return user.Email == login || user.Nickname == login })
}

type refreshTokens struct{ store *Store }

var _ repository.RefreshTokenRepository = (*refreshTokens)(nil)

func (r *refreshTokens) Create(ctx context.Context, token *domain.RefreshToken) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.data.users[token.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	r.store.data.tokens[token.Token] = *token
	return nil
}

func (r *refreshTokens) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	stored, ok := r.store.data.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if stored.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return &stored, nil
}

func (r *refreshTokens) Revoke(ctx context.Context, token string) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	stored, ok := r.store.data.tokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	stored.Revoked = true
	r.store.data.tokens[token] = stored
	return nil
}

func (r *refreshTokens) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	for key, stored := range r.store.data.tokens {
		if stored.UserID == userID && !stored.Revoked {
			stored.Revoked = true
			r.store.data.tokens[key] = stored
		}
	}
	return nil
}

func (r *refreshTokens) PurgeStale(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	var purged int64
	for key, stored := range r.store.data.tokens {
		if stored.UserID == userID && (stored.Revoked || stored.ExpiresAt.Before(now)) {
			delete(r.store.data.tokens, key)
			purged++
		}
	}
	return purged, nil
}
