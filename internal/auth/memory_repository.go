package auth

import (
	"context"
	"sync"
	"time"
)

// memoryRepository is the in-process Credential Store. A single RWMutex
// serialises writes, so the email check and the insert are one step.
type memoryRepository struct {
	mu        sync.RWMutex
	nextID    uint
	users     map[uint]*User
	byEmail   map[string]uint
	startups  map[uint]*StartupProfile
	investors map[uint]*InvestorProfile
	now       func() time.Time
}

func NewMemoryRepository() Repository {
	return newMemoryRepository(time.Now)
}

func newMemoryRepository(now func() time.Time) *memoryRepository {
	return &memoryRepository{
		users:     make(map[uint]*User),
		byEmail:   make(map[string]uint),
		startups:  make(map[uint]*StartupProfile),
		investors: make(map[uint]*InvestorProfile),
		now:       now,
	}
}

func (r *memoryRepository) CreateUser(_ context.Context, user *User, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrUserExists
	}

	r.nextID++
	now := r.now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now

	// Clone so callers cannot mutate stored state
	stored := cloneUser(user)
	r.users[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID

	switch {
	case profile.Startup != nil:
		profile.Startup.UserID = user.ID
		p := *profile.Startup
		p.ID = user.ID
		p.CreatedAt, p.UpdatedAt = now, now
		r.startups[user.ID] = &p
	case profile.Investor != nil:
		profile.Investor.UserID = user.ID
		p := *profile.Investor
		p.ID = user.ID
		p.CreatedAt, p.UpdatedAt = now, now
		r.investors[user.ID] = &p
	}
	return nil
}

func (r *memoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *memoryRepository) GetUserByID(_ context.Context, id uint) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *memoryRepository) GetUserByResetToken(_ context.Context, tokenHash string, now time.Time) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user := r.findByResetToken(tokenHash, now)
	if user == nil {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *memoryRepository) GetProfile(_ context.Context, userID uint) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.startups[userID]; ok {
		c := *p
		return Profile{Startup: &c}, nil
	}
	if p, ok := r.investors[userID]; ok {
		c := *p
		return Profile{Investor: &c}, nil
	}
	return Profile{}, ErrUserNotFound
}

func (r *memoryRepository) SetResetToken(_ context.Context, userID uint, tokenHash string, expiry time.Time) error {
	return r.update(userID, func(u *User) {
		u.ResetToken = &tokenHash
		u.ResetTokenExpiry = &expiry
	})
}

func (r *memoryRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.findByResetToken(tokenHash, now)
	if user == nil {
		return ErrResetTokenInvalid
	}

	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	user.PasswordChangedAt = &now
	user.UpdatedAt = r.now()
	return nil
}

func (r *memoryRepository) UpdateNames(_ context.Context, userID uint, firstName, lastName string) error {
	return r.update(userID, func(u *User) {
		u.FirstName = firstName
		u.LastName = lastName
	})
}

func (r *memoryRepository) SetActive(_ context.Context, userID uint, active bool) error {
	return r.update(userID, func(u *User) {
		u.IsActive = active
	})
}

func (r *memoryRepository) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for _, u := range r.users {
		if u.ResetToken != nil && u.ResetTokenExpiry != nil && !u.ResetTokenExpiry.After(now) {
			u.ResetToken = nil
			u.ResetTokenExpiry = nil
			cleared++
		}
	}
	return cleared, nil
}

func (r *memoryRepository) Ping(context.Context) error {
	return nil
}

func (r *memoryRepository) update(userID uint, fn func(u *User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		return ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = r.now()
	return nil
}

// findByResetToken must be called with r.mu held.
func (r *memoryRepository) findByResetToken(tokenHash string, now time.Time) *User {
	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == tokenHash &&
			u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now) {
			return u
		}
	}
	return nil
}

func cloneUser(u *User) *User {
	c := *u
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	if u.ResetTokenExpiry != nil {
		e := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &e
	}
	if u.PasswordChangedAt != nil {
		p := *u.PasswordChangedAt
		c.PasswordChangedAt = &p
	}
	return &c
}
