package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Repository is the Credential Store. Implementations must enforce email
// uniqueness atomically at insert time.
type Repository interface {
	// CreateUser inserts user and its role profile as one unit, assigning
	// user.ID. Returns ErrUserExists when the email is taken.
	CreateUser(ctx context.Context, user *User, profile Profile) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uint) (*User, error)
	// GetUserByResetToken finds the user holding tokenHash with an expiry after now.
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	GetProfile(ctx context.Context, userID uint) (Profile, error)
	SetResetToken(ctx context.Context, userID uint, tokenHash string, expiry time.Time) error
	// ConsumeResetToken replaces the password digest and clears the reset
	// token in one step, provided tokenHash is still held and unexpired.
	// Returns ErrResetTokenInvalid otherwise.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) error
	UpdateNames(ctx context.Context, userID uint, firstName, lastName string) error
	SetActive(ctx context.Context, userID uint, active bool) error
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(ctx context.Context, user *User, profile Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrUserExists
			}
			return err
		}

		switch {
		case profile.Startup != nil:
			profile.Startup.UserID = user.ID
			return tx.Create(profile.Startup).Error
		case profile.Investor != nil:
			profile.Investor.UserID = user.ID
			return tx.Create(profile.Investor).Error
		}
		return nil
	})
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *repository) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *repository) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expiry > ?", tokenHash, now.UTC()).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *repository) GetProfile(ctx context.Context, userID uint) (Profile, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	db := r.db.WithContext(ctx)
	if user.Role == RoleStartup {
		var p StartupProfile
		if err := db.Where("user_id = ?", userID).First(&p).Error; err != nil {
			return Profile{}, notFound(err)
		}
		return Profile{Startup: &p}, nil
	}

	var p InvestorProfile
	if err := db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return Profile{}, notFound(err)
	}
	return Profile{Investor: &p}, nil
}

func (r *repository) SetResetToken(ctx context.Context, userID uint, tokenHash string, expiry time.Time) error {
	expiry = expiry.UTC()
	return r.updateUser(ctx, userID, map[string]interface{}{
		"reset_token":        tokenHash,
		"reset_token_expiry": expiry,
	})
}

func (r *repository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) error {
	now = now.UTC()
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("reset_token = ? AND reset_token_expiry > ?", tokenHash, now).
		Updates(map[string]interface{}{
			"password_hash":       passwordHash,
			"reset_token":         nil,
			"reset_token_expiry":  nil,
			"password_changed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}
	return nil
}

func (r *repository) UpdateNames(ctx context.Context, userID uint, firstName, lastName string) error {
	return r.updateUser(ctx, userID, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	})
}

func (r *repository) SetActive(ctx context.Context, userID uint, active bool) error {
	return r.updateUser(ctx, userID, map[string]interface{}{"is_active": active})
}

func (r *repository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("reset_token IS NOT NULL AND reset_token_expiry <= ?", now.UTC()).
		Updates(map[string]interface{}{
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *repository) updateUser(ctx context.Context, userID uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// isUniqueConstraintError covers drivers that do not translate constraint
// violations into gorm.ErrDuplicatedKey.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}
