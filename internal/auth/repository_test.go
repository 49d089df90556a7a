package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) (Repository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "auth.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &StartupProfile{}, &InvestorProfile{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewRepository(db), db
}

func repositoryImplementations() map[string]func(t *testing.T) Repository {
	return map[string]func(t *testing.T) Repository{
		"memory": func(*testing.T) Repository { return NewMemoryRepository() },
		"gorm": func(t *testing.T) Repository {
			repo, _ := newSQLiteRepository(t)
			return repo
		},
	}
}

func newStoredUser(email string, role Role) *User {
	return &User{
		Email:        email,
		PasswordHash: "digest",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         role,
		IsActive:     true,
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			user := newStoredUser("create@example.com", RoleStartup)
			err := repo.CreateUser(ctx, user, newProfile(RoleStartup, "Ada", "Lovelace", ProfileFields{}))
			require.NoError(t, err)
			require.NotZero(t, user.ID)

			byEmail, err := repo.GetUserByEmail(ctx, "create@example.com")
			require.NoError(t, err)
			assert.Equal(t, user.ID, byEmail.ID)
			assert.Equal(t, RoleStartup, byEmail.Role)
			assert.True(t, byEmail.IsActive)

			byID, err := repo.GetUserByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "create@example.com", byID.Email)

			profile, err := repo.GetProfile(ctx, user.ID)
			require.NoError(t, err)
			require.NotNil(t, profile.Startup)
			assert.Equal(t, user.ID, profile.Startup.UserID)
			assert.Equal(t, "Ada Lovelace's Startup", profile.Startup.CompanyName)

			_, err = repo.GetUserByEmail(ctx, "missing@example.com")
			assert.ErrorIs(t, err, ErrUserNotFound)
			_, err = repo.GetUserByID(ctx, user.ID+100)
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestRepository_DuplicateEmail(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			first := newStoredUser("dup@example.com", RoleInvestor)
			require.NoError(t, repo.CreateUser(ctx, first, newProfile(RoleInvestor, "A", "B", ProfileFields{})))

			second := newStoredUser("dup@example.com", RoleStartup)
			err := repo.CreateUser(ctx, second, newProfile(RoleStartup, "C", "D", ProfileFields{}))
			assert.ErrorIs(t, err, ErrUserExists)
		})
	}
}

func TestRepository_ConcurrentCreateIsUnique(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)

			const attempts = 6
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				errs   []error
				nilErr int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					user := newStoredUser("race@example.com", RoleStartup)
					user.FirstName = fmt.Sprintf("Racer%d", i)
					err := repo.CreateUser(context.Background(), user, newProfile(RoleStartup, user.FirstName, "X", ProfileFields{}))
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						nilErr++
					} else {
						errs = append(errs, err)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, nilErr)
			for _, err := range errs {
				assert.ErrorIs(t, err, ErrUserExists)
			}
		})
	}
}

func TestRepository_ResetTokenLifecycle(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			user := newStoredUser("reset@example.com", RoleStartup)
			require.NoError(t, repo.CreateUser(ctx, user, newProfile(RoleStartup, "A", "B", ProfileFields{})))

			expiry := testEpoch.Add(time.Hour)
			require.NoError(t, repo.SetResetToken(ctx, user.ID, "token-digest", expiry))

			found, err := repo.GetUserByResetToken(ctx, "token-digest", testEpoch)
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)

			_, err = repo.GetUserByResetToken(ctx, "token-digest", expiry)
			assert.ErrorIs(t, err, ErrUserNotFound)
			_, err = repo.GetUserByResetToken(ctx, "other-digest", testEpoch)
			assert.ErrorIs(t, err, ErrUserNotFound)

			err = repo.ConsumeResetToken(ctx, "token-digest", "new-digest", expiry)
			assert.ErrorIs(t, err, ErrResetTokenInvalid)

			consumedAt := testEpoch.Add(time.Minute)
			require.NoError(t, repo.ConsumeResetToken(ctx, "token-digest", "new-digest", consumedAt))

			updated, err := repo.GetUserByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-digest", updated.PasswordHash)
			assert.Nil(t, updated.ResetToken)
			assert.Nil(t, updated.ResetTokenExpiry)
			require.NotNil(t, updated.PasswordChangedAt)
			assert.True(t, updated.PasswordChangedAt.Equal(consumedAt))

			err = repo.ConsumeResetToken(ctx, "token-digest", "other-digest", consumedAt)
			assert.ErrorIs(t, err, ErrResetTokenInvalid)
		})
	}
}

func TestRepository_ClearExpiredResetTokens(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			expired := newStoredUser("expired@example.com", RoleStartup)
			live := newStoredUser("live@example.com", RoleInvestor)
			require.NoError(t, repo.CreateUser(ctx, expired, newProfile(RoleStartup, "A", "B", ProfileFields{})))
			require.NoError(t, repo.CreateUser(ctx, live, newProfile(RoleInvestor, "C", "D", ProfileFields{})))

			require.NoError(t, repo.SetResetToken(ctx, expired.ID, "old", testEpoch.Add(-time.Minute)))
			require.NoError(t, repo.SetResetToken(ctx, live.ID, "new", testEpoch.Add(time.Hour)))

			cleared, err := repo.ClearExpiredResetTokens(ctx, testEpoch)
			require.NoError(t, err)
			assert.Equal(t, int64(1), cleared)

			u, err := repo.GetUserByID(ctx, expired.ID)
			require.NoError(t, err)
			assert.Nil(t, u.ResetToken)
			assert.Nil(t, u.ResetTokenExpiry)

			u, err = repo.GetUserByID(ctx, live.ID)
			require.NoError(t, err)
			require.NotNil(t, u.ResetToken)
			assert.Equal(t, "new", *u.ResetToken)
		})
	}
}

func TestRepository_UpdateNamesAndActive(t *testing.T) {
	for name, newRepo := range repositoryImplementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			user := newStoredUser("names@example.com", RoleInvestor)
			require.NoError(t, repo.CreateUser(ctx, user, newProfile(RoleInvestor, "A", "B", ProfileFields{})))

			require.NoError(t, repo.UpdateNames(ctx, user.ID, "Grace", "Hopper"))
			require.NoError(t, repo.SetActive(ctx, user.ID, false))

			u, err := repo.GetUserByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "Grace", u.FirstName)
			assert.Equal(t, "Hopper", u.LastName)
			assert.False(t, u.IsActive)

			assert.ErrorIs(t, repo.UpdateNames(ctx, user.ID+100, "X", "Y"), ErrUserNotFound)
			assert.ErrorIs(t, repo.SetActive(ctx, user.ID+100, true), ErrUserNotFound)
			assert.NoError(t, repo.Ping(ctx))
		})
	}
}

func TestRepository_ProfileFailureRollsBackUser(t *testing.T) {
	repo, db := newSQLiteRepository(t)
	ctx := context.Background()

	// Occupy the profile slot the next user will need
	require.NoError(t, db.Create(&StartupProfile{UserID: 1, CompanyName: "Squatter"}).Error)

	user := newStoredUser("orphan@example.com", RoleStartup)
	err := repo.CreateUser(ctx, user, newProfile(RoleStartup, "A", "B", ProfileFields{}))
	require.Error(t, err)

	_, err = repo.GetUserByEmail(ctx, "orphan@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	user := newStoredUser("copy@example.com", RoleStartup)
	require.NoError(t, repo.CreateUser(ctx, user, newProfile(RoleStartup, "A", "B", ProfileFields{})))

	user.Email = "mutated@example.com"
	fetched, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy@example.com", fetched.Email)

	fetched.IsActive = false
	again, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, again.IsActive)
}
