package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlecture/portal/internal/testutil"
)

func TestUserRepo_UpsertProfile_InsertThenUpdate(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)
		user := testutil.NewTestUser()

		require.NoError(t, repo.UpsertProfile(ctx, user))

		got, err := repo.GetProfile(ctx, user.Username)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.DisplayName, got.DisplayName)
		require.NotNil(t, got.Email)
		assert.Equal(t, *user.Email, *got.Email)
		assert.Equal(t, user.UserRole, got.UserRole)

		// changed attributes overwrite, last write wins
		user.DisplayName = "Renamed User"
		user.Email = nil
		require.NoError(t, repo.UpsertProfile(ctx, user))

		got, err = repo.GetProfile(ctx, user.Username)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Renamed User", got.DisplayName)
		assert.Nil(t, got.Email)
	})
}

func TestUserRepo_UpsertProfile_RequiresUsername(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		user := testutil.NewTestUser()
		user.Username = ""
		require.Error(t, repo.UpsertProfile(context.Background(), user))
	})
}

func TestUserRepo_UpsertProfile_TouchesLastSeen(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		repo := NewUserRepoWithTimeProvider(db, tp)
		user := testutil.NewTestUser()

		require.NoError(t, repo.UpsertProfile(ctx, user))

		var firstSeen time.Time
		err := db.QueryRowContext(ctx,
			`SELECT last_seen FROM users WHERE username = $1`, user.Username).Scan(&firstSeen)
		require.NoError(t, err)

		tp.AddTime(48 * time.Hour)
		require.NoError(t, repo.UpsertProfile(ctx, user))

		var secondSeen time.Time
		err = db.QueryRowContext(ctx,
			`SELECT last_seen FROM users WHERE username = $1`, user.Username).Scan(&secondSeen)
		require.NoError(t, err)

		assert.Equal(t, 48*time.Hour, secondSeen.Sub(firstSeen))
	})
}

func TestUserRepo_GetProfile_UnknownUser(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		got, err := repo.GetProfile(context.Background(), "nobody-here")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
