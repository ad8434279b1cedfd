package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
	"github.com/openlecture/portal/internal/testutil"
)

func TestSessionRepo_Create_Lookup_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewSessionRepo(db)
		user := testutil.NewTestUser()

		id, err := repo.Create(ctx, user)
		require.NoError(t, err)
		assert.Len(t, id, 24)

		// fresh sessions resolve
		sess, err := repo.Lookup(ctx, id, 30*24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, id, sess.ID)
		assert.Equal(t, user.Username, sess.Username)
		assert.Equal(t, user.DisplayName, sess.DisplayName)
		assert.Equal(t, user.Roles.Sorted(), sess.Roles)
		require.NotNil(t, sess.Email)
		assert.Equal(t, *user.Email, *sess.Email)
		assert.WithinDuration(t, time.Now(), sess.CreatedAt, time.Minute)

		// logout removes the row
		require.NoError(t, repo.Delete(ctx, id))
		gone, err := repo.Lookup(ctx, id, 30*24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, gone)

		// deleting again is not an error
		require.NoError(t, repo.Delete(ctx, id))
	})
}

func TestSessionRepo_Lookup_UnknownID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewSessionRepo(db)
		sess, err := repo.Lookup(context.Background(), domainauth.NewSessionID(), time.Hour)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})
}

func TestSessionRepo_Lookup_ExpiryBoundary(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewSessionRepo(db)

		id, err := repo.Create(ctx, testutil.NewTestUser())
		require.NoError(t, err)

		// backdate the row so it is well past a short duration
		_, err = db.ExecContext(ctx,
			`UPDATE user_sessions SET created = now() - interval '2 hours' WHERE id = $1`, id)
		require.NoError(t, err)

		sess, err := repo.Lookup(ctx, id, time.Hour)
		require.NoError(t, err)
		assert.Nil(t, sess, "sessions at or past their duration must not resolve")

		// the same row still resolves under a longer duration
		sess, err = repo.Lookup(ctx, id, 3*time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, sess)
	})
}

func TestSessionRepo_Create_NilEmail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewSessionRepo(db)

		user := testutil.NewTestUser()
		user.Email = nil

		id, err := repo.Create(ctx, user)
		require.NoError(t, err)

		sess, err := repo.Lookup(ctx, id, time.Hour)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Nil(t, sess.Email)
	})
}

func TestSessionRepo_Create_IDCollision(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewSessionRepo(db)

		// pin the generator so the second insert hits the same key
		fixed := domainauth.NewSessionID()
		repo.newID = func() string { return fixed }

		_, err := repo.Create(ctx, testutil.NewTestUser())
		require.NoError(t, err)

		_, err = repo.Create(ctx, testutil.NewTestUser())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrSessionIDCollision))
	})
}

func TestSessionRepo_PurgeExpired(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewSessionRepo(db)

		fresh, err := repo.Create(ctx, testutil.NewTestUser())
		require.NoError(t, err)

		stale, err := repo.Create(ctx, testutil.NewTestUser())
		require.NoError(t, err)
		_, err = db.ExecContext(ctx,
			`UPDATE user_sessions SET created = now() - interval '31 days' WHERE id = $1`, stale)
		require.NoError(t, err)

		purged, err := repo.PurgeExpired(ctx, 30*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		sess, err := repo.Lookup(ctx, fresh, 30*24*time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, sess, "purge must not touch live sessions")

		// nothing left to purge
		purged, err = repo.PurgeExpired(ctx, 30*24*time.Hour)
		require.NoError(t, err)
		assert.Zero(t, purged)
	})
}
