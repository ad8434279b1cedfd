package data

// Package data provides PostgreSQL-backed repositories for the auth
// core: login sessions and the user directory.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openlecture/portal/internal/data/pgxutil"
	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// SessionRepo persists login sessions in the user_sessions table. It is
// the sole owner of those rows; callers only see StoredSession values.
type SessionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	newID        func() string
}

var _ ports.SessionStore = (*SessionRepo)(nil)

// NewSessionRepo creates a SessionRepo with the real clock.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
		newID:        domainauth.NewSessionID,
	}
}

// NewSessionRepoWithTimeProvider creates a SessionRepo with a custom
// clock (useful for tests).
func NewSessionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SessionRepo {
	return &SessionRepo{DB: db, timeProvider: tp, newID: domainauth.NewSessionID}
}

// Create mints a random session id and inserts a new row. The id is the
// primary key, so a collision shows up as a unique violation; given the
// id's entropy that is practically impossible, and we surface it as a
// hard error instead of retrying.
func (r *SessionRepo) Create(ctx context.Context, user domainauth.User) (string, error) {
	id := r.newID()
	created := r.timeProvider.Now().UTC()

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO user_sessions (id, username, display_name, roles, email, created)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, user.Username, user.DisplayName, user.Roles.Sorted(), user.Email, created)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%w: %w", ports.ErrSessionIDCollision, err)
		}
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// Lookup returns the session with the given id if it is younger than
// maxAge, or nil. Expiry is enforced here on every lookup; the
// maintenance sweep only bounds storage growth.
func (r *SessionRepo) Lookup(
	ctx context.Context,
	id string,
	maxAge time.Duration,
) (*domainauth.StoredSession, error) {
	var out *domainauth.StoredSession
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, username, display_name, roles, email, created
			FROM user_sessions
			WHERE id = $1
			  AND extract(epoch FROM now() - created) < $2::double precision
		`, id, maxAge.Seconds())
		if err != nil {
			return err
		}
		defer rows.Close()

		sess, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.StoredSession])
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		out = &sess
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return out, nil
}

// Delete removes a session row (logout). Unknown ids are not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions whose age is maxAge or older and
// returns how many rows were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	var purged int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			DELETE FROM user_sessions
			WHERE extract(epoch FROM now() - created) >= $1::double precision
		`, maxAge.Seconds())
		if err != nil {
			return err
		}
		purged = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return purged, nil
}
