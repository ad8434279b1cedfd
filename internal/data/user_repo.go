package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openlecture/portal/internal/data/pgxutil"
	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// UserRepo maintains the users directory table: the profile attributes
// each user was last seen with. It is fed by the profile cache, not by
// the request path directly.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.UserDirectory = (*UserRepo)(nil)

// NewUserRepo creates a UserRepo with the real clock.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a UserRepo with a custom clock.
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// UpsertProfile records the user's current display attributes,
// last-write-wins by wall clock.
func (r *UserRepo) UpsertProfile(ctx context.Context, user domainauth.User) error {
	if user.Username == "" {
		return errors.New("username is required")
	}

	seen := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO users (username, display_name, email, user_role, last_seen)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (username) DO UPDATE SET
				display_name = excluded.display_name,
				email = excluded.email,
				user_role = excluded.user_role,
				last_seen = excluded.last_seen
		`, user.Username, user.DisplayName, user.Email, user.UserRole, seen)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

// userRow mirrors the users table for lookups.
type userRow struct {
	Username    string  `db:"username"`
	DisplayName string  `db:"display_name"`
	Email       *string `db:"email"`
	UserRole    string  `db:"user_role"`
}

// GetProfile returns the stored profile for a username, or nil if the
// user has never been seen.
func (r *UserRepo) GetProfile(ctx context.Context, username string) (*domainauth.User, error) {
	var out *domainauth.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT username, display_name, email, user_role
			FROM users
			WHERE username = $1
		`, username)
		if err != nil {
			return err
		}
		defer rows.Close()

		row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		out = &domainauth.User{
			Username:    row.Username,
			DisplayName: row.DisplayName,
			Email:       row.Email,
			Roles:       domainauth.NewRoleSet(row.UserRole),
			UserRole:    row.UserRole,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query user profile: %w", err)
	}
	return out, nil
}
