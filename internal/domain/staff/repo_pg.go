package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{}

func NewRepoPG() Repository {
	return &repoPG{}
}

func (r *repoPG) conn(ctx context.Context) (queryable, error) {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx, nil
	}
	if pool, ok := db.PoolFromContext(ctx); ok {
		return pool, nil
	}
	return nil, fmt.Errorf("no branch database in context")
}

const userCols = `id, username, password_hash, role, branch`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Branch)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	err = conn.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, branch)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		u.Username, u.PasswordHash, u.Role, u.Branch,
	).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("username already taken")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", username)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `
		UPDATE users SET role = $2, branch = $3 WHERE id = $1`,
		u.ID, u.Role, u.Branch)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", fmt.Sprintf("%d", u.ID))
	}
	return nil
}

func (r *repoPG) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", fmt.Sprintf("%d", id))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", fmt.Sprintf("%d", id))
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
