package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrBadCredentials covers both unknown user and wrong password so the
// login response does not reveal which it was.
var ErrBadCredentials = errors.New("user: bad credentials")

// UserService authenticates platform users against the users table.
type UserService struct {
	pool *pgxpool.Pool
}

func NewUserService(pool *pgxpool.Pool) *UserService {
	return &UserService{pool: pool}
}

// Authenticate checks username/password and returns the stable user id.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, error) {
	var (
		id   string
		hash string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, password_sha256 FROM users WHERE username = $1`, username).
		Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", errors.Wrap(err, "user: query")
	}
	if HashPassword(password) != hash {
		return "", ErrBadCredentials
	}
	return id, nil
}

// HashPassword is the scheme the users table stores: hex sha256.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
