package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
)

type AccessTokenRepository struct {
	db *sql.DB
}

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// FindByPlainToken resolves a bearer token of the form "<id>|<secret>" (or a
// bare secret) to its stored record. Only the sha256 digest of the secret is
// kept in the database.
func (r *AccessTokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.AccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	var (
		tokenID   *int64
		tokenPart string
	)
	if idx := strings.Index(plainToken, "|"); idx > 0 {
		if id, err := strconv.ParseInt(plainToken[:idx], 10, 64); err == nil {
			tokenID = &id
		}
		tokenPart = plainToken[idx+1:]
	} else {
		tokenPart = plainToken
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hash := fmt.Sprintf("%x", sum)

	var token domain.AccessToken

	if tokenID != nil {
		query := `
			SELECT id, token_hash, user_id, abilities, expires_at
			FROM access_tokens
			WHERE id = $1
			  AND (expires_at IS NULL OR expires_at > $2)
		`
		err := r.db.QueryRowContext(ctx, query, *tokenID, time.Now()).Scan(
			&token.ID,
			&token.TokenHash,
			&token.UserID,
			&token.Abilities,
			&token.ExpiresAt,
		)
		if err == nil && token.TokenHash == hash {
			return &token, nil
		}
	}

	query := `
		SELECT id, token_hash, user_id, abilities, expires_at
		FROM access_tokens
		WHERE token_hash = $1
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, hash, time.Now()).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.Abilities,
		&token.ExpiresAt,
	)
	if err != nil {
		return nil, errors.New("token not found")
	}

	return &token, nil
}
