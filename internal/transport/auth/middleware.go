package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Qliqsee/1159-realty-crm-sub001/internal/domain"
	"github.com/Qliqsee/1159-realty-crm-sub001/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenMiddleware authenticates portal requests with a personal access token,
// taken from the Authorization header or, for websocket handshakes that
// cannot set headers, the token query parameter.
func TokenMiddleware(tokenRepo *repository.AccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token *domain.AccessToken

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				plain := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				if plain != "" {
					t, err := tokenRepo.FindByPlainToken(r.Context(), plain)
					if err != nil {
						log.Printf("[AUTH] header token lookup: %v", err)
					} else {
						token = t
					}
				}
			}

			if token == nil {
				if plain := r.URL.Query().Get("token"); plain != "" {
					t, err := tokenRepo.FindByPlainToken(r.Context(), plain)
					if err != nil {
						log.Printf("[AUTH] query token lookup: %v", err)
					} else {
						token = t
					}
				}
			}

			if token == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, token.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
