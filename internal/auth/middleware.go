package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity é o que os handlers protegidos enxergam do usuário autenticado.
type Identity struct {
	UserID  uint
	Email   string
	IsAdmin bool
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom retorna a identidade anexada por Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Middleware exige "Authorization: Bearer <token>" válido e anexa a identidade ao contexto.
func Middleware(issuer *Issuer, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "Token ausente", http.StatusUnauthorized)
				return
			}
			claims, err := issuer.ParseAccessToken(raw)
			if err != nil {
				logger.Debug("access token recusado", zap.Error(err))
				if errors.Is(err, ErrTokenExpired) {
					http.Error(w, "Token expirado", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Token inválido", http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{
				UserID:  claims.UserID,
				Email:   claims.Email,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFrom(r.Context()); !ok || !id.IsAdmin {
			http.Error(w, "Forbidden (admin only)", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
