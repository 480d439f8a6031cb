// Package ratelimit limita requisições por endereço de cliente com janela deslizante.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/KromaEnergia/api-auth/internal/utils"
	"go.uber.org/zap"
)

const (
	LoginMessage  = "Muitas tentativas de login. Tente novamente em 15 minutos."
	GlobalMessage = "Muitas requisições. Tente novamente mais tarde."
)

type Limiter struct {
	Store  Store
	Max    int
	Window time.Duration
	// SkipSuccessful desconta as respostas 2xx, como no limitador de login.
	SkipSuccessful bool
	Message        string
	Prefix         string
	TrustProxy     bool
	Logger         *zap.Logger

	now func() time.Time
}

func New(store Store, prefix string, max int, window time.Duration, message string) *Limiter {
	return &Limiter{
		Store:   store,
		Max:     max,
		Window:  window,
		Message: message,
		Prefix:  prefix,
		Logger:  zap.NewNop(),
		now:     time.Now,
	}
}

// Middleware aplica o limite. Erros do Store deixam a requisição passar (fail open).
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.Prefix + ":" + utils.ClientIP(r, l.TrustProxy)
		ctx := r.Context()

		count, member, err := l.Store.Hit(ctx, key, l.now(), l.Window)
		if err != nil {
			l.Logger.Warn("rate limit indisponível", zap.String("prefix", l.Prefix), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("RateLimit-Limit", strconv.Itoa(l.Max))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(max(l.Max-count, 0)))
		if count > l.Max {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
			http.Error(w, l.Message, http.StatusTooManyRequests)
			return
		}

		if !l.SkipSuccessful {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= 200 && rec.status < 300 {
			if err := l.Store.Undo(ctx, key, member); err != nil {
				l.Logger.Warn("falha ao descontar tentativa bem-sucedida", zap.Error(err))
			}
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
