// Package csrf implementa a proteção double-submit cookie: o valor do desafio
// vai num cookie e o cliente devolve o mesmo valor no cabeçalho x-csrf-token.
// O desafio é HMAC(segredo, chave de sessão + nonce), portanto não há estado no servidor.
//
// A chave de sessão padrão é um id aleatório no cookie csrf_sid. A amarração ao IP do
// cliente continua disponível com CSRF_SESSION_BINDING=ip, mas quebra para clientes que
// trocam de endereço ou compartilham NAT.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/KromaEnergia/api-auth/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CookieName        = "csrf_token"
	HeaderName        = "x-csrf-token"
	SessionCookieName = "csrf_sid"
	// TestToken é devolvido em modo de teste, quando a proteção está desligada.
	TestToken = "test-csrf-token"

	BindingCookie = "cookie"
	BindingIP     = "ip"
)

var (
	ErrMissingToken   = errors.New("token CSRF ausente")
	ErrTokenMismatch  = errors.New("token CSRF não confere")
	ErrInvalidToken   = errors.New("token CSRF inválido")
	ErrMissingSession = errors.New("sessão CSRF ausente")
)

// Options são lidas da Config uma única vez na montagem do router.
type Options struct {
	Secret       string
	TestMode     bool
	CookieSecure bool
	// Binding escolhe a chave de sessão: "cookie" (padrão) ou "ip".
	Binding    string
	TrustProxy bool
}

type Guard struct {
	secret       []byte
	testMode     bool
	cookieSecure bool
	binding      string
	trustProxy   bool
	logger       *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	binding := opts.Binding
	if binding != BindingIP {
		binding = BindingCookie
	}
	return &Guard{
		secret:       []byte(opts.Secret),
		testMode:     opts.TestMode,
		cookieSecure: opts.CookieSecure,
		binding:      binding,
		trustProxy:   opts.TrustProxy,
		logger:       logger,
	}
}

// Issue gera um novo desafio, grava o cookie e devolve o valor para o cliente.
func (g *Guard) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	if g.testMode {
		return TestToken, nil
	}
	key, err := g.sessionKey(w, r, true)
	if err != nil {
		return "", err
	}
	nonce, err := utils.GerarTokenAleatorio(32)
	if err != nil {
		return "", err
	}
	token := nonce + "." + g.sign(key, nonce)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Handler GET /api/csrf-token
func (g *Guard) Handler(w http.ResponseWriter, r *http.Request) {
	token, err := g.Issue(w, r)
	if err != nil {
		g.logger.Error("falha ao gerar token CSRF", zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

// Protect rejeita com 403 requisições POST/PUT/PATCH/DELETE sem o par cookie/cabeçalho correto.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.testMode || !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if err := g.Validate(r); err != nil {
			g.logger.Info("requisição recusada pelo CSRF",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			http.Error(w, "token CSRF inválido", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Validate confere cabeçalho == cookie e a assinatura do desafio para a sessão atual.
func (g *Guard) Validate(r *http.Request) error {
	header := strings.TrimSpace(r.Header.Get(HeaderName))
	cookie, err := r.Cookie(CookieName)
	if header == "" || err != nil || cookie.Value == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return ErrTokenMismatch
	}

	nonce, mac, ok := strings.Cut(cookie.Value, ".")
	if !ok || nonce == "" || mac == "" {
		return ErrInvalidToken
	}
	key, err := g.sessionKey(nil, r, false)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(mac), []byte(g.sign(key, nonce))) {
		return ErrInvalidToken
	}
	return nil
}

func (g *Guard) sign(key, nonce string) string {
	m := hmac.New(sha256.New, g.secret)
	m.Write([]byte(key))
	m.Write([]byte("!"))
	m.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// sessionKey devolve a chave que amarra o desafio ao cliente. No modo "ip" é o
// endereço de rede (frágil atrás de NAT). No modo "cookie" é um id aleatório
// guardado em csrf_sid, criado na emissão quando ainda não existe.
func (g *Guard) sessionKey(w http.ResponseWriter, r *http.Request, create bool) (string, error) {
	if g.binding == BindingIP {
		return utils.ClientIP(r, g.trustProxy), nil
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value, nil
		}
	}
	if !create {
		return "", ErrMissingSession
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
