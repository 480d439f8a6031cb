package csrf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// issue chama o endpoint de emissão e devolve o token e os cookies gravados.
func issue(t *testing.T, g *Guard, remoteAddr string) (string, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	g.Handler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.CSRFToken, w.Result().Cookies()
}

func mutating(method, token string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, "/api/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if token != "" {
		req.Header.Set(HeaderName, token)
	}
	return req
}

func serve(g *Guard, req *http.Request) int {
	w := httptest.NewRecorder()
	g.Protect(okHandler).ServeHTTP(w, req)
	return w.Code
}

func TestIssue_SetsCookies(t *testing.T) {
	g := New(Options{Secret: "s3cr3t"}, nil)
	token, cookies := issue(t, g, "")
	require.NotEmpty(t, token)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	require.Contains(t, byName, CookieName)
	require.Contains(t, byName, SessionCookieName)
	assert.Equal(t, token, byName[CookieName].Value)
	assert.True(t, byName[CookieName].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, byName[CookieName].SameSite)
}

func TestProtect(t *testing.T) {
	g := New(Options{Secret: "s3cr3t"}, nil)
	token, cookies := issue(t, g, "")

	assert.Equal(t, http.StatusNoContent, serve(g, mutating(http.MethodPut, token, cookies)))
	assert.Equal(t, http.StatusNoContent, serve(g, mutating(http.MethodDelete, token, cookies)))

	assert.Equal(t, http.StatusForbidden, serve(g, mutating(http.MethodPost, "", cookies)), "sem cabeçalho")
	assert.Equal(t, http.StatusForbidden, serve(g, mutating(http.MethodPost, token, nil)), "sem cookie")
	assert.Equal(t, http.StatusForbidden, serve(g, mutating(http.MethodPost, token+"x", cookies)), "cabeçalho diferente")

	assert.Equal(t, http.StatusNoContent, serve(g, mutating(http.MethodGet, "", nil)), "GET não é verificado")
	assert.Equal(t, http.StatusNoContent, serve(g, mutating(http.MethodOptions, "", nil)))
}

func TestValidate_RejectsForgedPair(t *testing.T) {
	g := New(Options{Secret: "s3cr3t"}, nil)
	_, cookies := issue(t, g, "")

	// atacante que consegue gravar cookie e cabeçalho iguais, mas sem conhecer o segredo
	forged := "nonce.assinatura"
	var sid *http.Cookie
	for _, c := range cookies {
		if c.Name == SessionCookieName {
			sid = c
		}
	}
	require.NotNil(t, sid)
	req := mutating(http.MethodPost, forged, []*http.Cookie{sid, {Name: CookieName, Value: forged}})
	assert.ErrorIs(t, g.Validate(req), ErrInvalidToken)

	other := New(Options{Secret: "outro"}, nil)
	token, cookies := issue(t, other, "")
	assert.ErrorIs(t, g.Validate(mutating(http.MethodPost, token, cookies)), ErrInvalidToken)
}

func TestValidate_BoundToSession(t *testing.T) {
	g := New(Options{Secret: "s3cr3t"}, nil)
	tokenA, cookiesA := issue(t, g, "")
	_, cookiesB := issue(t, g, "")

	var csrfA, sidB *http.Cookie
	for _, c := range cookiesA {
		if c.Name == CookieName {
			csrfA = c
		}
	}
	for _, c := range cookiesB {
		if c.Name == SessionCookieName {
			sidB = c
		}
	}
	require.NotNil(t, csrfA)
	require.NotNil(t, sidB)

	assert.ErrorIs(t, g.Validate(mutating(http.MethodPost, tokenA, []*http.Cookie{csrfA, sidB})), ErrInvalidToken)
	assert.ErrorIs(t, g.Validate(mutating(http.MethodPost, tokenA, []*http.Cookie{csrfA})), ErrMissingSession)
}

func TestIPBinding(t *testing.T) {
	g := New(Options{Secret: "s3cr3t", Binding: BindingIP}, nil)
	token, cookies := issue(t, g, "10.0.0.1:5000")
	for _, c := range cookies {
		assert.NotEqual(t, SessionCookieName, c.Name)
	}

	req := mutating(http.MethodPost, token, cookies)
	req.RemoteAddr = "10.0.0.1:6000"
	assert.NoError(t, g.Validate(req))

	req = mutating(http.MethodPost, token, cookies)
	req.RemoteAddr = "10.0.0.2:5000"
	assert.ErrorIs(t, g.Validate(req), ErrInvalidToken)
}

func TestTestMode(t *testing.T) {
	g := New(Options{TestMode: true}, nil)
	token, cookies := issue(t, g, "")
	assert.Equal(t, TestToken, token)
	assert.Empty(t, cookies)

	assert.Equal(t, http.StatusNoContent, serve(g, mutating(http.MethodPost, "", nil)))
}
