package notificacao

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnviar(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewWebhook(srv.URL, nil)
	require.NoError(t, h.Enviar(context.Background(), map[string]any{"cnpj": "1"}))
	assert.Equal(t, "1", got["cnpj"])
}

func TestEnviar_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, nil).Enviar(context.Background(), map[string]string{})
	require.Error(t, err)
}

func TestRefreshTokenReused_SendsAsync(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
	}))
	defer srv.Close()

	NewWebhook(srv.URL, nil).RefreshTokenReused(context.Background(), 42, "10.0.0.1")

	select {
	case body := <-received:
		assert.Equal(t, float64(42), body["userId"])
		assert.Equal(t, "10.0.0.1", body["ip"])
	case <-time.After(2 * time.Second):
		t.Fatal("webhook não recebido")
	}
}
