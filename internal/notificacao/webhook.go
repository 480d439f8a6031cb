package notificacao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Webhook envia alertas de segurança para uma URL configurada.
type Webhook struct {
	URL    string
	Client *http.Client
	Logger *zap.Logger
}

func NewWebhook(url string, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
		Logger: logger,
	}
}

// RefreshTokenReused dispara o alerta em segundo plano; falhas só são logadas.
func (h *Webhook) RefreshTokenReused(ctx context.Context, userID uint, ip string) {
	payload := map[string]any{
		"mensagem": "Alerta: refresh token revogado reapresentado",
		"userId":   userID,
		"ip":       ip,
		"em":       time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := h.Enviar(sendCtx, payload); err != nil {
			h.Logger.Warn("erro ao enviar webhook", zap.Error(err))
		}
	}()
}

// Enviar faz o POST JSON e exige resposta 2xx.
func (h *Webhook) Enviar(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode)
	}
	return nil
}
