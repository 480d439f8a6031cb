package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func decodeRefresh(r *http.Request) (string, bool) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == nil {
		return "", false
	}
	return strings.TrimSpace(*req.RefreshToken), true
}

// Refresh POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeRefresh(r)
	if !ok || raw == "" {
		http.Error(w, "refreshToken é obrigatório", http.StatusBadRequest)
		return
	}
	pair, err := h.Service.Refresh(r.Context(), raw, h.clientInfo(r))
	if err != nil {
		http.Error(w, "refresh token inválido", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout POST /auth/logout. Sempre 200, exceto quando o campo não veio.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeRefresh(r)
	if !ok {
		http.Error(w, "refreshToken é obrigatório", http.StatusBadRequest)
		return
	}
	h.Service.Logout(r.Context(), raw)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout realizado"})
}

// LogoutAll POST /api/auth/logout-all: encerra todas as sessões do usuário autenticado.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Não autenticado", http.StatusUnauthorized)
		return
	}
	n, err := h.Service.LogoutAll(r.Context(), id.UserID)
	if err != nil {
		h.Service.Logger.Error("falha no logout geral", zap.Uint("user_id", id.UserID), zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "sessões encerradas", "revoked": n})
}
