package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/KromaEnergia/api-auth/internal/utils"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken *string `json:"refreshToken"`
}

// Handler expõe o Service via HTTP.
type Handler struct {
	Service    *Service
	TrustProxy bool
}

func NewHandler(service *Service, trustProxy bool) *Handler {
	return &Handler{Service: service, TrustProxy: trustProxy}
}

func (h *Handler) clientInfo(r *http.Request) ClientInfo {
	return ClientInfo{IP: utils.ClientIP(r, h.TrustProxy), UserAgent: r.UserAgent()}
}

// Login POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "payload inválido", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		http.Error(w, "email e senha são obrigatórios", http.StatusBadRequest)
		return
	}

	pair, err := h.Service.Login(r.Context(), req.Email, req.Password, h.clientInfo(r))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "credenciais inválidas", http.StatusUnauthorized)
			return
		}
		h.Service.Logger.Error("falha no login", zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
