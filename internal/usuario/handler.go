package usuario

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/KromaEnergia/api-auth/internal/auth"
	"github.com/KromaEnergia/api-auth/internal/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minTamanhoSenha = 8
	// bcrypt recusa senhas acima de 72 bytes
	maxTamanhoSenha = 72
)

// SessionRevoker encerra todas as sessões de um usuário.
type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID uint) (int64, error)
}

// Handler encapsula DB e repository
type Handler struct {
	DB         *gorm.DB
	Repository Repository
	Sessions   SessionRevoker
	Logger     *zap.Logger
}

// NewHandler retorna um handler inicializado
func NewHandler(db *gorm.DB, sessions SessionRevoker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		DB:         db,
		Repository: NewRepository(),
		Sessions:   sessions,
		Logger:     logger,
	}
}

// Register POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "payload inválido", http.StatusBadRequest)
		return
	}
	if msg := validarCadastro(req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	hash, err := utils.HashSenha(req.Password)
	if err != nil {
		h.Logger.Error("falha ao gerar hash de senha", zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}

	u := Usuario{
		Nome:  strings.TrimSpace(req.Name),
		Email: req.Email,
		Senha: hash,
	}
	if err := h.Repository.Criar(h.DB.WithContext(r.Context()), &u); err != nil {
		if errors.Is(err, ErrEmailEmUso) {
			http.Error(w, "email já cadastrado", http.StatusConflict)
			return
		}
		h.Logger.Error("falha ao salvar usuário", zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toDTO(u))
}

func validarCadastro(req registerRequest) string {
	if strings.TrimSpace(req.Name) == "" {
		return "nome é obrigatório"
	}
	email := strings.TrimSpace(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "email inválido"
	}
	return validarSenha(req.Password)
}

func validarSenha(senha string) string {
	if len(senha) < minTamanhoSenha {
		return "a senha deve ter pelo menos 8 caracteres"
	}
	if len(senha) > maxTamanhoSenha {
		return "a senha deve ter no máximo 72 bytes"
	}
	return ""
}

// Me GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	u, err := h.Repository.BuscarPorID(h.DB.WithContext(r.Context()), id.UserID)
	if err != nil {
		http.Error(w, "usuário não encontrado", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(*u))
}

// AtualizarMe PUT /api/me
func (h *Handler) AtualizarMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req atualizarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "payload inválido", http.StatusBadRequest)
		return
	}
	if err := h.Repository.AtualizarNome(h.DB.WithContext(r.Context()), id.UserID, strings.TrimSpace(req.Name)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "usuário não encontrado", http.StatusNotFound)
			return
		}
		http.Error(w, "erro ao atualizar usuário", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("usuário atualizado com sucesso"))
}

// AlterarSenha PUT /api/me/password. Depois da troca todas as sessões são encerradas.
func (h *Handler) AlterarSenha(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req alterarSenhaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "payload inválido", http.StatusBadRequest)
		return
	}
	if msg := validarSenha(req.NewPassword); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	db := h.DB.WithContext(r.Context())
	u, err := h.Repository.BuscarPorID(db, id.UserID)
	if err != nil {
		http.Error(w, "usuário não encontrado", http.StatusNotFound)
		return
	}
	if !utils.CheckSenha(u.Senha, req.CurrentPassword) {
		http.Error(w, "credenciais inválidas", http.StatusUnauthorized)
		return
	}

	hash, err := utils.HashSenha(req.NewPassword)
	if err != nil {
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	if err := h.Repository.AtualizarSenha(db, u.ID, hash, false); err != nil {
		h.Logger.Error("falha ao atualizar senha", zap.Uint("user_id", u.ID), zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	h.encerrarSessoes(r.Context(), u.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "senha alterada; faça login novamente"})
}

// ResetarSenha POST /api/admin/usuarios/{id}/reset-senha (admin). Gera uma senha
// temporária, obriga a redefinição e encerra as sessões do usuário.
func (h *Handler) ResetarSenha(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r)
	if !ok {
		return
	}

	temporaria, err := utils.GerarSenhaTemporaria()
	if err != nil {
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	hash, err := utils.HashSenha(temporaria)
	if err != nil {
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	if err := h.Repository.AtualizarSenha(h.DB.WithContext(r.Context()), userID, hash, true); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "usuário não encontrado", http.StatusNotFound)
			return
		}
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	h.encerrarSessoes(r.Context(), userID)

	writeJSON(w, http.StatusOK, map[string]string{"senhaTemporaria": temporaria})
}

// EncerrarSessoes POST /api/admin/usuarios/{id}/logout-all (admin)
func (h *Handler) EncerrarSessoes(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r)
	if !ok {
		return
	}
	n, err := h.Sessions.LogoutAll(r.Context(), userID)
	if err != nil {
		h.Logger.Error("falha ao encerrar sessões", zap.Uint("user_id", userID), zap.Error(err))
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

// encerrarSessoes não bloqueia a operação do usuário se o banco falhar.
func (h *Handler) encerrarSessoes(ctx context.Context, userID uint) {
	if _, err := h.Sessions.LogoutAll(ctx, userID); err != nil {
		h.Logger.Warn("senha alterada mas sessões não foram revogadas", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		http.Error(w, "ID inválido", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
