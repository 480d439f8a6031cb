package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientInfo acompanha o registro para auditoria; não participa da validação.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ReuseAlerter é notificado quando um refresh token já rotacionado é reapresentado.
type ReuseAlerter interface {
	RefreshTokenReused(ctx context.Context, userID uint, ip string)
}

// RefreshStore persiste apenas o hash dos refresh tokens e controla rotação e revogação.
type RefreshStore struct {
	DB      *gorm.DB
	Issuer  *Issuer
	Users   CredentialStore
	Logger  *zap.Logger
	Alerter ReuseAlerter

	// MaxPerUser limita os tokens ativos por usuário; os mais antigos são removidos.
	MaxPerUser int
	// RevokeFamilyOnReuse revoga a linhagem inteira quando um token revogado é reapresentado.
	RevokeFamilyOnReuse bool

	now func() time.Time
}

func NewRefreshStore(db *gorm.DB, issuer *Issuer, users CredentialStore, maxPerUser int, logger *zap.Logger) *RefreshStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPerUser < 1 {
		maxPerUser = 5
	}
	return &RefreshStore{
		DB:         db,
		Issuer:     issuer,
		Users:      users,
		Logger:     logger,
		MaxPerUser: maxPerUser,
		now:        time.Now,
	}
}

// Migrate cria/atualiza a tabela refresh_tokens.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RefreshToken{})
}

// HashToken é o SHA-256 hexadecimal do token cru.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Persist grava o hash do token, respeitando o limite de tokens ativos do usuário.
func (s *RefreshStore) Persist(ctx context.Context, userID uint, raw string, info ClientInfo) error {
	return s.persist(s.DB.WithContext(ctx), userID, raw, info)
}

func (s *RefreshStore) persist(db *gorm.DB, userID uint, raw string, info ClientInfo) error {
	s.prune(db, userID)

	now := s.now()
	rec := RefreshToken{
		UserID:        userID,
		TokenHash:     HashToken(raw),
		SchemaVersion: SchemaHashed,
		ExpiresAt:     now.Add(RefreshTTL),
		CreatedByIP:   info.IP,
		UserAgent:     truncate(info.UserAgent, 255),
		CreatedAt:     now,
	}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("gravar refresh token: %w", err)
	}
	return nil
}

// prune apaga os tokens ativos mais antigos além de MaxPerUser-1.
// Falhas são apenas logadas.
func (s *RefreshStore) prune(db *gorm.DB, userID uint) {
	var ids []uint
	err := db.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, s.now()).
		Order("created_at DESC, id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		s.Logger.Warn("falha ao listar refresh tokens ativos", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	keep := s.MaxPerUser - 1
	if len(ids) <= keep {
		return
	}
	stale := ids[keep:]
	if err := db.Where("user_id = ? AND id IN ?", userID, stale).Delete(&RefreshToken{}).Error; err != nil {
		s.Logger.Warn("falha ao remover refresh tokens antigos", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	s.Logger.Debug("refresh tokens antigos removidos", zap.Uint("user_id", userID), zap.Int("removidos", len(stale)))
}

// Verify valida o JWT e depois exige um registro ativo com o mesmo hash.
// Tokens malformados ou expirados não chegam ao banco.
func (s *RefreshStore) Verify(ctx context.Context, raw string) (*RefreshClaims, *RefreshToken, error) {
	claims, err := s.Issuer.ParseRefreshToken(raw)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	var rec RefreshToken
	err = s.DB.WithContext(ctx).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", HashToken(raw), false, s.now()).
		First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.Logger.Error("falha ao consultar refresh token", zap.Error(err))
		}
		return nil, nil, ErrInvalidToken
	}
	if rec.UserID != claims.UserID {
		return nil, nil, ErrInvalidToken
	}
	return claims, &rec, nil
}

// Revoke marca o token como revogado. Best-effort: erros de banco são logados
// e nunca propagados, para que o logout não dependa do banco.
func (s *RefreshStore) Revoke(ctx context.Context, raw string, replacementRaw string) {
	var replacement *string
	if replacementRaw != "" {
		h := HashToken(replacementRaw)
		replacement = &h
	}
	if _, err := s.revokeActive(s.DB.WithContext(ctx), HashToken(raw), replacement); err != nil {
		s.Logger.Warn("falha ao revogar refresh token", zap.Error(err))
	}
}

// revokeActive é a atualização condicional revoked=false -> true.
// Retorna false quando nenhum registro ativo tinha o hash.
func (s *RefreshStore) revokeActive(db *gorm.DB, hash string, replacement *string) (bool, error) {
	now := s.now()
	updates := map[string]any{
		"revoked":    true,
		"revoked_at": now,
	}
	if replacement != nil {
		updates["replaced_by_token_hash"] = *replacement
	}
	res := db.Model(&RefreshToken{}).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", hash, false, now).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// truncate corta em no máximo n bytes sem partir um caractere UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
