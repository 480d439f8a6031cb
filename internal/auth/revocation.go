package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Logout revoga o refresh token informado. É idempotente: token desconhecido,
// malformado ou já revogado não gera erro, o logout sempre "funciona".
func (s *RefreshStore) Logout(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	s.Revoke(ctx, raw, "")
}

// LogoutAll revoga todos os refresh tokens ativos do usuário numa única atualização.
func (s *RefreshStore) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("revogar sessões do usuário %d: %w", userID, res.Error)
	}
	s.Logger.Info("sessões revogadas", zap.Uint("user_id", userID), zap.Int64("tokens", res.RowsAffected))
	return res.RowsAffected, nil
}
