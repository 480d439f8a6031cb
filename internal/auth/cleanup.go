package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cleanup remove registros expirados e os revogados há mais de retention.
func (s *RefreshStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).
		Where("expires_at <= ? OR (revoked = ? AND revoked_at <= ?)", now, true, now.Add(-retention)).
		Delete(&RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("limpeza de refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StartCleanup executa Cleanup a cada interval até ctx ser cancelado.
func (s *RefreshStore) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Cleanup(ctx, retention)
				if err != nil {
					s.Logger.Warn("falha na limpeza de refresh tokens", zap.Error(err))
					continue
				}
				if n > 0 {
					s.Logger.Info("refresh tokens removidos na limpeza", zap.Int64("removidos", n))
				}
			}
		}
	}()
}

// MigrateLegacy converte, em lote, registros antigos que guardavam o token
// em texto puro para o formato com hash. Roda fora do caminho das requisições.
func (s *RefreshStore) MigrateLegacy(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	db := s.DB.WithContext(ctx)
	migrated := 0
	for {
		var batch []RefreshToken
		if err := db.Where("schema_version = ?", SchemaLegacyPlain).Order("id").Limit(batchSize).Find(&batch).Error; err != nil {
			return migrated, fmt.Errorf("listar tokens legados: %w", err)
		}
		if len(batch) == 0 {
			return migrated, nil
		}
		for _, rec := range batch {
			err := db.Model(&RefreshToken{}).Where("id = ? AND schema_version = ?", rec.ID, SchemaLegacyPlain).
				Updates(map[string]any{
					"token_hash":     HashToken(rec.TokenHash),
					"schema_version": SchemaHashed,
				}).Error
			if err != nil {
				return migrated, fmt.Errorf("migrar token %d: %w", rec.ID, err)
			}
			migrated++
		}
		s.Logger.Info("lote de tokens legados migrado", zap.Int("total", migrated))
	}
}
