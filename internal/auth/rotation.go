package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadyRotated = errors.New("refresh token já utilizado")

// Rotate troca um refresh token válido por um novo par. O token antigo é
// revogado com uma atualização condicional dentro da mesma transação que grava
// o novo registro; com chamadas concorrentes usando o mesmo token, apenas uma vence.
// Qualquer falha é devolvida como ErrInvalidToken.
func (s *RefreshStore) Rotate(ctx context.Context, raw string, info ClientInfo) (TokenPair, error) {
	claims, _, err := s.Verify(ctx, raw)
	if err != nil {
		s.detectReuse(ctx, raw, info)
		return TokenPair{}, ErrInvalidToken
	}

	subject, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		s.Logger.Info("refresh para usuário inexistente", zap.Uint("user_id", claims.UserID))
		return TokenPair{}, ErrInvalidToken
	}

	pair, err := s.Issuer.IssuePair(subject)
	if err != nil {
		s.Logger.Error("falha ao emitir tokens na rotação", zap.Error(err))
		return TokenPair{}, ErrInvalidToken
	}

	newHash := HashToken(pair.RefreshToken)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.revokeActive(tx, HashToken(raw), &newHash)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyRotated
		}
		return s.persist(tx, subject.ID, pair.RefreshToken, info)
	})
	if err != nil {
		if !errors.Is(err, errAlreadyRotated) {
			s.Logger.Error("falha na rotação do refresh token", zap.Uint("user_id", subject.ID), zap.Error(err))
		}
		return TokenPair{}, ErrInvalidToken
	}

	s.Logger.Debug("refresh token rotacionado", zap.Uint("user_id", subject.ID))
	return pair, nil
}

// detectReuse trata a reapresentação de um token já substituído. Por padrão só
// loga; com RevokeFamilyOnReuse revoga todos os descendentes da linhagem.
func (s *RefreshStore) detectReuse(ctx context.Context, raw string, info ClientInfo) {
	if _, err := s.Issuer.ParseRefreshToken(raw); err != nil {
		return
	}
	db := s.DB.WithContext(ctx)

	var rec RefreshToken
	err := db.Where("token_hash = ? AND revoked = ? AND replaced_by_token_hash IS NOT NULL", HashToken(raw), true).
		First(&rec).Error
	if err != nil {
		return
	}

	s.Logger.Warn("refresh token revogado reapresentado",
		zap.Uint("user_id", rec.UserID),
		zap.String("ip", info.IP),
	)
	if s.Alerter != nil {
		s.Alerter.RefreshTokenReused(ctx, rec.UserID, info.IP)
	}
	if !s.RevokeFamilyOnReuse {
		return
	}

	n, err := s.revokeLineage(db, rec)
	if err != nil {
		s.Logger.Error("falha ao revogar linhagem", zap.Uint("user_id", rec.UserID), zap.Error(err))
		return
	}
	s.Logger.Warn("linhagem de refresh tokens revogada", zap.Uint("user_id", rec.UserID), zap.Int("revogados", n))
}

// revokeLineage segue replaced_by_token_hash a partir de rec e revoga cada descendente.
func (s *RefreshStore) revokeLineage(db *gorm.DB, rec RefreshToken) (int, error) {
	revoked := 0
	next := rec.ReplacedByTokenHash
	seen := map[string]bool{rec.TokenHash: true}
	for next != nil && !seen[*next] {
		seen[*next] = true

		var child RefreshToken
		err := db.Where("token_hash = ? AND user_id = ?", *next, rec.UserID).First(&child).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return revoked, err
		}
		if !child.Revoked {
			ok, err := s.revokeActive(db, child.TokenHash, nil)
			if err != nil {
				return revoked, err
			}
			if ok {
				revoked++
			}
		}
		next = child.ReplacedByTokenHash
	}
	return revoked, nil
}
