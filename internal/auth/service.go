package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// CredentialStore é implementado pelo cadastro de usuários.
type CredentialStore interface {
	// Authenticate devolve ErrInvalidCredentials para usuário inexistente ou senha errada.
	Authenticate(ctx context.Context, email, password string) (Subject, error)
	FindByID(ctx context.Context, id uint) (Subject, error)
}

// Service orquestra o login: credenciais, emissão e persistência do refresh token.
type Service struct {
	Users  CredentialStore
	Issuer *Issuer
	Store  *RefreshStore
	Logger *zap.Logger
}

func NewService(users CredentialStore, issuer *Issuer, store *RefreshStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Users: users, Issuer: issuer, Store: store, Logger: logger}
}

func (s *Service) Login(ctx context.Context, email, password string, info ClientInfo) (TokenPair, error) {
	subject, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.Logger.Info("login recusado", zap.String("ip", info.IP))
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("autenticar: %w", err)
	}

	pair, err := s.Issuer.IssuePair(subject)
	if err != nil {
		return TokenPair{}, err
	}
	pair.PrecisaRedefinirSenha = subject.PrecisaRedefinirSenha
	if err := s.Store.Persist(ctx, subject.ID, pair.RefreshToken, info); err != nil {
		return TokenPair{}, err
	}

	s.Logger.Info("login", zap.Uint("user_id", subject.ID), zap.String("ip", info.IP))
	return pair, nil
}

func (s *Service) Refresh(ctx context.Context, raw string, info ClientInfo) (TokenPair, error) {
	return s.Store.Rotate(ctx, raw, info)
}

func (s *Service) Logout(ctx context.Context, raw string) {
	s.Store.Logout(ctx, raw)
}

func (s *Service) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	return s.Store.LogoutAll(ctx, userID)
}
