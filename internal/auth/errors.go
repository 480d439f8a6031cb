package auth

import "errors"

var (
	// ErrInvalidCredentials cobre usuário inexistente e senha errada, sem distinção.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrInvalidToken cobre assinatura ruim, token malformado, revogado ou desconhecido.
	ErrInvalidToken  = errors.New("token inválido")
	ErrTokenExpired  = errors.New("token expirado")
	ErrMissingSecret = errors.New("segredo de assinatura ausente")
)
