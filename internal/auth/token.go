package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KromaEnergia/api-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Tempo de vida dos tokens
	AccessTTL  = config.AccessTokenTTL
	RefreshTTL = config.RefreshTokenTTL

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Subject é o mínimo do usuário que o emissor precisa conhecer.
type Subject struct {
	ID    uint
	Email string
	// PrecisaRedefinirSenha é true depois de um reset administrativo.
	PrecisaRedefinirSenha bool
}

// Claims do access token (RBAC simples: IsAdmin)
type AccessClaims struct {
	UserID  uint   `json:"userId"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID uint   `json:"userId"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	// PrecisaRedefinirSenha avisa o cliente para levar o usuário à troca de senha.
	PrecisaRedefinirSenha bool `json:"precisaRedefinirSenha,omitempty"`
}

// RoleResolver decide, a cada emissão, se o usuário é administrador.
type RoleResolver interface {
	IsAdmin(s Subject) bool
}

// EmailRoleResolver considera admin quem estiver na lista de emails configurada.
type EmailRoleResolver struct {
	emails map[string]struct{}
}

func NewEmailRoleResolver(emails []string) EmailRoleResolver {
	m := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			m[e] = struct{}{}
		}
	}
	return EmailRoleResolver{emails: m}
}

func (r EmailRoleResolver) IsAdmin(s Subject) bool {
	_, ok := r.emails[strings.ToLower(strings.TrimSpace(s.Email))]
	return ok
}

// Issuer assina e valida os tokens HS256. Não toca no banco.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	roles         RoleResolver
	now           func() time.Time
}

// NewIssuer falha quando falta segredo; trate como erro fatal de inicialização.
func NewIssuer(accessSecret, refreshSecret string, roles RoleResolver) (*Issuer, error) {
	if accessSecret == "" {
		return nil, fmt.Errorf("%w: access", ErrMissingSecret)
	}
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	if roles == nil {
		roles = NewEmailRoleResolver(nil)
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		roles:         roles,
		now:           time.Now,
	}, nil
}

// IssueAccessToken gera o JWT de 15 minutos com id, email e, se aplicável, isAdmin.
func (i *Issuer) IssueAccessToken(s Subject) (string, error) {
	now := i.now()
	claims := &AccessClaims{
		UserID:  s.ID,
		Email:   s.Email,
		IsAdmin: i.roles.IsAdmin(s),
		Type:    typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(s.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
}

// IssueRefreshToken gera o JWT de 7 dias assinado com o segredo de refresh.
func (i *Issuer) IssueRefreshToken(s Subject) (string, error) {
	now := i.now()
	claims := &RefreshClaims{
		UserID: s.ID,
		Type:   typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(s.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
}

func (i *Issuer) IssuePair(s Subject) (TokenPair, error) {
	access, err := i.IssueAccessToken(s)
	if err != nil {
		return TokenPair{}, fmt.Errorf("access token: %w", err)
	}
	refresh, err := i.IssueRefreshToken(s)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(AccessTTL.Seconds()),
	}, nil
}

// ParseAccessToken valida assinatura, algoritmo, expiração e tipo.
// Retorna ErrTokenExpired ou ErrInvalidToken.
func (i *Issuer) ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(raw, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) ParseRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeRefresh || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
