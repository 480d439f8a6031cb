package usuario

import (
	"context"
	"errors"

	"github.com/KromaEnergia/api-auth/internal/auth"
	"github.com/KromaEnergia/api-auth/internal/utils"
	"gorm.io/gorm"
)

// CredentialStore implementa auth.CredentialStore sobre a tabela de usuários.
type CredentialStore struct {
	DB         *gorm.DB
	Repository Repository
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{DB: db, Repository: NewRepository()}
}

func (c *CredentialStore) Authenticate(ctx context.Context, email, password string) (auth.Subject, error) {
	u, err := c.Repository.BuscarPorEmail(c.DB.WithContext(ctx), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.CheckSenhaFantasma(password)
			return auth.Subject{}, auth.ErrInvalidCredentials
		}
		return auth.Subject{}, err
	}
	if !utils.CheckSenha(u.Senha, password) {
		return auth.Subject{}, auth.ErrInvalidCredentials
	}
	return toSubject(u), nil
}

func (c *CredentialStore) FindByID(ctx context.Context, id uint) (auth.Subject, error) {
	u, err := c.Repository.BuscarPorID(c.DB.WithContext(ctx), id)
	if err != nil {
		return auth.Subject{}, err
	}
	return toSubject(u), nil
}

func toSubject(u *Usuario) auth.Subject {
	return auth.Subject{ID: u.ID, Email: u.Email, PrecisaRedefinirSenha: u.PrecisaRedefinirSenha}
}
