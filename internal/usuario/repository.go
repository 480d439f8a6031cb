package usuario

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrEmailEmUso = errors.New("email já cadastrado")

type Repository interface {
	BuscarPorEmail(db *gorm.DB, email string) (*Usuario, error)
	BuscarPorID(db *gorm.DB, id uint) (*Usuario, error)
	Criar(db *gorm.DB, u *Usuario) error
	AtualizarNome(db *gorm.DB, id uint, nome string) error
	AtualizarSenha(db *gorm.DB, id uint, hash string, precisaRedefinir bool) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

// NormalizarEmail aplica trim e minúsculas; o índice único depende disso.
func NormalizarEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *repositoryImpl) BuscarPorEmail(db *gorm.DB, email string) (*Usuario, error) {
	var u Usuario
	if err := db.Where("email = ?", NormalizarEmail(email)).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repositoryImpl) BuscarPorID(db *gorm.DB, id uint) (*Usuario, error) {
	var u Usuario
	if err := db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Criar insere o usuário; email duplicado vira ErrEmailEmUso.
func (r *repositoryImpl) Criar(db *gorm.DB, u *Usuario) error {
	u.Email = NormalizarEmail(u.Email)

	var count int64
	if err := db.Model(&Usuario{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailEmUso
	}
	if err := db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailEmUso
		}
		return err
	}
	return nil
}

func (r *repositoryImpl) AtualizarNome(db *gorm.DB, id uint, nome string) error {
	res := db.Model(&Usuario{}).Where("id = ?", id).Update("nome", nome)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) AtualizarSenha(db *gorm.DB, id uint, hash string, precisaRedefinir bool) error {
	res := db.Model(&Usuario{}).Where("id = ?", id).Updates(map[string]any{
		"senha":                   hash,
		"precisa_redefinir_senha": precisaRedefinir,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
