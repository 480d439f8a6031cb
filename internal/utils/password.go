package utils

import "golang.org/x/crypto/bcrypt"

// hash de uma senha qualquer, usado para gastar o mesmo tempo quando o usuário não existe
var senhaFantasma, _ = bcrypt.GenerateFromPassword([]byte("senha-fantasma-nao-usada"), bcrypt.DefaultCost)

// HashSenha retorna o hash bcrypt da senha em texto
func HashSenha(senha string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckSenha compara hash bcrypt com a senha em texto e retorna true se bater
func CheckSenha(hash, senha string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(senha))
	return err == nil
}

// CheckSenhaFantasma executa uma comparação bcrypt descartável. Chame quando o
// usuário não for encontrado para que o tempo de resposta não revele a existência da conta.
func CheckSenhaFantasma(senha string) {
	_ = bcrypt.CompareHashAndPassword(senhaFantasma, []byte(senha))
}
