package usuario

// request DTOs
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type atualizarRequest struct {
	Name string `json:"name"`
}

type alterarSenhaRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UsuarioDTO struct {
	ID                    uint   `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	PrecisaRedefinirSenha bool   `json:"precisaRedefinirSenha,omitempty"`
}

func toDTO(u Usuario) UsuarioDTO {
	return UsuarioDTO{
		ID:                    u.ID,
		Name:                  u.Nome,
		Email:                 u.Email,
		PrecisaRedefinirSenha: u.PrecisaRedefinirSenha,
	}
}
