package models

type Member struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Admin        bool   `json:"admin"`
}
