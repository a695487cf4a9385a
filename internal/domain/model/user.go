// user.go — пользователь back-office каталога.
package model

import "time"

// Роли пользователей каталога.
const (
	RoleRoot  = "root"
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User — учётная запись back-office. Пароль наружу не отдаётся,
// но присутствует в теле запросов создания/обновления.
type User struct {
	UserID    string     `json:"user_id"`
	FullName  string     `json:"full_name"`
	Account   string     `json:"account"`
	Password  string     `json:"password_user,omitempty"`
	Tag       string     `json:"tag"`
	Role      *string    `json:"role_user"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RoleValue возвращает роль или пустую строку.
func (u *User) RoleValue() string {
	if u.Role == nil {
		return ""
	}
	return *u.Role
}

// Merge возвращает копию u с наложенными непустыми полями upd.
func (u User) Merge(upd User) User {
	out := u
	if upd.FullName != "" {
		out.FullName = upd.FullName
	}
	if upd.Account != "" {
		out.Account = upd.Account
	}
	if upd.Tag != "" {
		out.Tag = upd.Tag
	}
	if upd.Role != nil {
		out.Role = upd.Role
	}
	if upd.UpdatedAt != nil {
		out.UpdatedAt = upd.UpdatedAt
	}
	return out
}
