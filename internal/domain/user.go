package domain

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Enabled      bool
}

type UserWithRoles struct {
	User  User
	Roles []string
}

func (u UserWithRoles) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
