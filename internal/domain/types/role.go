package types

// Role es el rol de un usuario dentro de la plataforma.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCrew    Role = "crew"
)

// rank asigna un orden total a los roles para comparaciones min-role.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleCrew:
		return 1
	}
	return 0
}

// Valid indica si el rol es uno de los conocidos.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast indica si el rol tiene al menos los privilegios de min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}
