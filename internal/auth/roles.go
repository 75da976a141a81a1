package auth

// Role represents a user role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleUser, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleFor maps the admin flag of an account to a role.
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}
