package enums

import "slices"

// Role is the club-level permission role supplied by the authorization collaborator.
type Role string

const (
	RoleDirectiva  Role = "directiva"
	RoleTesorera   Role = "tesorera"
	RoleEntrenador Role = "entrenador"
	RoleApoderado  Role = "apoderado"
)

var validRoles = []Role{
	RoleDirectiva,
	RoleTesorera,
	RoleEntrenador,
	RoleApoderado,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return slices.Contains(validRoles, r)
}

// IsPrivileged reports whether the role carries finance authority.
func (r Role) IsPrivileged() bool {
	return r == RoleDirectiva || r == RoleTesorera
}

// IsStaff reports whether the role belongs to club staff (anyone but a guardian).
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleApoderado
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse(validRoles, "role", value)
}
