package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Actor is the caller identity handed over by the authorization collaborator.
// ID is the caller's national id (RUT).
type Actor struct {
	ID   string
	Role enums.Role
}

// IsPrivileged reports whether the actor holds finance authority.
func (a Actor) IsPrivileged() bool {
	return a.Role.IsPrivileged()
}

// HasAnyRole reports whether the actor holds one of the given roles.
func (a Actor) HasAnyRole(roles ...enums.Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	NationalID string
	Role       enums.Role
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued by the authentication
// service. Subject carries the national id.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the actor passed to services.
func (c AccessTokenClaims) Actor() Actor {
	return Actor{ID: c.Subject, Role: c.Role}
}
