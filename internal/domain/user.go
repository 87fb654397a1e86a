package domain

import "github.com/google/uuid"

// Platform roles.
const (
	RoleClient = "client"
	RoleLady   = "lady"
	RoleClub   = "club"
	RoleAdmin  = "admin"
)

// User is the slice of the platform user record this service needs: identity
// resolution and handle lookups for gift and review targets. Profile content
// is owned elsewhere.
type User struct {
	ID          uuid.UUID `json:"id"`
	AuthUserID  string    `json:"auth_user_id"` // subject id issued by the auth provider
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}
