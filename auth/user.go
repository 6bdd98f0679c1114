package auth

import "time"

// Role is the local authorization role assigned to a user. Only dev_admin
// actors may change another user's role.
type Role string

const (
	RoleUser         Role = "user"
	RoleBusinessAdmin Role = "business_admin"
	RoleDevAdmin      Role = "dev_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBusinessAdmin, RoleDevAdmin:
		return true
	}
	return false
}

// User maps an external identity (subject claim from the authentication
// provider) to a local role and display metadata.
type User struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"uniqueIndex;not null"`
	DisplayName string
	Role        Role      `gorm:"type:text;not null;default:user"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string { return "users" }

// ActorType distinguishes a human user token from a service-to-service
// token. Service actors bypass per-user permission checks on read.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorService ActorType = "service"
)

// Actor is the resolved caller identity every operation receives, built from
// a verified bearer token at the HTTP/CLI boundary.
type Actor struct {
	Type     ActorType
	Identity string // user id for ActorUser, service name for ActorService
	Role     Role
}

func (a Actor) IsDevAdmin() bool {
	return a.Type == ActorUser && a.Role == RoleDevAdmin
}

func (a Actor) IsService() bool {
	return a.Type == ActorService
}
