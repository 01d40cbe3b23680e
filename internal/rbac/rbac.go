package rbac

type Role string
type Action string

const (
	RoleCrew       Role = "crew"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleInstructor:
		return action == ActionRead || action == ActionWrite
	case RoleCrew:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleCrew, RoleInstructor, RoleAdmin:
		return Role(role)
	default:
		return RoleCrew
	}
}
