package staff

// Known roles. Admin passes every role gate; doctor sees clinical data;
// staff covers the front desk.
const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
	RoleStaff  = "staff"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleStaff:
		return true
	}
	return false
}

// User is a staff account. The password hash never leaves the server.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Branch       string `json:"branch"`
}
