package auth

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Principal is the authenticated caller. Workflow operations receive it as
// an explicit argument instead of reading ambient request state.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Owns reports whether the principal is the owner of a resource held by userID.
func (p Principal) Owns(userID string) bool {
	return p.UserID != "" && p.UserID == userID
}

// PrincipalFromClaims converts validated token claims into a Principal.
func PrincipalFromClaims(c *Claims) Principal {
	return Principal{UserID: c.UserID, Email: c.Email, Role: c.Role}
}
