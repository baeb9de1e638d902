package user

import "time"

// Role gates which parts of the storefront a user may reach.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Roles lists every role in display order.
func Roles() []Role { return []Role{RoleBuyer, RoleSeller, RoleAdmin} }

// User is a registered storefront account.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role"`
	LastActivity time.Time `db:"last_activity"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u User) IsBuyer() bool  { return u.Role == RoleBuyer }
func (u User) IsSeller() bool { return u.Role == RoleSeller }
func (u User) IsAdmin() bool  { return u.Role == RoleAdmin }
