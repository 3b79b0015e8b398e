package enums

// UserRole is the marketplace side an account acts for.
type UserRole string

const (
	UserRoleVendor   UserRole = "vendor"
	UserRoleSupplier UserRole = "supplier"
)

var userRoles = newValueSet("user role", UserRoleVendor, UserRoleSupplier)

func (r UserRole) String() string { return string(r) }
func (r UserRole) IsValid() bool  { return userRoles.contains(r) }

// ParseUserRole ignores case and surrounding whitespace.
func ParseUserRole(value string) (UserRole, error) { return userRoles.parse(value) }
