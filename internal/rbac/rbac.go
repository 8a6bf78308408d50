package rbac

// Role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Permission constants
const (
	PermCreateAd    = "create_advertisement"
	PermEditOwnAd   = "edit_own_advertisement"
	PermDeleteOwnAd = "delete_own_advertisement"
	PermDeleteAnyAd = "delete_any_advertisement"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleUser: {
		PermCreateAd, PermEditOwnAd, PermDeleteOwnAd,
	},
	RoleAdmin: {
		PermCreateAd, PermEditOwnAd, PermDeleteOwnAd, PermDeleteAnyAd,
	},
}

// RoleFor maps the admin flag carried in the JWT to a role.
func RoleFor(isAdmin bool) string {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
