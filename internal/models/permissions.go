package models

// Permission constants define all valid permissions in the system
const (
	PermissionCreateBlog           = "create:blog"
	PermissionEditBlog             = "edit:blog"
	PermissionDeleteBlog           = "delete:blog"
	PermissionManageUsers          = "manage:users"
	PermissionManageRoles          = "manage:roles"
	PermissionViewAdminPanel       = "view:admin_panel"
	PermissionEditSettings         = "edit:settings"
	PermissionViewActivityLogs     = "view:activity_logs"
	PermissionManageComments       = "manage:comments"
	PermissionUploadFiles          = "upload:files"
	PermissionLockUsers            = "lock:users"
	PermissionResetMFA             = "reset:2fa"
	PermissionViewSecuritySettings = "view:security_settings"
	PermissionEditSecuritySettings = "edit:security_settings"
	PermissionManageSystem         = "manage:system"
	PermissionManageAll            = "manage:all"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AllPermissions is the whitelist of every permission the system knows about
var AllPermissions = []string{
	PermissionCreateBlog,
	PermissionEditBlog,
	PermissionDeleteBlog,
	PermissionManageUsers,
	PermissionManageRoles,
	PermissionViewAdminPanel,
	PermissionEditSettings,
	PermissionViewActivityLogs,
	PermissionManageComments,
	PermissionUploadFiles,
	PermissionLockUsers,
	PermissionResetMFA,
	PermissionViewSecuritySettings,
	PermissionEditSecuritySettings,
	PermissionManageSystem,
	PermissionManageAll,
}

// rolePermissions maps each role to its baseline grants
var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionCreateBlog,
		PermissionEditBlog,
		PermissionDeleteBlog,
	},
	RoleAdmin: AllPermissions,
}

var validPermissions = func() map[string]bool {
	m := make(map[string]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		m[p] = true
	}
	return m
}()

// IsValidPermission checks if a permission exists in the whitelist
func IsValidPermission(permission string) bool {
	return validPermissions[permission]
}

// RolePermissions returns the baseline permissions for a role
func RolePermissions(role string) []string {
	return rolePermissions[role]
}

// EffectivePermissions resolves the full permission set for a user once,
// so every gate consumes the same answer. Admins always receive the
// complete set regardless of what is stored on the record.
func EffectivePermissions(role string, stored []string) []string {
	if role == RoleAdmin {
		out := make([]string, len(AllPermissions))
		copy(out, AllPermissions)
		return out
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(stored)+len(rolePermissions[role]))
	for _, p := range rolePermissions[role] {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range stored {
		if validPermissions[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// HasPermission checks if a resolved permission set contains a required
// permission. manage:all grants everything.
func HasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == PermissionManageAll || p == required {
			return true
		}
	}
	return false
}
