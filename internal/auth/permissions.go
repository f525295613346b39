package auth

import (
	"encoding/json"
	"fmt"

	"github.com/bazasystems/madaris/internal/models"
)

// Capability tags recognized by the permission registry. Custom role names
// are free-form, permission tags are not: writes are validated against this
// closed set.
const (
	PermManageUsers    = "manage_users"
	PermManageStudents = "manage_students"
	PermManageCanteen  = "manage_canteen"
	PermManageLibrary  = "manage_library"
	PermManageArchive  = "manage_archive"
	PermManageSettings = "manage_settings"
	PermViewReports    = "view_reports"
)

// KnownPermissions lists every valid capability tag.
var KnownPermissions = []string{
	PermManageUsers,
	PermManageStudents,
	PermManageCanteen,
	PermManageLibrary,
	PermManageArchive,
	PermManageSettings,
	PermViewReports,
}

// ValidatePermissions rejects any tag outside the registry.
func ValidatePermissions(tags []string) error {
	known := make(map[string]struct{}, len(KnownPermissions))
	for _, tag := range KnownPermissions {
		known[tag] = struct{}{}
	}
	for _, tag := range tags {
		if _, ok := known[tag]; !ok {
			return fmt.Errorf("auth: unknown permission %q", tag)
		}
	}
	return nil
}

// ParsePermissions decodes a profile's permission JSON column. Malformed
// values decode to an empty set.
func ParsePermissions(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if errUnmarshal := json.Unmarshal(raw, &tags); errUnmarshal != nil {
		return nil
	}
	return tags
}

// HasPermission reports whether the profile holds the capability tag.
// Privileged profiles hold every capability.
func HasPermission(profile *models.Profile, tag string) bool {
	if profile == nil {
		return false
	}
	if profile.Privileged() {
		return true
	}
	for _, held := range ParsePermissions(profile.Permissions) {
		if held == tag {
			return true
		}
	}
	return false
}
