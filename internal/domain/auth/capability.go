package auth

// RoleConfig names the roles that gate each privilege tier. Values come
// from configuration; adapters map config.AuthConfig into this shape so
// the domain stays free of config concerns.
type RoleConfig struct {
	ModeratorRole string
	UploadRole    string
	StudioRole    string
	EditorRole    string
	UserRealmRole string
}

// AuthToken proves that *some* authorization predicate was evaluated and
// passed. It carries no information about which one; its only purpose is
// to make "forgot to check permission" impossible to express, because
// privileged operations require a token parameter. Obtain one through
// the Require* accessors, never by constructing it.
type AuthToken struct {
	granted bool
}

func grantIf(v bool) (AuthToken, bool) {
	if !v {
		return AuthToken{}, false
	}
	return AuthToken{granted: true}, true
}

// IsAdmin reports whether the role set contains the global administrator
// role. Admins pass every other predicate.
func IsAdmin(roles RoleSet) bool {
	return roles.Contains(RoleAdmin)
}

// Overlaps reports whether the caller is an admin or holds any of the
// required roles. This is the building block for ACL membership checks.
func Overlaps(roles RoleSet, required []string) bool {
	if IsAdmin(roles) {
		return true
	}
	for _, r := range required {
		if roles.Contains(r) {
			return true
		}
	}
	return false
}

// IsModerator reports whether the caller may modify the page structure
// and perform other moderation tasks.
func (c RoleConfig) IsModerator(roles RoleSet) bool {
	return IsAdmin(roles) || roles.Contains(c.ModeratorRole)
}

// CanUpload reports whether the caller may use the uploader.
func (c RoleConfig) CanUpload(roles RoleSet) bool {
	return c.IsModerator(roles) || roles.Contains(c.UploadRole)
}

// CanUseStudio reports whether the caller may record via the studio.
func (c RoleConfig) CanUseStudio(roles RoleSet) bool {
	return c.IsModerator(roles) || roles.Contains(c.StudioRole)
}

// CanUseEditor reports whether the caller may edit videos they have
// write access to.
func (c RoleConfig) CanUseEditor(roles RoleSet) bool {
	return c.IsModerator(roles) || roles.Contains(c.EditorRole)
}

// CanCreateUserRealm reports whether the caller may create their own
// user realm. Deliberately independent of moderator status.
func (c RoleConfig) CanCreateUserRealm(roles RoleSet) bool {
	return roles.Contains(c.UserRealmRole)
}

// RequireModerator returns a proof token if the caller is a moderator.
func (c RoleConfig) RequireModerator(roles RoleSet) (AuthToken, bool) {
	return grantIf(c.IsModerator(roles))
}

// RequireUploadPermission returns a proof token if the caller may upload.
func (c RoleConfig) RequireUploadPermission(roles RoleSet) (AuthToken, bool) {
	return grantIf(c.CanUpload(roles))
}

// RequireStudioPermission returns a proof token if the caller may use
// the studio.
func (c RoleConfig) RequireStudioPermission(roles RoleSet) (AuthToken, bool) {
	return grantIf(c.CanUseStudio(roles))
}

// RequireEditorPermission returns a proof token if the caller may use
// the editor.
func (c RoleConfig) RequireEditorPermission(roles RoleSet) (AuthToken, bool) {
	return grantIf(c.CanUseEditor(roles))
}
