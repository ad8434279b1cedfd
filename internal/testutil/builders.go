package testutil

import (
	"fmt"

	"github.com/google/uuid"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
)

// NewTestUser returns a user with a unique username so parallel tests
// sharing a database never collide on the primary key.
func NewTestUser() domainauth.User {
	name := fmt.Sprintf("user-%s", uuid.NewString()[:8])
	email := name + "@example.org"
	return domainauth.User{
		Username:    name,
		DisplayName: "Test User",
		Email:       &email,
		Roles: domainauth.NewRoleSet(
			domainauth.RoleAnonymous,
			"ROLE_USER",
			"ROLE_USER_"+name,
		),
		UserRole: "ROLE_USER_" + name,
	}
}

// StringPtr returns a pointer to the given string value.
func StringPtr(s string) *string {
	return &s
}
