package authz

const (
	RoleSiteAdmin = "site-admin"
	RoleTeacher   = "teacher"
	RoleAnonymous = "anonymous"
)

const (
	ActionManage = "manage"
	ActionRead   = "read"
)

// Objects outside the per-field capability names produced by the
// settings resolver.
const (
	ObjectAccessChecks    = "proctoring.access-checks"
	ObjectSessionLinks    = "proctoring.session-links"
	ObjectPrivacyErasures = "proctoring.privacy-erasures"
)
