package auth

// Known OAuth scopes.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeCommunityWrite  = "community:write"
)

// AllScopes lists every scope the API checks.
var AllScopes = []string{ScopeActivitiesRead, ScopeActivitiesWrite, ScopeCommunityWrite}
