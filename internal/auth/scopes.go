package auth

// ScopeActivitiesWrite grants roster changes (signup and unregister).
const ScopeActivitiesWrite = "activities:write"
