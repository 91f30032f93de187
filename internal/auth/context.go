// Package auth carries authenticated identity through request contexts.
package auth

import "net/http"

// ContextKey is the type used for context keys.
type ContextKey string

const (
	// ContextKeyAccountID is the key for the account ID in the context.
	ContextKeyAccountID ContextKey = "accountID"
	// ContextKeyIsMaster is the key for the master flag in the context.
	ContextKeyIsMaster ContextKey = "isMaster"
	// ContextKeySessionToken is the key for the session token. Browsing
	// state (navigation history, prefetch pipeline) is keyed by it.
	ContextKeySessionToken ContextKey = "sessionToken"
)

// GetAccountID retrieves the authenticated account ID from the request context.
func GetAccountID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyAccountID).(string); ok {
		return id
	}
	return ""
}

// GetSessionToken retrieves the session token from the request context.
func GetSessionToken(r *http.Request) string {
	if token, ok := r.Context().Value(ContextKeySessionToken).(string); ok {
		return token
	}
	return ""
}

// IsMaster checks if the authenticated account is a master account.
func IsMaster(r *http.Request) bool {
	if isMaster, ok := r.Context().Value(ContextKeyIsMaster).(bool); ok {
		return isMaster
	}
	return false
}
