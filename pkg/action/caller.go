package action

import (
	"net/http"
	"sort"
	"strings"
)

const (
	msgUnauthenticated = "Authentication is required to perform this action"
	msgForbidden       = "You do not have the permissions required to perform this action"
)

// Caller is the identity an action runs on behalf of.
type Caller struct {
	ID            string
	Authenticated bool
	capabilities  map[string]struct{}
}

// Guest returns an unauthenticated caller.
func Guest() Caller {
	return Caller{}
}

// NewCaller returns an authenticated caller holding caps.
func NewCaller(id string, caps ...string) Caller {
	c := Caller{ID: id, Authenticated: true, capabilities: make(map[string]struct{}, len(caps))}
	for _, capability := range caps {
		capability = strings.TrimSpace(capability)
		if capability != "" {
			c.capabilities[capability] = struct{}{}
		}
	}
	return c
}

// Can reports whether the caller holds capability.
func (c Caller) Can(capability string) bool {
	_, ok := c.capabilities[capability]
	return ok
}

// Capabilities returns the caller's capabilities in sorted order.
func (c Caller) Capabilities() []string {
	out := make([]string, 0, len(c.capabilities))
	for capability := range c.capabilities {
		out = append(out, capability)
	}
	sort.Strings(out)
	return out
}

// RequirePermissions checks caller against caps. An empty list always
// passes; otherwise guests fail with 401 and callers missing any capability
// fail with 403.
func RequirePermissions(caller Caller, caps ...string) error {
	if len(caps) == 0 {
		return nil
	}
	if !caller.Authenticated {
		return &PermissionFailure{Message: msgUnauthenticated, StatusCode: http.StatusUnauthorized}
	}
	for _, capability := range caps {
		if !caller.Can(capability) {
			return &PermissionFailure{Message: msgForbidden, StatusCode: http.StatusForbidden}
		}
	}
	return nil
}

// RequireAuthenticated fails with 401 for guests.
func RequireAuthenticated(caller Caller) error {
	if !caller.Authenticated {
		return &PermissionFailure{Message: msgUnauthenticated, StatusCode: http.StatusUnauthorized}
	}
	return nil
}
