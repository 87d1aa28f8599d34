package action

import (
	"errors"
	"net/http"
	"testing"
)

func TestRequirePermissions(t *testing.T) {
	tests := []struct {
		name   string
		caller Caller
		caps   []string
		status int
	}{
		{"no capabilities required", Guest(), nil, 0},
		{"guest", Guest(), []string{"users.create"}, http.StatusUnauthorized},
		{"missing capability", NewCaller("1", "users.read"), []string{"users.read", "users.create"}, http.StatusForbidden},
		{"granted", NewCaller("1", "users.read", " users.create "), []string{"users.read", "users.create"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequirePermissions(tt.caller, tt.caps...)
			if tt.status == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var failure *PermissionFailure
			if !errors.As(err, &failure) {
				t.Fatalf("expected permission failure, got %v", err)
			}
			if failure.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", failure.StatusCode, tt.status)
			}
		})
	}
}

func TestCallerCapabilities(t *testing.T) {
	c := NewCaller("7", "b", "a", "")
	if !c.Authenticated || c.ID != "7" {
		t.Fatalf("unexpected caller %+v", c)
	}
	got := c.Capabilities()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("capabilities = %v", got)
	}
	if Guest().Can("a") {
		t.Fatalf("guest should hold no capabilities")
	}
}

func TestRequireAuthenticated(t *testing.T) {
	var failure *PermissionFailure
	if err := RequireAuthenticated(Guest()); !errors.As(err, &failure) || failure.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 permission failure, got %v", err)
	}
	if err := RequireAuthenticated(NewCaller("1")); err != nil {
		t.Fatalf("expected authenticated caller to pass, got %v", err)
	}
}
