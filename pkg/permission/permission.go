// Package permission models the permission-grant subsystem consulted before a
// subscription is accepted.
package permission

import (
	"maps"
	"slices"
	"sync"
)

// Well-known permission names.
const (
	ActivityMotion = "ohos.permission.ACTIVITY_MOTION"
	ReadHealthData = "ohos.permission.READ_HEALTH_DATA"
	Accelerometer  = "ohos.permission.ACCELEROMETER"
	Gyroscope      = "ohos.permission.GYROSCOPE"
)

// Checker answers whether the caller holds a permission.
type Checker interface {
	Granted(permission string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(permission string) bool

// Granted calls f.
func (f CheckerFunc) Granted(permission string) bool { return f(permission) }

// AllowAll grants every permission.
var AllowAll Checker = CheckerFunc(func(string) bool { return true })

// DenyAll grants nothing.
var DenyAll Checker = CheckerFunc(func(string) bool { return false })

// Grants is a concurrency-safe in-memory permission set.
type Grants struct {
	mu      sync.RWMutex
	granted map[string]struct{}
}

// NewGrants creates a set holding the given permissions.
func NewGrants(perms ...string) *Grants {
	g := &Grants{granted: make(map[string]struct{}, len(perms))}
	for _, p := range perms {
		g.granted[p] = struct{}{}
	}
	return g
}

// Grant adds permissions.
func (g *Grants) Grant(perms ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range perms {
		g.granted[p] = struct{}{}
	}
}

// Revoke removes permissions.
func (g *Grants) Revoke(perms ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range perms {
		delete(g.granted, p)
	}
}

// RevokeAll clears the set.
func (g *Grants) RevokeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.granted)
}

// Granted reports whether permission is held. The empty permission is always
// granted.
func (g *Grants) Granted(permission string) bool {
	if permission == "" {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.granted[permission]
	return ok
}

// List returns the held permissions, sorted.
func (g *Grants) List() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.granted))
}
