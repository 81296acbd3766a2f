package model

import "fmt"

// AllScopeKey is the serialized form of the unpartitioned scope.
const AllScopeKey = "all"

// Scope is either the whole event set (All) or one resource.
type Scope struct {
	resource bool
	id       string
	// canon keeps ids of different kinds apart: 1 and "1" are two scopes.
	canon string
}

// AllScope is used when no resources are configured.
func AllScope() Scope {
	return Scope{}
}

// ResourceScope is the scope of a single resource id.
func ResourceScope(id any) Scope {
	canon, _ := canonicalID(id)
	return Scope{resource: true, id: fmt.Sprint(id), canon: canon}
}

// IsAll reports whether s is the unpartitioned scope.
func (s Scope) IsAll() bool {
	return !s.resource
}

// ResourceID returns the resource id for a resource scope.
func (s Scope) ResourceID() (string, bool) {
	return s.id, s.resource
}

// Key is "all" for the unpartitioned scope, otherwise the resource id as
// text. Ids of different kinds may share a Key.
func (s Scope) Key() string {
	if !s.resource {
		return AllScopeKey
	}
	return s.id
}

func (s Scope) String() string {
	if !s.resource {
		return "Scope(all)"
	}
	return "Scope(resource=" + s.id + ")"
}

// MarshalText lets a Scope be used as a JSON object key.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.Key()), nil
}
