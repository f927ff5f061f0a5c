// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package directive provides data structures for representing the small,
bounded set of OSGi-style directives that apply to Requirements and
Capabilities: resolution, cardinality, visibility and uses.

It does not model Capability attributes (package name, version, bundle
symbolic name, and so on): those are open-vocabulary and namespace
specific, and are carried as a plain map elsewhere.
*/
package directive

import (
	"fmt"
	"strings"

	"github.com/gnodet/felix/internal/attr"
)

// Set holds the directives attached to a Requirement or Capability.
//
// The zero value of Set is the set of defaults: resolution:=mandatory,
// cardinality:=single, visibility:=private, no uses, no filter.
type Set struct {
	set attr.Set
}

// Key identifies a directive. Negative values are compact, value-less
// flags; non-negative values carry a string value.
type Key int8

const (
	// maskLen is the number of flag bits reserved for directives whose
	// presence alone is the signal.
	maskLen = 4

	// Optional marks a Requirement as resolution:=optional. Its value is
	// ignored; presence is the indicator.
	Optional Key = -0x01

	// Dynamic marks a Requirement as resolution:=dynamic: its
	// satisfaction is deferred to the dynamic-resolve entry point
	// rather than being decided during the main resolve.
	Dynamic Key = -0x02

	// Multiple marks a Requirement as cardinality:=multiple: every
	// matching Capability is wired, not just the first candidate.
	Multiple Key = -0x04

	// Reexport marks a bundle-namespace Requirement as
	// visibility:=reexport: capabilities reached through it propagate
	// to the requirer's own consumers.
	Reexport Key = -0x08

	// Effective carries the effective:=... directive. A value of
	// "resolve" or an empty value (the default) makes the requirement
	// effective at resolve time; any other value makes it inert then.
	Effective Key = 1

	// Uses carries the comma-separated uses:=pkg1,pkg2 directive of a
	// Capability.
	Uses Key = 2
)

// New constructs a Set with the given flag directives present.
func New(flags ...Key) Set {
	var s Set
	for _, f := range flags {
		s.Set(f, "")
	}
	return s
}

// Clone returns a clone of the given Set.
func (s *Set) Clone() Set {
	return Set{set: s.set.Clone()}
}

// Set adds a directive to the Set.
func (s *Set) Set(key Key, value string) {
	if key < 0 {
		s.set.Mask |= attr.Mask(-key)
		return
	}
	s.set.SetAttr(uint8(key), value)
}

// Get retrieves a directive's value from the Set.
func (s Set) Get(key Key) (value string, ok bool) {
	if key < 0 {
		return "", s.set.Mask&attr.Mask(-key) != 0
	}
	return s.set.GetAttr(uint8(key))
}

// Has reports whether the flag directive is present.
func (s Set) Has(key Key) bool {
	_, ok := s.Get(key)
	return ok
}

// IsOptional reports whether resolution:=optional.
func (s Set) IsOptional() bool { return s.Has(Optional) }

// IsDynamic reports whether resolution:=dynamic.
func (s Set) IsDynamic() bool { return s.Has(Dynamic) }

// IsMultiple reports whether cardinality:=multiple.
func (s Set) IsMultiple() bool { return s.Has(Multiple) }

// IsReexport reports whether visibility:=reexport.
func (s Set) IsReexport() bool { return s.Has(Reexport) }

// UsedPackages parses the uses:=... directive into its component package
// names. It returns nil if there is no uses directive.
func (s Set) UsedPackages() []string {
	v, ok := s.Get(Uses)
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// IsEffectiveAtResolve reports whether a Requirement carrying this Set
// should be considered during a resolve (effective:=resolve, the
// default, as opposed to e.g. effective:=active).
func (s Set) IsEffectiveAtResolve() bool {
	v, ok := s.Get(Effective)
	return !ok || v == "" || v == "resolve"
}

// Equal reports whether s is identical to other.
func (s Set) Equal(other Set) bool { return s.Compare(other) == 0 }

// Compare returns -1, 0 or 1 depending on whether s sorts before, equal
// to, or after other.
func (s Set) Compare(other Set) int { return s.set.Compare(other.set) }

func (s Set) String() string {
	var parts []string
	if s.IsOptional() {
		parts = append(parts, "resolution:=optional")
	}
	if s.IsDynamic() {
		parts = append(parts, "resolution:=dynamic")
	}
	if s.IsMultiple() {
		parts = append(parts, "cardinality:=multiple")
	}
	if s.IsReexport() {
		parts = append(parts, "visibility:=reexport")
	}
	s.set.ForEachAttr(func(key uint8, value string) {
		parts = append(parts, fmt.Sprintf("%s:=%q", Key(key), value))
	})
	if len(parts) == 0 {
		return "{}"
	}
	return strings.Join(parts, ",")
}

func (k Key) String() string {
	switch k {
	case Optional:
		return "resolution(optional)"
	case Dynamic:
		return "resolution(dynamic)"
	case Multiple:
		return "cardinality(multiple)"
	case Reexport:
		return "visibility(reexport)"
	case Effective:
		return "effective"
	case Uses:
		return "uses"
	default:
		return fmt.Sprintf("Key(%d)", int8(k))
	}
}
