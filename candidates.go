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

package resolve

import (
	"fmt"
	"sort"
	"strings"
)

// Candidates is the mutable working set of a resolve: for every
// requirement seen so far, the ordered list of capabilities still in
// play. Permutation (trying the next candidate instead of the first)
// rotates these lists in place, so a combination once left is not
// kept; copy gives an independent set of lists for a trial that may be
// thrown away.
type Candidates struct {
	rc      ResolveContext
	wirings map[Resource]Wiring

	// lists holds the live candidate list for every requirement
	// encountered, declared or synthetic (fragment-rewritten).
	lists map[*Requirement][]*Capability

	// hosts maps a Resource to its WrappedResource, for resources that
	// have fragments attached. A host with no fragments is its own
	// entry's resource unchanged (no wrap).
	hosts map[Resource]*WrappedResource

	// substituted marks exported capabilities that an equivalent
	// import has substituted away (spec's "substitutable export").
	substituted map[*Capability]bool

	// populated tracks requirements already expanded via FindProviders,
	// so populate is idempotent.
	populated map[*Requirement]bool
}

func newCandidates(rc ResolveContext) *Candidates {
	return &Candidates{
		rc:          rc,
		wirings:     rc.Wirings(),
		lists:       make(map[*Requirement][]*Capability),
		hosts:       make(map[Resource]*WrappedResource),
		substituted: make(map[*Capability]bool),
		populated:   make(map[*Requirement]bool),
	}
}

// copy returns an independent Candidates sharing the same resolve
// context and wirings but with its own candidate lists, safe to
// mutate while exploring one permutation.
func (c *Candidates) copy() *Candidates {
	nc := &Candidates{
		rc:          c.rc,
		wirings:     c.wirings,
		lists:       make(map[*Requirement][]*Capability, len(c.lists)),
		hosts:       c.hosts,
		substituted: c.substituted,
		populated:   c.populated,
	}
	for req, caps := range c.lists {
		cp := make([]*Capability, len(caps))
		copy(cp, caps)
		nc.lists[req] = cp
	}
	return nc
}

// populate recursively expands every requirement reachable from r
// (not already resolved), filling in candidate lists and recursing
// into every candidate's own requirements. Fragments are
// attached to their host as they're discovered, replacing the host's
// entry with a *WrappedResource.
func (c *Candidates) populate(r Resource) error {
	return c.populateResource(r, make(map[Resource]bool))
}

func (c *Candidates) populateResource(r Resource, seen map[Resource]bool) error {
	if seen[r] {
		return nil
	}
	seen[r] = true

	if _, ok := c.wirings[r]; ok {
		return nil
	}

	for _, req := range r.Requirements("") {
		if req.Namespace == NamespaceHost {
			if err := c.attachFragment(req); err != nil {
				return err
			}
			continue
		}
		if req.Directives.IsDynamic() {
			continue
		}
		if !c.rc.IsEffective(req) {
			continue
		}
		if err := c.populateRequirement(req, seen); err != nil {
			return err
		}
	}
	return nil
}

func (c *Candidates) populateRequirement(req *Requirement, seen map[Resource]bool) error {
	if c.populated[req] {
		return nil
	}
	c.populated[req] = true

	caps := c.rc.FindProviders(req)
	caps = c.checkSubstitutes(req, caps)
	c.lists[req] = caps
	if len(caps) == 0 && !req.Directives.IsOptional() {
		return &ResolutionError{Req: req, Reason: "no candidates found"}
	}
	for _, cap := range caps {
		if err := c.populateResource(cap.Resource, seen); err != nil {
			return err
		}
	}
	return nil
}

// populateDynamic expands a single dynamic-import requirement that
// was not part of the static closure, for use by DynamicResolve.
func (c *Candidates) populateDynamic(req *Requirement) error {
	caps := c.rc.FindProviders(req)
	caps = c.checkSubstitutes(req, caps)
	c.lists[req] = caps
	if len(caps) == 0 {
		return &ResolutionError{Req: req, Reason: "no candidates found for dynamic import"}
	}
	return c.populateResource(caps[0].Resource, make(map[Resource]bool))
}

// checkSubstitutes handles the "substitutable export" case: when a
// candidate in caps from another resource has the same attributes
// (bundle symbolic name and bundle version aside) as an export of the
// same package by req's own requirer, the import stands in for that
// export, so the export is marked substituted and excluded from the
// requirer's own package space later. caps is returned unchanged.
func (c *Candidates) checkSubstitutes(req *Requirement, caps []*Capability) []*Capability {
	if req.Namespace != NamespacePackage {
		return caps
	}
	for _, own := range req.Resource.Capabilities(NamespacePackage) {
		if own.Attributes[AttrPackageName] != caps0Name(caps) {
			continue
		}
		for _, cand := range caps {
			if cand.Resource == req.Resource {
				continue
			}
			if attrsEqualIgnoring(own.Attributes, cand.Attributes, AttrBundleSymbolicName, AttrBundleVersion) {
				c.substituted[own] = true
			}
		}
	}
	return caps
}

func caps0Name(caps []*Capability) string {
	if len(caps) == 0 {
		return ""
	}
	return caps[0].Attributes[AttrPackageName]
}

func attrsEqualIgnoring(a, b map[string]string, ignore ...string) bool {
	skip := make(map[string]bool, len(ignore))
	for _, k := range ignore {
		skip[k] = true
	}
	for k, v := range a {
		if skip[k] {
			continue
		}
		if b[k] != v {
			return false
		}
	}
	for k := range b {
		if skip[k] {
			continue
		}
		if _, ok := a[k]; !ok {
			return false
		}
	}
	return true
}

// attachFragment resolves a fragment's host requirement eagerly
// (fragments always attach to their first matching host candidate;
// the search driver is free to permutate req like any other) and
// folds the fragment into that host's WrappedResource.
func (c *Candidates) attachFragment(req *Requirement) error {
	if c.populated[req] {
		return nil
	}
	c.populated[req] = true

	caps := c.rc.FindProviders(req)
	c.lists[req] = caps
	if len(caps) == 0 {
		if req.Directives.IsOptional() {
			return nil
		}
		return &ResolutionError{Req: req, Reason: "no host found for fragment"}
	}
	host := caps[0].Resource
	existing := c.hosts[host]
	var frags []Resource
	if existing != nil {
		frags = append(append([]Resource(nil), existing.Fragments...), req.Resource)
	} else {
		frags = []Resource{req.Resource}
	}
	c.hosts[host] = newWrappedResource(c.rc, host, frags)
	return nil
}

// wrapped returns the effective Resource to use when reasoning about
// r's capabilities and requirements: its WrappedResource if fragments
// are attached, r itself otherwise.
func (c *Candidates) wrapped(r Resource) Resource {
	if w, ok := c.hosts[r]; ok {
		return w
	}
	return r
}

// permutateIfNeeded rotates req's candidate list so its current first
// candidate (already rejected) moves to the back, trying the next one
// next time. It reports whether a rotation was made, which is false
// only when req has one or zero candidates. It does not track which
// rotations were already tried; the search driver recognises a
// repeated combination through getDelta.
func (c *Candidates) permutateIfNeeded(req *Requirement) bool {
	req = req.Declared()
	caps := c.lists[req]
	if len(caps) < 2 {
		return false
	}
	rotated := make([]*Capability, len(caps))
	copy(rotated, caps[1:])
	rotated[len(rotated)-1] = caps[0]
	c.lists[req] = rotated
	return true
}

// clearCandidates empties req's candidate list, the mechanism used to
// relax a multiple-cardinality requirement out of consideration
// entirely rather than merely reordering it.
func (c *Candidates) clearCandidates(req *Requirement) {
	c.lists[req.Declared()] = nil
}

// removeFirstCandidate drops the current first candidate of req
// outright, reporting false if req has no candidates. The search
// driver does not call it.
func (c *Candidates) removeFirstCandidate(req *Requirement) bool {
	req = req.Declared()
	caps := c.lists[req]
	if len(caps) == 0 {
		return false
	}
	c.lists[req] = caps[1:]
	return true
}

// getDelta returns a fingerprint of the current first-candidate choice
// across every populated requirement, used by the search driver to
// recognise when a permutation repeats a combination already tried.
// Ranging c.lists gives no ordering guarantee, so each requirement's
// entry is rendered independently and the entries are sorted before
// joining: two calls over the same choices always produce the same
// string regardless of map iteration order.
func (c *Candidates) getDelta() string {
	entries := make([]string, 0, len(c.lists))
	for req, caps := range c.lists {
		entry := pointerString(req)
		if len(caps) > 0 {
			entry += pointerString(caps[0])
		}
		entries = append(entries, entry)
	}
	sort.Strings(entries)
	return strings.Join(entries, ";")
}

func pointerString(p interface{}) string {
	return fmt.Sprintf("%p", p)
}

// ResolutionError reports a single unsatisfiable requirement, with an
// optional chain of blame explaining why every candidate was
// rejected.
type ResolutionError struct {
	Req    *Requirement
	Reason string
	Chain  []Blame
}

func (e *ResolutionError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("unable to resolve %s: %s", e.Req, e.Reason)
	}
	return fmt.Sprintf("unable to resolve %s: %s (%s)", e.Req, e.Reason, formatChain(e.Chain))
}
