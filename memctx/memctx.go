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
Package memctx provides an in-memory resolve.ResolveContext, the
structural analogue of deps.dev/util/resolve's LocalClient: a
ResolveContext backed entirely by resources added with AddResource,
useful for tests, examples, and any embedder that has no real OSGi
framework behind it.
*/
package memctx

import (
	"sort"

	"deps.dev/util/semver"

	"github.com/gnodet/felix"
)

// Context is an in-memory resolve.ResolveContext. The zero value is
// not usable; construct one with New.
type Context struct {
	resources []resolve.Resource
	mandatory []resolve.Resource
	optional  []resolve.Resource
	wirings   map[resolve.Resource]resolve.Wiring
}

// New creates a new, empty Context.
func New() *Context {
	return &Context{wirings: make(map[resolve.Resource]resolve.Wiring)}
}

// AddResource registers r as a known provider of candidates, in the
// order added; FindProviders returns matches in that same order,
// giving the caller direct control over candidate preference.
func (c *Context) AddResource(r resolve.Resource) {
	c.resources = append(c.resources, r)
}

// AddMandatory registers r (which must already have been added with
// AddResource) as a resource that must resolve.
func (c *Context) AddMandatory(r resolve.Resource) {
	c.mandatory = append(c.mandatory, r)
}

// AddOptional registers r as a resource to resolve if possible.
func (c *Context) AddOptional(r resolve.Resource) {
	c.optional = append(c.optional, r)
}

// SetWiring records r as already resolved with the given Wiring.
func (c *Context) SetWiring(r resolve.Resource, w resolve.Wiring) {
	c.wirings[r] = w
}

func (c *Context) MandatoryResources() []resolve.Resource { return c.mandatory }
func (c *Context) OptionalResources() []resolve.Resource  { return c.optional }

func (c *Context) Wirings() map[resolve.Resource]resolve.Wiring { return c.wirings }

// IsEffective defers to the requirement's own effective:=... directive.
func (c *Context) IsEffective(req *resolve.Requirement) bool {
	return req.Directives.IsEffectiveAtResolve()
}

// FindProviders returns every capability of req's namespace, across
// every registered resource, whose attributes match req's filter, in
// registration order; capabilities with a higher version sort first
// when both sides carry a version attribute, matching the preference
// a real resolve context almost always wants.
func (c *Context) FindProviders(req *resolve.Requirement) []*resolve.Capability {
	var out []*resolve.Capability
	for _, r := range c.resources {
		if r == req.Resource {
			// A resource never imports from itself; its own matching
			// export, if any, is handled as a substitutable export
			// once candidates are populated, not offered as a wire
			// candidate here.
			continue
		}
		for _, cap := range r.Capabilities(req.Namespace) {
			if !req.Filter.Match(cap.Attributes) {
				continue
			}
			out = append(out, cap)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, oki := out[i].Attributes[resolve.AttrVersion]
		vj, okj := out[j].Attributes[resolve.AttrVersion]
		if !oki || !okj {
			return false
		}
		if a, err := semver.DefaultSystem.Parse(vi); err == nil {
			if b, err := semver.DefaultSystem.Parse(vj); err == nil {
				return a.Compare(b) > 0
			}
		}
		return vi > vj
	})
	return out
}

// InsertHostedCapability inserts hosted at the front of caps: a
// fragment's hosted capability always ranks ahead of whatever the
// host already offers in the same namespace.
func (c *Context) InsertHostedCapability(caps []*resolve.Capability, hosted *resolve.HostedCapability) ([]*resolve.Capability, int) {
	out := make([]*resolve.Capability, 0, len(caps)+1)
	out = append(out, hosted.Capability)
	out = append(out, caps...)
	return out, 0
}
