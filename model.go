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

	"github.com/gnodet/felix/directive"
)

// Resource is an identified unit with declared Capabilities and
// Requirements. Implementations are supplied by the caller through a
// ResolveContext; the resolver never mutates them.
//
// A Resource is comparable precisely when the concrete type underneath
// the interface is (callers typically implement it with a pointer
// type, which satisfies this).
type Resource interface {
	fmt.Stringer

	// Capabilities returns the resource's declared capabilities. An
	// empty namespace returns all of them.
	Capabilities(namespace Namespace) []*Capability

	// Requirements returns the resource's declared requirements. An
	// empty namespace returns all of them.
	Requirements(namespace Namespace) []*Requirement
}

// Capability is a typed assertion a Resource provides.
type Capability struct {
	Resource   Resource
	Namespace  Namespace
	Attributes map[string]string
	Directives directive.Set

	// declared is non-nil when this Capability is a synthetic, hosted
	// copy produced by merging a fragment into a wrapped host; it then
	// points back at the original, fragment-owned Capability.
	declared *Capability
}

// Declared returns the original, un-wrapped Capability this one was
// derived from, or c itself if it already is one.
func (c *Capability) Declared() *Capability {
	if c.declared != nil {
		return c.declared
	}
	return c
}

func (c *Capability) String() string {
	return fmt.Sprintf("%s[%s]%v", c.Resource, c.Namespace, c.Attributes)
}

// clone returns a shallow copy of c, owned by the given resource and
// pointing back at c.Declared() as its origin.
func (c *Capability) clone(owner Resource) *Capability {
	attrs := make(map[string]string, len(c.Attributes))
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	return &Capability{
		Resource:   owner,
		Namespace:  c.Namespace,
		Attributes: attrs,
		Directives: c.Directives.Clone(),
		declared:   c.Declared(),
	}
}

// Requirement is a typed demand a Resource makes, matched by Filter
// against Capabilities of the same Namespace.
type Requirement struct {
	Resource   Resource
	Namespace  Namespace
	Directives directive.Set
	Filter     Filter

	// declared is non-nil when this Requirement is a synthetic copy
	// produced by rewriting a fragment's requirement to name a wrapped
	// host as its requirer; it then points back at the fragment's own
	// Requirement.
	declared *Requirement
}

// Declared returns the original, un-wrapped Requirement this one was
// derived from, or r itself if it already is one.
func (r *Requirement) Declared() *Requirement {
	if r.declared != nil {
		return r.declared
	}
	return r
}

func (r *Requirement) String() string {
	return fmt.Sprintf("%s[%s]%s", r.Resource, r.Namespace, r.Filter)
}

func (r *Requirement) clone(owner Resource) *Requirement {
	return &Requirement{
		Resource:   owner,
		Namespace:  r.Namespace,
		Directives: r.Directives.Clone(),
		Filter:     r.Filter,
		declared:   r.Declared(),
	}
}

// Wire is a single (requirer, requirement, provider, capability) edge,
// always expressed in terms of declared (un-wrapped) resources and
// capabilities.
type Wire struct {
	Requirer    Resource
	Requirement *Requirement
	Provider    Resource
	Capability  *Capability
}

func (w Wire) String() string {
	return fmt.Sprintf("%s -%s-> %s", w.Requirer, w.Requirement.Namespace, w.Provider)
}

// WireMap is the result of a resolve: for each newly-resolved
// Resource (including fragments), its ordered list of Wires — package
// wires first, then bundle wires, then generic capability wires;
// fragment host-wires appear under the fragment's own entry.
type WireMap map[Resource][]Wire

// HostedCapability is a Capability originally declared by a fragment,
// re-homed to a wrapped host. The ResolveContext decides where it
// ranks in candidate lists produced by later calls to FindProviders.
type HostedCapability struct {
	Host       Resource
	Capability *Capability
}

// WrappedResource is the synthetic resource representing a host with
// one or more fragments attached. Its Capabilities and Requirements
// are the union of the host's own and those contributed by its
// fragments (hosted capabilities owned by the wrap, requirements
// rewritten to name the wrap as requirer).
type WrappedResource struct {
	Host      Resource
	Fragments []Resource

	caps map[Namespace][]*Capability
	reqs map[Namespace][]*Requirement
}

// newWrappedResource builds the wrap of host with the given attached
// fragments, in the order given. rc ranks each fragment-contributed
// capability among the host's own, through InsertHostedCapability,
// the same hook a later FindProviders call is expected to have
// already honoured for any requirement populated after this fragment
// attached.
func newWrappedResource(rc ResolveContext, host Resource, fragments []Resource) *WrappedResource {
	w := &WrappedResource{
		Host:      host,
		Fragments: append([]Resource(nil), fragments...),
		caps:      make(map[Namespace][]*Capability),
		reqs:      make(map[Namespace][]*Requirement),
	}
	addReqs := func(r Resource, owner Resource, wrap bool) {
		for _, rq := range r.Requirements("") {
			if rq.Namespace == NamespaceHost {
				// The fragment's host requirement is consumed by
				// attachment; it does not appear on the wrap.
				continue
			}
			nrq := rq
			if wrap {
				nrq = rq.clone(owner)
			}
			w.reqs[rq.Namespace] = append(w.reqs[rq.Namespace], nrq)
		}
	}
	for _, c := range host.Capabilities("") {
		w.caps[c.Namespace] = append(w.caps[c.Namespace], c)
	}
	addReqs(host, w, false)
	for _, f := range fragments {
		for _, c := range f.Capabilities("") {
			nc := c.clone(w)
			hosted := &HostedCapability{Host: host, Capability: nc}
			ranked, _ := rc.InsertHostedCapability(w.caps[c.Namespace], hosted)
			w.caps[c.Namespace] = ranked
		}
		addReqs(f, w, true)
	}
	return w
}

func (w *WrappedResource) String() string { return fmt.Sprintf("wrap(%s)", w.Host) }

// Unwrap returns the underlying host Resource.
func (w *WrappedResource) Unwrap() Resource { return w.Host }

func (w *WrappedResource) Capabilities(namespace Namespace) []*Capability {
	if namespace == "" {
		var all []*Capability
		for _, ns := range sortedNamespaceKeysC(w.caps) {
			all = append(all, w.caps[ns]...)
		}
		return all
	}
	return w.caps[namespace]
}

func (w *WrappedResource) Requirements(namespace Namespace) []*Requirement {
	if namespace == "" {
		var all []*Requirement
		for _, ns := range sortedNamespaceKeysR(w.reqs) {
			all = append(all, w.reqs[ns]...)
		}
		return all
	}
	return w.reqs[namespace]
}

func sortedNamespaceKeysC(m map[Namespace][]*Capability) []Namespace {
	ks := make([]Namespace, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

func sortedNamespaceKeysR(m map[Namespace][]*Requirement) []Namespace {
	ks := make([]Namespace, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// unwrap returns the declared Resource backing r: r.Unwrap() if r is a
// *WrappedResource, r otherwise.
func unwrap(r Resource) Resource {
	if wr, ok := r.(*WrappedResource); ok {
		return wr.Unwrap()
	}
	return r
}

// identity returns a stable string key for a Resource, used for set
// membership and diagnostics. It favours the resource's own String().
func identity(r Resource) string {
	var b strings.Builder
	b.WriteString(r.String())
	return b.String()
}
