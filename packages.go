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

import "fmt"

// Blame documents how a Capability reached a Resource's package
// space: the ordered chain of Requirements traversed to reach it. The
// root requirement is ReqChain[0]; the last is the one actually wired
// to Capability.
type Blame struct {
	Capability *Capability
	ReqChain   []*Requirement
}

// RootRequirement returns the first requirement in the blame chain,
// the one that originally pulled this capability's provider in.
func (b Blame) RootRequirement() *Requirement {
	if len(b.ReqChain) == 0 {
		return nil
	}
	return b.ReqChain[0]
}

// LastRequirement returns the requirement actually wired to
// Capability.
func (b Blame) LastRequirement() *Requirement {
	if len(b.ReqChain) == 0 {
		return nil
	}
	return b.ReqChain[len(b.ReqChain)-1]
}

func (b Blame) String() string {
	return fmt.Sprintf("%v via %v", b.Capability, b.ReqChain)
}

// extend returns a copy of b with req appended to its chain.
func (b Blame) extend(req *Requirement) Blame {
	chain := make([]*Requirement, len(b.ReqChain)+1)
	copy(chain, b.ReqChain)
	chain[len(b.ReqChain)] = req
	return Blame{Capability: b.Capability, ReqChain: chain}
}

// UsedBlames collects every Blame that reaches a particular used
// capability. RootCauses holds that used capability itself once any
// of its blames has a multiple-cardinality root requirement; the
// candidate that root requirement is wired to is not recorded.
type UsedBlames struct {
	Capability *Capability
	Blames     []Blame
	RootCauses map[*Capability]bool
}

func (u *UsedBlames) addBlame(b Blame) {
	u.Blames = append(u.Blames, b)
	if root := b.RootRequirement(); root != nil && root.Directives.IsMultiple() {
		if u.RootCauses == nil {
			u.RootCauses = make(map[*Capability]bool)
		}
		u.RootCauses[b.Capability] = true
	}
}

// Packages holds the computed package space of a single Resource for
// one trial permutation.
type Packages struct {
	Resource Resource
	Exported map[string]Blame
	Imported map[string][]Blame
	Required map[string][]Blame
	// Used maps a package name to the capabilities reached through
	// uses: directives, each with the blame chains that brought them
	// in.
	Used map[string]map[*Capability]*UsedBlames
}

func newPackages(r Resource) *Packages {
	return &Packages{
		Resource: r,
		Exported: make(map[string]Blame),
		Imported: make(map[string][]Blame),
		Required: make(map[string][]Blame),
		Used:     make(map[string]map[*Capability]*UsedBlames),
	}
}

func (p *Packages) addUsed(pkg string, b Blame) {
	m := p.Used[pkg]
	if m == nil {
		m = make(map[*Capability]*UsedBlames)
		p.Used[pkg] = m
	}
	ub := m[b.Capability]
	if ub == nil {
		ub = &UsedBlames{Capability: b.Capability}
		m[b.Capability] = ub
	}
	ub.addBlame(b)
}

// wireCandidate is the (requirement, capability) pair that would
// become a Wire were the current permutation to be adopted.
type wireCandidate struct {
	Req *Requirement
	Cap *Capability
}

// wireCandidatesFor computes the wire candidates for r given the
// current state of c.
func wireCandidatesFor(r Resource, c *Candidates) []wireCandidate {
	if w, ok := c.wirings[unwrap(r)]; ok {
		var wcs []wireCandidate
		for _, wire := range w.RequiredResourceWires("") {
			wcs = append(wcs, wireCandidate{wire.Requirement, wire.Capability})
		}
		for _, req := range r.Requirements("") {
			if !req.Directives.IsDynamic() {
				continue
			}
			if caps := c.lists[req.Declared()]; len(caps) > 0 {
				wcs = append(wcs, wireCandidate{req, caps[0]})
			}
		}
		return wcs
	}
	var wcs []wireCandidate
	for _, req := range r.Requirements("") {
		if req.Namespace == NamespaceHost {
			continue
		}
		caps := c.lists[req.Declared()]
		if len(caps) == 0 {
			continue
		}
		if req.Directives.IsDynamic() {
			// Only DynamicResolve populates a dynamic requirement.
			wcs = append(wcs, wireCandidate{req, caps[0]})
		} else if req.Directives.IsMultiple() {
			for _, cap := range caps {
				wcs = append(wcs, wireCandidate{req, cap})
			}
		} else {
			wcs = append(wcs, wireCandidate{req, caps[0]})
		}
	}
	return wcs
}

// computePackages computes the package space of r from its wire
// candidates. substituted holds the exported capabilities that have
// been substituted away by an equivalent import and must not be
// counted as exports.
func computePackages(r Resource, wcs []wireCandidate, substituted map[*Capability]bool, c *Candidates) (*Packages, error) {
	p := newPackages(r)

	for _, cap := range r.Capabilities(NamespacePackage) {
		if substituted[cap] {
			continue
		}
		pkg := cap.Attributes[AttrPackageName]
		p.Exported[pkg] = Blame{Capability: cap}
	}

	for _, wc := range wcs {
		switch wc.Cap.Namespace {
		case NamespacePackage:
			pkg := wc.Cap.Attributes[AttrPackageName]
			if wc.Req.Directives.IsDynamic() {
				if _, ok := p.Exported[pkg]; ok {
					return nil, fmt.Errorf("dynamic import of %s: package already visible (exported)", pkg)
				}
				if _, ok := p.Imported[pkg]; ok {
					return nil, fmt.Errorf("dynamic import of %s: package already visible (imported)", pkg)
				}
				if _, ok := p.Required[pkg]; ok {
					return nil, fmt.Errorf("dynamic import of %s: package already visible (required)", pkg)
				}
			}
			p.Imported[pkg] = append(p.Imported[pkg], Blame{Capability: wc.Cap, ReqChain: []*Requirement{wc.Req}})
		case NamespaceBundle:
			if err := mergeRequiredPackages(p, wc, c, make(map[*Capability]bool), make(map[Resource]bool)); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// computeUsed fills in p.Used from p's own imported/required blames
// (exports are not walked) and from wcs's generic-namespace wire
// candidates, following
// each source capability's uses: directive and anchoring every used
// package name against whatever already makes it visible in p. It
// requires every host's base package space (Exported/Imported/
// Required) to already be present in pkgsByResource, since a source's
// transitive closure can reach into another resource's package space.
//
// What gets recorded as "used" is not the declaring capability itself
// but the declaring resource's own resolved view of the used package
// (its own Exported/Imported/Required source for that name): a uses:
// directive says "my implementation references this package", and
// class-space consistency is about whether the caller and the callee
// agree on which capability provides it, not about the caller's own
// unrelated package.
func computeUsed(p *Packages, wcs []wireCandidate, pkgsByResource map[Resource]*Packages, cache *packageSourcesCache) {
	visited := make(map[*Capability]bool)

	walk := func(b Blame) {
		for _, s := range cache.capabilitySources(pkgsByResource, b.Capability) {
			if visited[s] {
				continue
			}
			visited[s] = true
			for _, used := range s.Directives.UsedPackages() {
				if !visibleIn(p, used) {
					continue
				}
				for _, usedCap := range cache.sources(pkgsByResource, s.Resource, used) {
					p.addUsed(used, Blame{Capability: usedCap, ReqChain: b.ReqChain})
				}
			}
		}
	}

	for _, blames := range p.Imported {
		for _, b := range blames {
			walk(b)
		}
	}
	for _, blames := range p.Required {
		for _, b := range blames {
			walk(b)
		}
	}
	for _, wc := range wcs {
		if wc.Cap.Namespace == NamespacePackage || wc.Cap.Namespace == NamespaceBundle {
			continue
		}
		walk(Blame{Capability: wc.Cap, ReqChain: []*Requirement{wc.Req}})
	}
}

// visibleIn reports whether pkg is already reachable in p, the
// condition required before a used-package entry is worth recording:
// an unreachable package's compatibility can't be checked against
// anything.
func visibleIn(p *Packages, pkg string) bool {
	if _, ok := p.Exported[pkg]; ok {
		return true
	}
	if bs, ok := p.Required[pkg]; ok && len(bs) > 0 {
		return true
	}
	if bs, ok := p.Imported[pkg]; ok && len(bs) > 0 {
		return true
	}
	return false
}

// mergeRequiredPackages walks the require-bundle wire's provider,
// pulling in every exported package (and anything it itself reexports
// transitively) into p.Required, cycle-detecting on visited
// capabilities and visited resources independently.
func mergeRequiredPackages(p *Packages, wc wireCandidate, c *Candidates, visitedCaps map[*Capability]bool, visitedRes map[Resource]bool) error {
	if visitedCaps[wc.Cap] || visitedRes[wc.Cap.Resource] {
		return nil
	}
	visitedCaps[wc.Cap] = true
	visitedRes[wc.Cap.Resource] = true

	provider := wc.Cap.Resource
	for _, exp := range provider.Capabilities(NamespacePackage) {
		pkg := exp.Attributes[AttrPackageName]
		p.Required[pkg] = append(p.Required[pkg], Blame{Capability: exp, ReqChain: []*Requirement{wc.Req}})
	}
	for _, req := range provider.Requirements(NamespaceBundle) {
		if !req.Directives.IsReexport() {
			continue
		}
		nextCap, ok := firstCandidate(c, req)
		if !ok {
			continue
		}
		nextWC := wireCandidate{Req: req, Cap: nextCap}
		if err := mergeRequiredPackages(p, nextWC, c, visitedCaps, visitedRes); err != nil {
			return err
		}
	}
	return nil
}

// firstCandidate returns the capability req is currently wired or
// would wire to: an already-resolved Wiring's provider if req's
// resource has one, otherwise req's current first candidate.
func firstCandidate(c *Candidates, req *Requirement) (*Capability, bool) {
	if w, ok := c.wirings[unwrap(req.Resource)]; ok {
		for _, wire := range w.RequiredResourceWires(NamespaceBundle) {
			if wire.Requirement == req || wire.Requirement.Declared() == req.Declared() {
				return wire.Capability, true
			}
		}
		return nil, false
	}
	caps := c.lists[req.Declared()]
	if len(caps) == 0 {
		return nil, false
	}
	return caps[0], true
}
