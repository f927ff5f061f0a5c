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

// packageSourcesCache memoises the transitive source capabilities of
// a (resource, package) pair for one trial permutation; the search
// driver discards it (along with the rest of the trial) whenever it
// moves to the next permutation, per the package-sources cache the
// spec's package-space calculator describes.
type packageSourcesCache struct {
	byResource map[Resource]map[string][]*Capability
}

func newPackageSourcesCache() *packageSourcesCache {
	return &packageSourcesCache{byResource: make(map[Resource]map[string][]*Capability)}
}

// sources returns the set of capabilities that can contribute pkg to
// r's package space: r's own export of pkg (if any), and the
// capabilities that reach r as imports or requires of pkg. Required
// blames are already the flattened, transitively-reexported view
// computePackages built, so no further recursion is needed here.
func (c *packageSourcesCache) sources(pkgsByResource map[Resource]*Packages, r Resource, pkg string) []*Capability {
	if m, ok := c.byResource[r]; ok {
		if s, ok := m[pkg]; ok {
			return s
		}
	} else {
		c.byResource[r] = make(map[string][]*Capability)
	}

	p := pkgsByResource[r]
	var out []*Capability
	seen := make(map[*Capability]bool)
	add := func(cap *Capability) {
		if !seen[cap] {
			seen[cap] = true
			out = append(out, cap)
		}
	}
	if p != nil {
		if b, ok := p.Exported[pkg]; ok {
			add(b.Capability)
		}
		for _, b := range p.Imported[pkg] {
			add(b.Capability)
		}
		for _, b := range p.Required[pkg] {
			add(b.Capability)
		}
	}
	c.byResource[r][pkg] = out
	return out
}

// capabilitySources is the transitive source set of a single
// capability, independent of any particular requiring resource: a
// package-namespace capability is its own source (plus whatever else
// contributes that package to its own owning resource); anything else
// is its own sole source.
func (c *packageSourcesCache) capabilitySources(pkgsByResource map[Resource]*Packages, cap *Capability) []*Capability {
	if cap.Namespace != NamespacePackage {
		return []*Capability{cap}
	}
	pkg := cap.Attributes[AttrPackageName]
	srcs := c.sources(pkgsByResource, cap.Resource, pkg)
	found := false
	for _, s := range srcs {
		if s == cap {
			found = true
			break
		}
	}
	if found {
		return srcs
	}
	return append([]*Capability{cap}, srcs...)
}

// isCompatible reports whether one capability set is a subset of the
// other (in either direction), the condition the uses-constraint
// checker requires of two sets of sources reaching the same package
// name through different paths.
func isCompatible(a, b []*Capability) bool {
	return isSubset(a, b) || isSubset(b, a)
}

func isSubset(small, big []*Capability) bool {
	set := make(map[*Capability]bool, len(big))
	for _, c := range big {
		set[c] = true
	}
	for _, c := range small {
		if !set[c] {
			return false
		}
	}
	return true
}

// checkUsesConstraints runs the uses-constraint checker over every
// host's computed package space for one trial. When it finds a
// violation it mutates c (permutating a single-cardinality
// requirement along the offending blame chain, or relaxing a
// multiple-cardinality one out of consideration) and reports that a
// retry is warranted; if no mutation is possible the violations are
// returned for diagnostic reporting.
func checkUsesConstraints(c *Candidates, pkgsByResource map[Resource]*Packages, hosts []Resource, cache *packageSourcesCache) (conflicts []usesConflict, mutated bool) {
	for _, host := range hosts {
		p := pkgsByResource[host]
		if p == nil {
			continue
		}

		for pkg, blames := range p.Imported {
			if len(blames) < 2 {
				continue
			}
			first := blames[0]
			for _, other := range blames[1:] {
				if other.Capability.Resource == first.Capability.Resource || other.LastRequirement() == first.LastRequirement() {
					continue
				}
				conflicts = append(conflicts, usesConflict{Resource: host, Package: pkg, A: first, B: other})
				if mutateChain(c, first) || mutateChain(c, other) {
					mutated = true
				}
			}
		}

		for pkg, exportBlame := range p.Exported {
			expSrc := cache.capabilitySources(pkgsByResource, exportBlame.Capability)
			for _, ub := range p.Used[pkg] {
				usedSrc := cache.capabilitySources(pkgsByResource, ub.Capability)
				if isCompatible(expSrc, usedSrc) {
					continue
				}
				rep := ub.Blames[0]
				conflicts = append(conflicts, usesConflict{Resource: host, Package: pkg, A: rep, B: exportBlame})
				if resolveUsedConflict(c, ub, Blame{}) {
					mutated = true
				}
			}
		}

		merged := make(map[string]Blame, len(p.Imported)+len(p.Required))
		for pkg, blames := range p.Required {
			if len(blames) > 0 {
				merged[pkg] = blames[0]
			}
		}
		for pkg, blames := range p.Imported {
			if len(blames) > 0 {
				merged[pkg] = blames[0]
			}
		}
		for pkg, blame := range merged {
			ownSrc := cache.capabilitySources(pkgsByResource, blame.Capability)
			for _, ub := range p.Used[pkg] {
				usedSrc := cache.capabilitySources(pkgsByResource, ub.Capability)
				if isCompatible(ownSrc, usedSrc) {
					continue
				}
				rep := ub.Blames[0]
				conflicts = append(conflicts, usesConflict{Resource: host, Package: pkg, A: rep, B: blame})
				if resolveUsedConflict(c, ub, blame) {
					mutated = true
				}
			}
		}
	}
	return conflicts, mutated
}

// resolveUsedConflict attempts to mutate the candidates store so the
// conflict between ub (the transitive "used" view) and own (the
// conflicting resource's own direct blame for the same package, zero
// if there isn't one) no longer arises: first by relaxing any
// multiple-cardinality root cause out of consideration entirely, then
// by permutating along ub's blame chains, then own's.
func resolveUsedConflict(c *Candidates, ub *UsedBlames, own Blame) bool {
	for cap := range ub.RootCauses {
		for _, b := range ub.Blames {
			if b.Capability != cap {
				continue
			}
			if root := b.RootRequirement(); root != nil && root.Directives.IsMultiple() {
				c.clearCandidates(root)
				return true
			}
		}
	}
	if root := own.RootRequirement(); root != nil && root.Directives.IsMultiple() {
		c.clearCandidates(root)
		return true
	}
	for _, b := range ub.Blames {
		if mutateChain(c, b) {
			return true
		}
	}
	if mutateChain(c, own) {
		return true
	}
	return false
}

// mutateChain walks a blame chain from its tail looking for the first
// single-cardinality requirement whose candidate list can still be
// rotated.
func mutateChain(c *Candidates, b Blame) bool {
	for i := len(b.ReqChain) - 1; i >= 0; i-- {
		if b.ReqChain[i].Directives.IsMultiple() {
			continue
		}
		if c.permutateIfNeeded(b.ReqChain[i]) {
			return true
		}
	}
	return false
}
