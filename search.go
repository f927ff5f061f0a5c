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
	"context"
	"fmt"
	"sort"
)

// maxPermutationAttempts bounds the search so a resolver bug (or a
// pathological input) can't spin forever; it is far above anything a
// real uses-constraint backtrack should need.
const maxPermutationAttempts = 10000

// Resolve computes a WireMap satisfying every mandatory resource
// rc.MandatoryResources() reports, including as many of
// rc.OptionalResources() as can be satisfied without breaking the
// mandatory set, honouring every uses constraint along the way. It
// performs no I/O: every external fact it needs comes from rc.
func Resolve(ctx context.Context, rc ResolveContext) (WireMap, error) {
	c := newCandidates(rc)

	for _, r := range rc.MandatoryResources() {
		if err := c.populate(r); err != nil {
			return nil, err
		}
	}

	var roots []Resource
	roots = append(roots, rc.MandatoryResources()...)
	for _, r := range rc.OptionalResources() {
		trial := c.copy()
		if err := trial.populate(r); err != nil {
			continue
		}
		c = trial
		roots = append(roots, r)
	}

	return runToStability(ctx, c, roots)
}

// DynamicResolve extends an already-resolved graph with a single
// dynamic-import requirement discovered at run time (e.g. a
// class-loader miss), resolving just enough of the graph to satisfy
// it.
func DynamicResolve(ctx context.Context, rc ResolveContext, requirer Resource, req *Requirement) (WireMap, error) {
	c := newCandidates(rc)
	if err := c.populateDynamic(req); err != nil {
		return nil, err
	}
	return runToStability(ctx, c, []Resource{requirer})
}

// runToStability repeatedly computes the package space of every host
// reachable from roots and checks it for uses violations, mutating c
// (permutating or relaxing candidates) until either a consistent
// permutation is found, the candidates store reports the same
// permutation twice (the space is exhausted), or ctx is cancelled.
func runToStability(ctx context.Context, c *Candidates, roots []Resource) (WireMap, error) {
	processedDeltas := make(map[string]bool)
	var lastConflicts []usesConflict

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if attempt > maxPermutationAttempts {
			return nil, fmt.Errorf("resolve: exceeded %d permutation attempts", maxPermutationAttempts)
		}

		delta := c.getDelta()
		if processedDeltas[delta] {
			if len(lastConflicts) > 0 {
				return nil, formatDiagnostic(lastConflicts)
			}
			return nil, fmt.Errorf("resolve: permutation space exhausted without a uses-consistent solution")
		}
		processedDeltas[delta] = true

		hosts := closureHosts(c, roots)
		pkgsByResource, wcsByResource, err := computeAllPackages(hosts, c)
		if err != nil {
			return nil, err
		}

		cache := newPackageSourcesCache()
		for _, h := range hosts {
			computeUsed(pkgsByResource[h], wcsByResource[h], pkgsByResource, cache)
		}

		conflicts, mutated := checkUsesConstraints(c, pkgsByResource, hosts, cache)
		if len(conflicts) == 0 {
			return buildWireMap(c, hosts, wcsByResource), nil
		}
		if !mutated {
			return nil, formatDiagnostic(conflicts)
		}
		lastConflicts = conflicts
	}
}

// closureHosts walks every requirement's current first candidate
// (all candidates, for multiple-cardinality requirements) starting
// from roots, returning every reachable Resource in a stable order.
// Resources with fragments attached are represented by their
// WrappedResource; already-resolved resources are included too, since
// their package space still participates in uses-constraint checks as
// a source of truth.
func closureHosts(c *Candidates, roots []Resource) []Resource {
	seen := make(map[Resource]bool)
	var order []Resource

	var visit func(r Resource)
	visit = func(r Resource) {
		w := c.wrapped(unwrap(r))
		if seen[w] {
			return
		}
		seen[w] = true
		order = append(order, w)

		for _, req := range w.Requirements("") {
			if req.Namespace == NamespaceHost {
				continue
			}
			caps := c.lists[req.Declared()]
			if req.Directives.IsMultiple() {
				for _, cap := range caps {
					visit(cap.Resource)
				}
				continue
			}
			if len(caps) > 0 {
				visit(caps[0].Resource)
			}
		}
		if wiring, ok := c.wirings[unwrap(r)]; ok {
			for _, wire := range wiring.RequiredResourceWires("") {
				visit(wire.Provider)
			}
		}
	}
	for _, r := range roots {
		visit(r)
	}

	sort.SliceStable(order, func(i, j int) bool { return identity(order[i]) < identity(order[j]) })
	return order
}

// computeAllPackages computes the base package space (exported,
// imported, required) of every host, without yet following uses:
// directives; computeUsed needs every host's base space available
// before it can run.
func computeAllPackages(hosts []Resource, c *Candidates) (map[Resource]*Packages, map[Resource][]wireCandidate, error) {
	pkgsByResource := make(map[Resource]*Packages, len(hosts))
	wcsByResource := make(map[Resource][]wireCandidate, len(hosts))
	for _, h := range hosts {
		wcs := wireCandidatesFor(h, c)
		wcsByResource[h] = wcs
		p, err := computePackages(h, wcs, c.substituted, c)
		if err != nil {
			return nil, nil, err
		}
		pkgsByResource[h] = p
	}
	return pkgsByResource, wcsByResource, nil
}

// buildWireMap renders the current candidate choices into a WireMap,
// keyed by declared (un-wrapped) requirer, with fragment wires
// appearing under the fragment's own entry rather than the host's.
func buildWireMap(c *Candidates, hosts []Resource, wcsByResource map[Resource][]wireCandidate) WireMap {
	wm := make(WireMap)
	known := make(map[Resource]bool, len(hosts))
	for _, h := range hosts {
		known[unwrap(h)] = true
	}

	hostOf := make(map[Resource]Resource)
	for h, w := range c.hosts {
		for _, f := range w.Fragments {
			hostOf[f] = h
		}
	}

	for _, h := range hosts {
		_, resolved := c.wirings[unwrap(h)]
		for _, wc := range wcsByResource[h] {
			if resolved && !wc.Req.Directives.IsDynamic() {
				continue
			}
			realReq := wc.Req.Declared()
			requirer := unwrap(realReq.Resource)
			provider := unwrap(wc.Cap.Resource)
			if host, ok := hostOf[provider]; ok {
				provider = host
			}
			wm[requirer] = append(wm[requirer], Wire{
				Requirer:    requirer,
				Requirement: realReq,
				Provider:    provider,
				Capability:  wc.Cap.Declared(),
			})
		}
	}

	for req, caps := range c.lists {
		if req.Namespace != NamespaceHost || len(caps) == 0 {
			continue
		}
		provider := unwrap(caps[0].Resource)
		if !known[provider] {
			continue
		}
		wm[req.Resource] = append(wm[req.Resource], Wire{
			Requirer:    req.Resource,
			Requirement: req,
			Provider:    provider,
			Capability:  caps[0],
		})
	}

	rank := func(w Wire) int {
		switch w.Requirement.Namespace {
		case NamespacePackage:
			return 0
		case NamespaceBundle:
			return 1
		}
		return 2
	}
	for _, ws := range wm {
		sort.SliceStable(ws, func(i, j int) bool { return rank(ws[i]) < rank(ws[j]) })
	}

	return wm
}
