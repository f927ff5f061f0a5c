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

package resolve_test

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/gnodet/felix"
	"github.com/gnodet/felix/memctx"
)

// buildChain constructs n resources r0..r(n-1) where each r(i)
// (i<n-1) has a single requirement satisfied only by r(i+1)'s single
// exported package, so the resolve has exactly one valid outcome
// regardless of candidate order.
func buildChain(n int) (*memctx.Context, []*testResource) {
	resources := make([]*testResource, n)
	for i := 0; i < n; i++ {
		resources[i] = newTestResource(fmt.Sprintf("r%d", i))
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			packageCap(resources[i], fmt.Sprintf("chain.pkg.%d", i), "1.0.0", "")
		}
		if i < n-1 {
			resources[i].addReq(resolve.NamespacePackage, fmt.Sprintf("(osgi.wiring.package=chain.pkg.%d)", i+1))
		}
	}
	ctx := memctx.New()
	for _, r := range resources {
		ctx.AddResource(r)
	}
	ctx.AddMandatory(resources[0])
	return ctx, resources
}

// TestResolveIsIdempotent checks that resolving an unchanged context
// twice yields the same wire map, for chains of varying length: the
// core performs no I/O and the ResolveContext here is read-only, so a
// second resolve must reproduce the first exactly.
func TestResolveIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "chainLength")
		ctx, resources := buildChain(n)

		w1, err := resolve.Resolve(context.Background(), ctx)
		if err != nil {
			rt.Fatalf("first Resolve: %v", err)
		}
		w2, err := resolve.Resolve(context.Background(), ctx)
		if err != nil {
			rt.Fatalf("second Resolve: %v", err)
		}

		if len(w1) != len(w2) {
			rt.Fatalf("wire map size changed across resolves: %d vs %d", len(w1), len(w2))
		}
		for _, r := range resources {
			a, b := w1[resolve.Resource(r)], w2[resolve.Resource(r)]
			if len(a) != len(b) {
				rt.Fatalf("resource %s: wire count changed: %d vs %d", r, len(a), len(b))
			}
			for i := range a {
				if a[i].Provider != b[i].Provider {
					rt.Fatalf("resource %s wire %d: provider changed across resolves: %v vs %v", r, i, a[i].Provider, b[i].Provider)
				}
			}
		}
	})
}

// TestResolveChainWiresAreValid checks the basic wire-validity
// invariant: every produced wire's capability actually belongs to the
// provider it names, in the namespace the requirement asked for.
func TestResolveChainWiresAreValid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "chainLength")
		ctx, _ := buildChain(n)

		wires, err := resolve.Resolve(context.Background(), ctx)
		if err != nil {
			rt.Fatalf("Resolve: %v", err)
		}
		for requirer, ws := range wires {
			for _, w := range ws {
				if w.Requirer != requirer {
					rt.Fatalf("wire requirer %v does not match map key %v", w.Requirer, requirer)
				}
				found := false
				for _, cap := range w.Provider.Capabilities(w.Requirement.Namespace) {
					if cap == w.Capability || cap.Declared() == w.Capability.Declared() {
						found = true
					}
				}
				if !found {
					rt.Fatalf("wire %v: capability not found among provider's own capabilities", w)
				}
				if !w.Requirement.Filter.Match(w.Capability.Attributes) {
					rt.Fatalf("wire %v: capability attributes do not match requirement filter", w)
				}
			}
		}
	})
}

// TestResolveMandatoryMissingFails checks the monotonicity-of-failure
// law: breaking the sole candidate for a mandatory chain link must
// turn a previously successful resolve into a failure, never into a
// different success.
func TestResolveMandatoryMissingFails(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 12).Draw(rt, "chainLength")
		ctx, resources := buildChain(n)
		if _, err := resolve.Resolve(context.Background(), ctx); err != nil {
			rt.Fatalf("baseline Resolve should succeed: %v", err)
		}

		// Remove the last link's export entirely by replacing the final
		// resource's capabilities, breaking the one candidate the
		// second-to-last resource's requirement could ever match.
		resources[n-1].caps[resolve.NamespacePackage] = nil

		if _, err := resolve.Resolve(context.Background(), ctx); err == nil {
			rt.Fatalf("expected Resolve to fail once the sole candidate is removed")
		}
	})
}
