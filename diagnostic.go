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

// usesConflict records one uses-constraint violation found while
// checking a trial permutation: two sets of sources for the same
// package name that are neither a superset nor a subset of each
// other, reached via two different blame chains.
type usesConflict struct {
	Resource Resource
	Package  string
	A, B     Blame
}

func (u usesConflict) String() string {
	return fmt.Sprintf("%s: uses conflict on package %q between %s and %s", u.Resource, u.Package, u.A, u.B)
}

// formatChain renders a blame chain as a human-readable explanation,
// root requirement first.
func formatChain(chain []Blame) string {
	parts := make([]string, len(chain))
	for i, b := range chain {
		parts[i] = b.String()
	}
	return strings.Join(parts, " -> ")
}

// formatDiagnostic builds the error returned to the caller when a
// resolve fails because of uses conflicts rather than missing
// candidates. Conflicts arrive in map iteration order, so they are
// sorted by resource, then package, then their rendered text, and the
// representative is the first one: only determinism is promised, not
// minimality.
func formatDiagnostic(conflicts []usesConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Resource.String() != conflicts[j].Resource.String() {
			return conflicts[i].Resource.String() < conflicts[j].Resource.String()
		}
		if conflicts[i].Package != conflicts[j].Package {
			return conflicts[i].Package < conflicts[j].Package
		}
		return conflicts[i].String() < conflicts[j].String()
	})
	rep := conflicts[0]
	return &ResolutionError{
		Req:    rep.A.LastRequirement(),
		Reason: fmt.Sprintf("uses constraint violation on package %q in %s (conflicts with %s)", rep.Package, rep.Resource, rep.B.Capability),
		Chain:  append(append([]Blame(nil), rep.A.ReqChain...), rep.B.ReqChain...),
	}
}
