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

package restest

import (
	"context"
	"os"
	"testing"

	"github.com/gnodet/felix"
)

func TestParseAndResolve(t *testing.T) {
	f, err := os.Open("testdata/basic.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	artifact, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(artifact.Tests) != 2 {
		t.Fatalf("got %d tests, want 2", len(artifact.Tests))
	}

	for _, tc := range artifact.Tests {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			wires, err := resolve.Resolve(context.Background(), tc.Context)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			for _, want := range tc.Expected {
				requirer, ok := tc.Named[want.Requirer]
				if !ok {
					t.Fatalf("test data names unknown requirer %q", want.Requirer)
				}
				provider, ok := tc.Named[want.Provider]
				if !ok {
					t.Fatalf("test data names unknown provider %q", want.Provider)
				}
				found := false
				for _, w := range wires[requirer] {
					if string(w.Requirement.Namespace) == want.Namespace && w.Provider == provider {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected wire %s -%s-> %s not found in %v", want.Requirer, want.Namespace, want.Provider, wires[requirer])
				}
			}
		})
	}
}
