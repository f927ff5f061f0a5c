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

package directive

import (
	"fmt"
	"testing"
)

func TestAccessors(t *testing.T) {
	mandatory := Set{}
	optional := New(Optional)
	optional.Set(Effective, "active")
	optional.Set(Uses, "a,b")

	tests := []struct {
		set     Set
		key     Key
		wantHas bool
		wantGet string
	}{
		{mandatory, Optional, false, ""},
		{mandatory, Effective, false, ""},
		{optional, Optional, true, ""},
		{optional, Effective, true, "active"},
		{optional, Uses, true, "a,b"},
		{optional, Multiple, false, ""},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s/%s", test.set, test.key), func(t *testing.T) {
			if got := test.set.Has(test.key); got != test.wantHas {
				t.Errorf("Has got %v, want %v", got, test.wantHas)
			}
			v, ok := test.set.Get(test.key)
			if ok != test.wantHas {
				t.Errorf("Get ok got %v, want %v", ok, test.wantHas)
			} else if v != test.wantGet {
				t.Errorf("Get value got %q, want %q", v, test.wantGet)
			}
		})
	}
}

func TestUsedPackages(t *testing.T) {
	var s Set
	if got := s.UsedPackages(); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	s.Set(Uses, "a,b,c")
	got := s.UsedPackages()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestIsEffectiveAtResolve(t *testing.T) {
	var s Set
	if !s.IsEffectiveAtResolve() {
		t.Errorf("default should be effective at resolve")
	}
	s.Set(Effective, "resolve")
	if !s.IsEffectiveAtResolve() {
		t.Errorf("explicit resolve should be effective at resolve")
	}
	s.Set(Effective, "active")
	if s.IsEffectiveAtResolve() {
		t.Errorf("active should not be effective at resolve")
	}
}
