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
Package restest provides a way to define test data for the resolver.

Test data follows a simple block format, one YAML resource universe and
one plain-text expected wire list per test:

	-- universe sample
	resources:
	  - id: alice
	    requirements:
	      - namespace: osgi.wiring.package
	        filter: "(osgi.wiring.package=bob)"
	    capabilities:
	      - namespace: osgi.identity
	        attributes: {osgi.identity: alice}
	  - id: bob
	    capabilities:
	      - namespace: osgi.wiring.package
	        attributes: {osgi.wiring.package: bob, version: "1.0.0"}
	mandatory: [alice]
	-- end

	-- wires sample
	alice osgi.wiring.package bob
	-- end

	-- test single-import
	universe sample
	wires sample
	-- end

Each block runs until the next "-- end" line. A universe block's body
is the exact YAML memctx.LoadUniverse accepts. A wires block's body is
one expected wire per line: "<requirer-id> <namespace> <provider-id>".
*/
package restest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gnodet/felix"
	"github.com/gnodet/felix/memctx"
)

const (
	startUniverse = "-- universe "
	startWires    = "-- wires "
	startTest     = "-- test "
	endBlock      = "-- end"
)

// ExpectedWire is a single line of a wires block: the declared
// requirer id, the namespace it wired through, and the declared
// provider id.
type ExpectedWire struct {
	Requirer, Namespace, Provider string
}

// Test is one parsed "-- test" block together with the universe and
// wires blocks it refers to.
type Test struct {
	Name     string
	Context  *memctx.Context
	Named    map[string]resolve.Resource
	Expected []ExpectedWire
}

// Artifact holds everything parsed from one test data file.
type Artifact struct {
	Universes map[string]*memctx.Context
	Named     map[string]map[string]resolve.Resource
	Wires     map[string][]ExpectedWire
	Tests     []*Test
}

// Parse reads one test data file's worth of blocks.
func Parse(r io.Reader) (*Artifact, error) {
	a := &Artifact{
		Universes: make(map[string]*memctx.Context),
		Named:     make(map[string]map[string]resolve.Resource),
		Wires:     make(map[string][]ExpectedWire),
	}

	type pendingTest struct {
		name, universe, wires string
	}
	var pending []pendingTest

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, startUniverse):
			name := strings.TrimSpace(line[len(startUniverse):])
			body, err := readBlock(sc)
			if err != nil {
				return nil, fmt.Errorf("universe %s: %w", name, err)
			}
			ctx, named, err := memctx.LoadUniverse(strings.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("universe %s: %w", name, err)
			}
			a.Universes[name] = ctx
			a.Named[name] = named

		case strings.HasPrefix(line, startWires):
			name := strings.TrimSpace(line[len(startWires):])
			body, err := readBlock(sc)
			if err != nil {
				return nil, fmt.Errorf("wires %s: %w", name, err)
			}
			wires, err := parseWires(body)
			if err != nil {
				return nil, fmt.Errorf("wires %s: %w", name, err)
			}
			a.Wires[name] = wires

		case strings.HasPrefix(line, startTest):
			name := strings.TrimSpace(line[len(startTest):])
			body, err := readBlock(sc)
			if err != nil {
				return nil, fmt.Errorf("test %s: %w", name, err)
			}
			pt := pendingTest{name: name}
			for _, l := range strings.Split(body, "\n") {
				l = strings.TrimSpace(l)
				switch {
				case strings.HasPrefix(l, "universe "):
					pt.universe = strings.TrimSpace(strings.TrimPrefix(l, "universe "))
				case strings.HasPrefix(l, "wires "):
					pt.wires = strings.TrimSpace(strings.TrimPrefix(l, "wires "))
				}
			}
			pending = append(pending, pt)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, pt := range pending {
		ctx, ok := a.Universes[pt.universe]
		if !ok {
			return nil, fmt.Errorf("test %s: unknown universe %q", pt.name, pt.universe)
		}
		a.Tests = append(a.Tests, &Test{
			Name:     pt.name,
			Context:  ctx,
			Named:    a.Named[pt.universe],
			Expected: a.Wires[pt.wires],
		})
	}
	return a, nil
}

// readBlock consumes lines up to and including the next "-- end" and
// returns everything before it, joined with newlines.
func readBlock(sc *bufio.Scanner) (string, error) {
	var lines []string
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == endBlock {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, sc.Text())
	}
	return "", fmt.Errorf("missing %q", endBlock)
}

func parseWires(body string) ([]ExpectedWire, error) {
	var out []ExpectedWire
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		fields := strings.Fields(l)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed wire line %q: want 3 fields", l)
		}
		out = append(out, ExpectedWire{Requirer: fields[0], Namespace: fields[1], Provider: fields[2]})
	}
	return out, nil
}
