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
felix-resolve is an example program that loads a resource universe
from a YAML file and resolves it, printing the resulting wire map or
the diagnostic explaining why it could not be resolved.
*/
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/gnodet/felix"
	"github.com/gnodet/felix/memctx"
)

const usage = "Usage: felix-resolve <universe.yaml>"

func main() {
	log.SetFlags(0)
	if len(os.Args) != 2 {
		log.Fatal(usage)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("Opening universe: %v", err)
	}
	defer f.Close()

	ctx, _, err := memctx.LoadUniverse(f)
	if err != nil {
		log.Fatalf("Loading universe: %v", err)
	}

	wires, err := resolve.Resolve(context.Background(), ctx)
	if err != nil {
		log.Fatalf("Resolve failed: %v", err)
	}
	printWireMap(wires)
}

func printWireMap(wires resolve.WireMap) {
	var requirers []resolve.Resource
	for r := range wires {
		requirers = append(requirers, r)
	}
	sort.Slice(requirers, func(i, j int) bool {
		return requirers[i].String() < requirers[j].String()
	})

	w := tabwriter.NewWriter(os.Stdout, 10, 2, 2, ' ', 0)
	defer w.Flush()
	for _, r := range requirers {
		for _, wire := range wires[r] {
			fmt.Fprintf(w, "%s\t%s\t%s\n", wire.Requirer, wire.Requirement.Namespace, wire.Provider)
		}
	}
}
