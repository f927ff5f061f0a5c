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

package memctx

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gnodet/felix"
	"github.com/gnodet/felix/directive"
)

// universeDoc is the YAML shape a universe file takes: a flat list of
// resources, each declaring its own capabilities and requirements,
// plus which ones are mandatory or optional to resolve.
type universeDoc struct {
	Resources []resourceDoc `yaml:"resources"`
	Mandatory []string      `yaml:"mandatory"`
	Optional  []string      `yaml:"optional"`
}

type resourceDoc struct {
	ID           string   `yaml:"id"`
	Capabilities []capDoc `yaml:"capabilities"`
	Requirements []reqDoc `yaml:"requirements"`
}

type capDoc struct {
	Namespace  string            `yaml:"namespace"`
	Attributes map[string]string `yaml:"attributes"`
	Uses       string            `yaml:"uses"`
}

type reqDoc struct {
	Namespace  string `yaml:"namespace"`
	Filter     string `yaml:"filter"`
	Resolution string `yaml:"resolution"` // "", "optional", "dynamic"
	Cardinality string `yaml:"cardinality"` // "", "multiple"
	Visibility string `yaml:"visibility"`  // "", "reexport"
	Effective  string `yaml:"effective"`   // "", "resolve", "active"
}

// resource is the concrete, named resolve.Resource a universe file
// produces; Capabilities/Requirements are grouped by namespace at
// build time so lookups don't rescan the full declaration.
type resource struct {
	id   string
	caps map[resolve.Namespace][]*resolve.Capability
	reqs map[resolve.Namespace][]*resolve.Requirement
}

func (r *resource) String() string { return r.id }

func (r *resource) Capabilities(ns resolve.Namespace) []*resolve.Capability {
	if ns == "" {
		var all []*resolve.Capability
		for _, k := range sortedCapKeys(r.caps) {
			all = append(all, r.caps[k]...)
		}
		return all
	}
	return r.caps[ns]
}

func (r *resource) Requirements(ns resolve.Namespace) []*resolve.Requirement {
	if ns == "" {
		var all []*resolve.Requirement
		for _, k := range sortedReqKeys(r.reqs) {
			all = append(all, r.reqs[k]...)
		}
		return all
	}
	return r.reqs[ns]
}

func sortedCapKeys(m map[resolve.Namespace][]*resolve.Capability) []resolve.Namespace {
	ks := make([]resolve.Namespace, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

func sortedReqKeys(m map[resolve.Namespace][]*resolve.Requirement) []resolve.Namespace {
	ks := make([]resolve.Namespace, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// LoadUniverse decodes a YAML resource universe from r into a ready
// Context, returning the Context and a lookup of resource by the id
// it was declared with.
func LoadUniverse(r io.Reader) (*Context, map[string]resolve.Resource, error) {
	var doc universeDoc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decoding universe: %w", err)
	}

	byID := make(map[string]*resource, len(doc.Resources))
	for _, rd := range doc.Resources {
		if _, dup := byID[rd.ID]; dup {
			return nil, nil, fmt.Errorf("universe: duplicate resource id %q", rd.ID)
		}
		res := &resource{
			id:   rd.ID,
			caps: make(map[resolve.Namespace][]*resolve.Capability),
			reqs: make(map[resolve.Namespace][]*resolve.Requirement),
		}
		byID[rd.ID] = res
	}

	for _, rd := range doc.Resources {
		res := byID[rd.ID]
		for _, cd := range rd.Capabilities {
			ns := resolve.Namespace(cd.Namespace)
			dset := directive.New()
			if cd.Uses != "" {
				dset.Set(directive.Uses, cd.Uses)
			}
			attrs := make(map[string]string, len(cd.Attributes))
			for k, v := range cd.Attributes {
				attrs[k] = v
			}
			res.caps[ns] = append(res.caps[ns], &resolve.Capability{
				Resource:   res,
				Namespace:  ns,
				Attributes: attrs,
				Directives: dset,
			})
		}
		for _, rq := range rd.Requirements {
			ns := resolve.Namespace(rq.Namespace)
			filter, err := resolve.ParseFilter(rq.Filter)
			if err != nil {
				return nil, nil, fmt.Errorf("universe: resource %q: %w", rd.ID, err)
			}
			var flags []directive.Key
			switch rq.Resolution {
			case "optional":
				flags = append(flags, directive.Optional)
			case "dynamic":
				flags = append(flags, directive.Dynamic)
			}
			if rq.Cardinality == "multiple" {
				flags = append(flags, directive.Multiple)
			}
			if rq.Visibility == "reexport" {
				flags = append(flags, directive.Reexport)
			}
			dset := directive.New(flags...)
			if rq.Effective != "" {
				dset.Set(directive.Effective, rq.Effective)
			}
			res.reqs[ns] = append(res.reqs[ns], &resolve.Requirement{
				Resource:   res,
				Namespace:  ns,
				Directives: dset,
				Filter:     filter,
			})
		}
	}

	ctx := New()
	named := make(map[string]resolve.Resource, len(byID))
	for _, rd := range doc.Resources {
		res := byID[rd.ID]
		ctx.AddResource(res)
		named[rd.ID] = res
	}
	for _, id := range doc.Mandatory {
		res, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("universe: mandatory resource %q not declared", id)
		}
		ctx.AddMandatory(res)
	}
	for _, id := range doc.Optional {
		res, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("universe: optional resource %q not declared", id)
		}
		ctx.AddOptional(res)
	}
	return ctx, named, nil
}
