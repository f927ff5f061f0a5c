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
	"strings"

	"deps.dev/util/semver"
)

// Filter matches a Requirement against the Attributes of a Capability
// in the same namespace. Its concrete grammar is the LDAP-style subset
// OSGi requirement filters use: (&...), (|...), (!...), and leaf
// comparisons (key=value), (key>=value), (key<=value), (key=val*).
type Filter interface {
	Match(attrs map[string]string) bool
	String() string
}

// MatchAll is a Filter that matches every set of attributes.
var MatchAll Filter = matchAll{}

type matchAll struct{}

func (matchAll) Match(map[string]string) bool { return true }
func (matchAll) String() string               { return "(match-all)" }

// ParseFilter parses an LDAP-style filter string. An empty string
// parses to MatchAll.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MatchAll, nil
	}
	p := &filterParser{s: s}
	f, err := p.parseFilter()
	if err != nil {
		return nil, fmt.Errorf("parsing filter %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("parsing filter %q: trailing input at %d", s, p.pos)
	}
	return f, nil
}

// MustParseFilter is ParseFilter but panics on error; useful for
// constructing fixed filters in tests and example data.
func MustParseFilter(s string) Filter {
	f, err := ParseFilter(s)
	if err != nil {
		panic(err)
	}
	return f
}

type filterParser struct {
	s   string
	pos int
}

func (p *filterParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *filterParser) parseFilter() (Filter, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at %d", p.pos)
	}
	p.pos++
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unexpected end of filter")
	}
	var f Filter
	var err error
	switch p.s[p.pos] {
	case '&':
		p.pos++
		f, err = p.parseList(true)
	case '|':
		p.pos++
		f, err = p.parseList(false)
	case '!':
		p.pos++
		var inner Filter
		inner, err = p.parseFilter()
		f = notFilter{inner}
	default:
		f, err = p.parseItem()
	}
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != ')' {
		return nil, fmt.Errorf("expected ')' at %d", p.pos)
	}
	p.pos++
	return f, nil
}

func (p *filterParser) parseList(and bool) (Filter, error) {
	var items []Filter
	for {
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ')' {
			break
		}
		f, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if and {
		return andFilter{items}, nil
	}
	return orFilter{items}, nil
}

func (p *filterParser) parseItem() (Filter, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != '=' && p.s[p.pos] != '<' && p.s[p.pos] != '>' && p.s[p.pos] != ')' {
		p.pos++
	}
	key := strings.TrimSpace(p.s[start:p.pos])
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unterminated item starting at %d", start)
	}
	op := "="
	switch p.s[p.pos] {
	case '<', '>':
		op = string(p.s[p.pos])
		p.pos++
		if p.pos >= len(p.s) || p.s[p.pos] != '=' {
			return nil, fmt.Errorf("expected '=' after %q at %d", op, p.pos)
		}
		op += "="
		p.pos++
	case '=':
		p.pos++
		if p.pos < len(p.s) && p.s[p.pos] == '~' {
			// Tolerate a trailing '~' from a "~=" operator written
			// value-side; treated as plain equality.
			p.pos++
		}
	}
	vstart := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ')' {
		p.pos++
	}
	value := p.s[vstart:p.pos]
	if key == "" {
		return nil, fmt.Errorf("empty attribute name at %d", start)
	}
	return leafFilter{key: key, op: op, value: value}, nil
}

type andFilter struct{ items []Filter }

func (f andFilter) Match(attrs map[string]string) bool {
	for _, i := range f.items {
		if !i.Match(attrs) {
			return false
		}
	}
	return true
}
func (f andFilter) String() string { return "(&" + joinFilters(f.items) + ")" }

type orFilter struct{ items []Filter }

func (f orFilter) Match(attrs map[string]string) bool {
	for _, i := range f.items {
		if i.Match(attrs) {
			return true
		}
	}
	return false
}
func (f orFilter) String() string { return "(|" + joinFilters(f.items) + ")" }

func joinFilters(items []Filter) string {
	var b strings.Builder
	for _, i := range items {
		b.WriteString(i.String())
	}
	return b.String()
}

type notFilter struct{ inner Filter }

func (f notFilter) Match(attrs map[string]string) bool { return !f.inner.Match(attrs) }
func (f notFilter) String() string                     { return "(!" + f.inner.String() + ")" }

// leafFilter compares a single attribute. Values of AttrVersion and
// AttrBundleVersion are compared as versions (via deps.dev/util/semver)
// for the ordering operators; everything else falls back to string
// comparison, and "=" supports a single trailing or leading '*'
// wildcard or a bare "*" presence test.
type leafFilter struct {
	key, op, value string
}

func (f leafFilter) Match(attrs map[string]string) bool {
	v, ok := attrs[f.key]
	if !ok {
		return false
	}
	switch f.op {
	case "=":
		if f.value == "*" {
			return true
		}
		if strings.HasSuffix(f.value, "*") {
			return strings.HasPrefix(v, strings.TrimSuffix(f.value, "*"))
		}
		if strings.HasPrefix(f.value, "*") {
			return strings.HasSuffix(v, strings.TrimPrefix(f.value, "*"))
		}
		return v == f.value
	case ">=", "<=":
		if isVersionAttr(f.key) {
			if c, err := compareVersions(v, f.value); err == nil {
				if f.op == ">=" {
					return c >= 0
				}
				return c <= 0
			}
		}
		if f.op == ">=" {
			return v >= f.value
		}
		return v <= f.value
	}
	return false
}

func (f leafFilter) String() string {
	return fmt.Sprintf("(%s%s%s)", f.key, f.op, f.value)
}

func isVersionAttr(key string) bool {
	return key == AttrVersion || key == AttrBundleVersion
}

// compareVersions compares two version strings with the
// ecosystem-agnostic semver grammar, the same fallback path
// match.go's matchRequirement takes for systems with no dedicated
// Semver() mapping.
func compareVersions(a, b string) (int, error) {
	va, err := semver.DefaultSystem.Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := semver.DefaultSystem.Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
