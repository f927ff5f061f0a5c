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
Package resolve implements the module resolver core described by an
OSGi-style modular runtime: given a set of Resources that declare
Capabilities (what they provide) and Requirements (what they need), it
finds a permutation of candidate choices that is globally consistent —
both in the ordinary sense that every mandatory Requirement is
satisfied, and in the stronger "uses constraint" sense that every
Resource's class space is free of split packages.

The ResolveContext interface describes how the resolver discovers
Resources and ranks candidate Capabilities. Implementers of
ResolveContext (see the memctx package for an in-memory one) supply
the universe of Resources; Resolve walks that universe and produces a
WireMap, or an error: a *ResolutionError when a requirement has no
candidates or the uses conflicts cannot be resolved, a plain error for
a rejected dynamic import, cancellation, or too many permutation
attempts.
*/
package resolve
