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

// ResolveContext is the contract a caller implements to drive a
// resolve: enumerating the resources to resolve, ranking candidate
// providers for a requirement, reporting already-resolved state, and
// accepting the synthetic capabilities fragments contribute to a
// wrapped host.
//
// The resolver treats a ResolveContext as read-only except for
// InsertHostedCapability. Implementations are consulted synchronously
// and are expected to be fast: the core performs no I/O of its own
// (see the package doc and memctx for a ready-made implementation).
type ResolveContext interface {
	// MandatoryResources returns the resources that must resolve.
	MandatoryResources() []Resource

	// OptionalResources returns the resources that may be dropped from
	// the working set if they cannot be satisfied.
	OptionalResources() []Resource

	// FindProviders returns, in order of preference (most preferred
	// first), the capabilities that could satisfy req.
	FindProviders(req *Requirement) []*Capability

	// Wirings returns the already-resolved state of every Resource the
	// context considers resolved.
	Wirings() map[Resource]Wiring

	// InsertHostedCapability inserts hosted into caps at whatever
	// index the context deems appropriate (it owns capability
	// ranking), returning that index. It must be deterministic for
	// equal inputs.
	InsertHostedCapability(caps []*Capability, hosted *HostedCapability) ([]*Capability, int)

	// IsEffective reports whether req should be considered during a
	// resolve; it gates requirements whose effective directive
	// excludes resolve time.
	IsEffective(req *Requirement) bool
}

// Wiring is an already-resolved resource's realised wire set. The core
// never mutates a Wiring. A Wiring carries no service-scope
// information.
type Wiring interface {
	// Resource returns the Resource this Wiring describes.
	Resource() Resource

	// ResourceCapabilities returns the resource's capabilities in the
	// given namespace (all of them if namespace is empty).
	ResourceCapabilities(namespace Namespace) []*Capability

	// ResourceRequirements returns the resource's requirements in the
	// given namespace (all of them if namespace is empty).
	ResourceRequirements(namespace Namespace) []*Requirement

	// RequiredResourceWires returns the wires this resource already
	// has for requirements in the given namespace (all of them if
	// namespace is empty).
	RequiredResourceWires(namespace Namespace) []Wire
}
