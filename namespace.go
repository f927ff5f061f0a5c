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

// Namespace identifies a kind of Capability/Requirement: package,
// bundle, host, identity, execution-environment, or a generic
// user-defined namespace.
type Namespace string

// Well-known namespaces.
const (
	// NamespacePackage is carried by capabilities that export a
	// package, and requirements that import one.
	NamespacePackage Namespace = "osgi.wiring.package"

	// NamespaceBundle is carried by capabilities identifying a bundle
	// resource, and requirements that require-bundle another.
	NamespaceBundle Namespace = "osgi.wiring.bundle"

	// NamespaceHost is carried by the single requirement a fragment
	// declares on its host.
	NamespaceHost Namespace = "osgi.wiring.host"

	// NamespaceIdentity identifies a resource's own identity.
	NamespaceIdentity Namespace = "osgi.identity"

	// NamespaceExecutionEnvironment constrains a resource to an
	// execution environment.
	NamespaceExecutionEnvironment Namespace = "osgi.ee"
)

// Well-known attribute keys, valid on capabilities of the matching
// namespace.
const (
	// AttrPackageName names the package exported or imported in the
	// package namespace.
	AttrPackageName = "osgi.wiring.package"

	// AttrBundleSymbolicName names the bundle in the bundle namespace.
	AttrBundleSymbolicName = "osgi.wiring.bundle"

	// AttrVersion carries a package or bundle version. It is compared
	// with deps.dev/util/semver when a requirement filter constrains
	// it.
	AttrVersion = "version"

	// AttrBundleVersion carries the version of the providing bundle,
	// distinct from the package version itself.
	AttrBundleVersion = "bundle-version"
)

// isFragment reports whether r declares a requirement in the host
// namespace, which makes it a fragment attaching to some host.
func isFragment(r Resource) bool {
	return len(r.Requirements(NamespaceHost)) > 0
}
