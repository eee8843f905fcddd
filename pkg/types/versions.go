/*
Copyright 2026 The Kubermatic Kubernetes Platform contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package types

import (
	"github.com/Masterminds/semver/v3"
)

// RegistryVersion is one version as declared by the registry.
type RegistryVersion struct {
	Version  *semver.Version
	TreeHash string
}

// ResolvedVersion is a registered version that has no tag yet, together
// with the commit it should be tagged at.
type ResolvedVersion struct {
	Version   *semver.Version
	TagName   string
	CommitSHA string
}

// IsStable returns true for versions without prerelease and build metadata.
func IsStable(v *semver.Version) bool {
	return v != nil && v.Prerelease() == "" && v.Metadata() == ""
}
