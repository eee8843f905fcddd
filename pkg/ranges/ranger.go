/*
Copyright 2022 The Kubermatic Kubernetes Platform contributors.

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

package ranges

import (
	"fmt"
	"strings"
	"time"

	"k8c.io/gtag/pkg/types"

	"github.com/Masterminds/semver/v3"
)

// GracePeriod is added to the commit time to form the end of a changelog
// window. Issues are often closed right after the release commit.
const GracePeriod = time.Minute

// TagName returns "v1.2.3" or "<prefix>-v1.2.3".
func TagName(prefix string, version *semver.Version) string {
	tag := "v" + version.String()
	if prefix != "" {
		tag = prefix + "-" + tag
	}

	return tag
}

// ParseTag is the inverse of TagName. Tags of other packages (with a
// different or no prefix) do not parse.
func ParseTag(prefix string, tag string) (*semver.Version, error) {
	if prefix != "" {
		if !strings.HasPrefix(tag, prefix+"-") {
			return nil, fmt.Errorf("tag %q does not have the prefix %q", tag, prefix)
		}

		tag = strings.TrimPrefix(tag, prefix+"-")
	}

	if !strings.HasPrefix(tag, "v") {
		return nil, fmt.Errorf("tag %q does not start with a v", tag)
	}

	return semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
}

// HighestStable returns the highest stable version among the tags, or nil.
// Prereleases and builds are skipped because they are never considered
// released.
func HighestStable(prefix string, tags []string) *semver.Version {
	var highest *semver.Version

	for _, tag := range tags {
		sv, err := ParseTag(prefix, tag)
		if err != nil || !types.IsStable(sv) {
			continue
		}

		if highest == nil || sv.GreaterThan(highest) {
			highest = sv
		}
	}

	return highest
}

// PreviousRelease returns the release with the highest stable version that
// is still lower than current, or nil if there is none.
func PreviousRelease(prefix string, current *semver.Version, releases []types.ExistingRelease) *types.ExistingRelease {
	var (
		previous        *types.ExistingRelease
		previousVersion *semver.Version
	)

	for i, release := range releases {
		sv, err := ParseTag(prefix, release.TagName)
		if err != nil || !types.IsStable(sv) || !sv.LessThan(current) {
			continue
		}

		if previousVersion == nil || sv.GreaterThan(previousVersion) {
			previous = &releases[i]
			previousVersion = sv
		}
	}

	return previous
}

// Window returns the (start, end] interval in which issues must have been
// closed to be part of a changelog. Without a previous release the window
// starts at the epoch.
func Window(previous *types.ExistingRelease, commitTime time.Time) (time.Time, time.Time) {
	start := time.Unix(0, 0).UTC()
	if previous != nil {
		start = previous.CreatedAt.UTC()
	}

	return start, commitTime.UTC().Add(GracePeriod)
}

// IsBackport returns true if any other tag of the same package has a
// higher stable version.
func IsBackport(prefix string, current *semver.Version, tags []string) bool {
	highest := HighestStable(prefix, tags)
	return highest != nil && highest.GreaterThan(current)
}
