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

package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"k8c.io/gtag/pkg/ranges"
	"k8c.io/gtag/pkg/resolver"
	"k8c.io/gtag/pkg/types"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// ErrTagMismatch is recorded for existing tags that do not point to the
// commit the registry declares, if tag verification is enabled.
var ErrTagMismatch = errors.New("existing tag points to a different commit")

type Resolver interface {
	TagExists(ctx context.Context, tag string) bool
	TagNames(ctx context.Context) []string
	TagCommit(ctx context.Context, tag string) (string, error)
	Resolve(ctx context.Context, version types.RegistryVersion) (string, error)
	CommitTimes(shas []string) (map[string]time.Time, error)
}

type Config struct {
	TagPrefix string

	// VerifyTags compares the commit of every existing tag with the commit
	// its version resolves to.
	VerifyTags bool
}

// Failure is a version that could not be planned.
type Failure struct {
	Version *semver.Version
	TagName string
	Commit  string
	Err     error
}

type Plan struct {
	// Versions are sorted in ascending order.
	Versions []types.ResolvedVersion
	Failures []Failure
}

type Planner struct {
	log      logrus.FieldLogger
	resolver Resolver
	cfg      Config
}

func New(log logrus.FieldLogger, resolver Resolver, cfg Config) *Planner {
	return &Planner{
		log:      log,
		resolver: resolver,
		cfg:      cfg,
	}
}

// Plan returns the versions that have no tag yet and resolve to a commit.
// Versions that do not resolve are skipped silently, they are picked up
// again by the next run.
func (p *Planner) Plan(ctx context.Context, versions []types.RegistryVersion) *Plan {
	sorted := make([]types.RegistryVersion, len(versions))
	copy(sorted, versions)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version.LessThan(sorted[j].Version)
	})

	plan := &Plan{
		Versions: []types.ResolvedVersion{},
		Failures: []Failure{},
	}

	for _, version := range sorted {
		tag := ranges.TagName(p.cfg.TagPrefix, version.Version)
		log := p.log.WithField("version", version.Version.String())

		if p.resolver.TagExists(ctx, tag) {
			if p.cfg.VerifyTags {
				if failure := p.verifyTag(ctx, version, tag); failure != nil {
					plan.Failures = append(plan.Failures, *failure)
				}
			}

			continue
		}

		commit, err := p.resolver.Resolve(ctx, version)
		if errors.Is(err, resolver.ErrNotFound) {
			log.Info("No commit found for this version, skipping.")
			continue
		}

		if err != nil {
			log.WithError(err).Error("Failed to resolve version.")
			plan.Failures = append(plan.Failures, Failure{
				Version: version.Version,
				TagName: tag,
				Err:     err,
			})
			continue
		}

		plan.Versions = append(plan.Versions, types.ResolvedVersion{
			Version:   version.Version,
			TagName:   tag,
			CommitSHA: commit,
		})
	}

	return plan
}

func (p *Planner) verifyTag(ctx context.Context, version types.RegistryVersion, tag string) *Failure {
	log := p.log.WithField("tag", tag)

	expected, err := p.resolver.Resolve(ctx, version)
	if errors.Is(err, resolver.ErrNotFound) {
		log.Debug("Cannot verify tag, version does not resolve to a commit.")
		return nil
	}

	if err == nil {
		var actual string

		actual, err = p.resolver.TagCommit(ctx, tag)
		if err == nil && actual != expected {
			log.WithFields(logrus.Fields{"tagged": actual, "expected": expected}).Warn("Tag points to an unexpected commit.")
			err = fmt.Errorf("%w: %s points to %s, expected %s", ErrTagMismatch, tag, actual, expected)
		}
	}

	if err == nil {
		return nil
	}

	return &Failure{
		Version: version.Version,
		TagName: tag,
		Commit:  expected,
		Err:     err,
	}
}

// SelectLatest returns the new version that should be marked as the latest
// release, or nil. The decision is based on commit time rather than version
// order, so that backports do not replace a newer release line.
func (p *Planner) SelectLatest(ctx context.Context, versions []types.ResolvedVersion) (*types.ResolvedVersion, error) {
	if len(versions) == 0 {
		return nil, nil
	}

	existing := ranges.HighestStable(p.cfg.TagPrefix, p.resolver.TagNames(ctx))

	candidates := []types.ResolvedVersion{}
	var highestNew *semver.Version

	for _, v := range versions {
		if types.IsStable(v.Version) {
			candidates = append(candidates, v)

			if highestNew == nil || v.Version.GreaterThan(highestNew) {
				highestNew = v.Version
			}
		}
	}

	switch {
	case highestNew == nil && existing != nil:
		p.log.WithField("existing", existing.String()).Info("Only prereleases are new, not marking any release as latest.")
		return nil, nil

	case highestNew == nil:
		candidates = versions

	case existing != nil && existing.GreaterThan(highestNew):
		p.log.WithFields(logrus.Fields{
			"existing": existing.String(),
			"new":      highestNew.String(),
		}).Info("A newer release already exists, not marking any release as latest.")
		return nil, nil
	}

	shas := []string{}
	for _, c := range candidates {
		shas = append(shas, c.CommitSHA)
	}

	times, err := p.resolver.CommitTimes(shas)
	if err != nil {
		return nil, err
	}

	var (
		latest     *types.ResolvedVersion
		latestTime time.Time
	)

	for i, c := range candidates {
		t, ok := times[c.CommitSHA]
		if !ok {
			p.log.WithField("commit", c.CommitSHA).Warn("No commit time known, cannot consider version for latest.")
			continue
		}

		// ties keep the earlier candidate
		if latest == nil || t.After(latestTime) {
			latest = &candidates[i]
			latestTime = t
		}
	}

	if latest != nil {
		p.log.WithField("version", latest.Version.String()).Info("Selected latest release.")
	}

	return latest, nil
}
