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

package changelog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"k8c.io/gtag/pkg/ranges"
	"k8c.io/gtag/pkg/types"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

type Platform interface {
	Releases(ctx context.Context, owner string, name string) ([]types.ExistingRelease, error)
	SearchClosedIssues(ctx context.Context, owner string, name string, start time.Time, end time.Time) ([]types.Issue, error)
	ClosedIssuesSince(ctx context.Context, owner string, name string, since time.Time) ([]types.Issue, error)
}

type Resolver interface {
	TagNames(ctx context.Context) []string
	CommitTimes(shas []string) (map[string]time.Time, error)
	RegistryPR(ctx context.Context, version string) (*types.PullRequest, error)
}

// Renderer turns changelog data into text using the given template.
type Renderer interface {
	Render(template string, data *Data) (string, error)
}

type Config struct {
	Owner   string
	Name    string
	HTMLURL string

	PackageName string
	TagPrefix   string

	// Template is passed to the renderer as-is.
	Template     string
	IgnoreLabels []string
}

type window struct {
	start int64
	end   int64
}

type Generator struct {
	log      logrus.FieldLogger
	platform Platform
	resolver Resolver
	renderer Renderer
	cfg      Config
	ignore   sets.Set[string]

	releases []types.ExistingRelease
	issues   map[window][]types.Issue
}

func NewGenerator(log logrus.FieldLogger, platform Platform, resolver Resolver, renderer Renderer, cfg Config) *Generator {
	return &Generator{
		log:      log,
		platform: platform,
		resolver: resolver,
		renderer: renderer,
		cfg:      cfg,
		ignore:   newLabelSet(cfg.IgnoreLabels),
		issues:   map[window][]types.Issue{},
	}
}

// Generate renders the changelog for a new version.
func (g *Generator) Generate(ctx context.Context, version types.ResolvedVersion) (string, error) {
	data, err := g.Data(ctx, version)
	if err != nil {
		return "", err
	}

	text, err := g.renderer.Render(g.cfg.Template, data)
	if err != nil {
		return "", fmt.Errorf("failed to render changelog: %w", err)
	}

	return text, nil
}

// Data collects everything the changelog template needs.
func (g *Generator) Data(ctx context.Context, version types.ResolvedVersion) (*Data, error) {
	log := g.log.WithField("version", version.TagName)

	releases, err := g.existingReleases(ctx)
	if err != nil {
		return nil, err
	}

	times, err := g.resolver.CommitTimes([]string{version.CommitSHA})
	if err != nil {
		return nil, err
	}

	commitTime, ok := times[version.CommitSHA]
	if !ok {
		return nil, fmt.Errorf("no commit time known for %s", version.CommitSHA)
	}

	data := &Data{
		Package:    g.cfg.PackageName,
		Version:    version.TagName,
		VersionURL: fmt.Sprintf("%s/tree/%s", g.cfg.HTMLURL, version.TagName),
		SHA:        version.CommitSHA,
		Backport:   ranges.IsBackport(g.cfg.TagPrefix, version.Version, g.resolver.TagNames(ctx)),
		Issues:     []Item{},
		Pulls:      []Item{},
	}

	previous := ranges.PreviousRelease(g.cfg.TagPrefix, version.Version, releases)
	if previous != nil {
		data.PreviousRelease = previous.TagName
		data.CompareURL = fmt.Sprintf("%s/compare/%s...%s", g.cfg.HTMLURL, previous.TagName, version.TagName)
	}

	start, end := ranges.Window(previous, commitTime)
	log.WithFields(logrus.Fields{"start": start, "end": end}).Debug("Determined changelog window.")

	issues, err := g.closedIssues(ctx, start, end)
	if err != nil {
		return nil, err
	}

	for _, issue := range issues {
		if isIgnored(g.ignore, issue.Labels) {
			continue
		}

		switch {
		case !issue.IsPullRequest:
			data.Issues = append(data.Issues, newItem(issue))
		case !issue.MergedAt.IsZero():
			data.Pulls = append(data.Pulls, newItem(issue))
		}
	}

	pr, err := g.resolver.RegistryPR(ctx, version.Version.String())
	switch {
	case err != nil:
		log.WithError(err).Warn("Failed to find registry pull request, changelog will have no custom notes.")
	case pr != nil:
		data.CustomNotes = extractCustomNotes(pr.Body)
	}

	log.WithFields(logrus.Fields{
		"issues":   len(data.Issues),
		"pulls":    len(data.Pulls),
		"backport": data.Backport,
	}).Info("Collected changelog data.")

	return data, nil
}

func (g *Generator) existingReleases(ctx context.Context) ([]types.ExistingRelease, error) {
	if g.releases == nil {
		releases, err := g.platform.Releases(ctx, g.cfg.Owner, g.cfg.Name)
		if err != nil {
			return nil, err
		}

		g.releases = releases
	}

	return g.releases, nil
}

// closedIssues returns all issues and pull requests closed in (start, end],
// ordered by close time.
func (g *Generator) closedIssues(ctx context.Context, start time.Time, end time.Time) ([]types.Issue, error) {
	key := window{start: start.Unix(), end: end.Unix()}
	if cached, ok := g.issues[key]; ok {
		return cached, nil
	}

	issues, err := g.platform.SearchClosedIssues(ctx, g.cfg.Owner, g.cfg.Name, start, end)
	if err != nil {
		g.log.WithError(err).Warn("Issue search failed, listing all closed issues instead.")

		issues, err = g.platform.ClosedIssuesSince(ctx, g.cfg.Owner, g.cfg.Name, start)
		if err != nil {
			return nil, err
		}
	}

	result := []types.Issue{}
	for _, issue := range issues {
		if issue.ClosedAt.After(start) && !issue.ClosedAt.After(end) {
			result = append(result, issue)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClosedAt.Before(result[j].ClosedAt)
	})

	g.issues[key] = result

	return result, nil
}
