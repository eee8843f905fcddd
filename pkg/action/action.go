/*
Copyright 2020 The Kubermatic Kubernetes Platform contributors.

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

package action

import (
	"context"
	"errors"
	"fmt"

	"k8c.io/gtag/pkg/github"
	"k8c.io/gtag/pkg/planner"
	"k8c.io/gtag/pkg/release"
	"k8c.io/gtag/pkg/types"

	"github.com/go-openapi/inflect"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ErrReleasesFailed is returned when at least one version could not be
// released. Versions released in the same run stay released.
var ErrReleasesFailed = errors.New("some versions could not be released")

type Planner interface {
	Plan(ctx context.Context, versions []types.RegistryVersion) *planner.Plan
	SelectLatest(ctx context.Context, versions []types.ResolvedVersion) (*types.ResolvedVersion, error)
}

type Changelog interface {
	Generate(ctx context.Context, version types.ResolvedVersion) (string, error)
}

type Releaser interface {
	Create(ctx context.Context, release release.Release) error
}

type RegistryPRs interface {
	RegistryPR(ctx context.Context, version string) (*types.PullRequest, error)
}

type Signer interface {
	ConfigureSigning(key string, password string) error
}

type IssueCreator interface {
	CreateIssue(ctx context.Context, owner string, name string, title string, body string) (string, error)
}

type Config struct {
	Owner string
	Name  string

	GPGKey      string
	GPGPassword string
}

// Result is the outcome of releasing a single version. Err is nil for
// successful releases.
type Result struct {
	Version types.ResolvedVersion
	Err     error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Action releases all registered versions that have not been tagged yet.
type Action struct {
	log       logrus.FieldLogger
	planner   Planner
	changelog Changelog
	releaser  Releaser
	prs       RegistryPRs
	signer    Signer
	issues    IssueCreator
	clock     clockwork.Clock
	cfg       Config
}

func New(log logrus.FieldLogger, planner Planner, changelog Changelog, releaser Releaser, prs RegistryPRs, signer Signer, issues IssueCreator, cfg Config) *Action {
	return &Action{
		log:       log,
		planner:   planner,
		changelog: changelog,
		releaser:  releaser,
		prs:       prs,
		signer:    signer,
		issues:    issues,
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
	}
}

// Run plans and releases the given registry versions. It returns the
// per-version results; if any of them failed, a report is filed and
// ErrReleasesFailed is returned.
func (a *Action) Run(ctx context.Context, versions []types.RegistryVersion) ([]Result, error) {
	plan := a.planner.Plan(ctx, versions)

	results := []Result{}
	for _, failure := range plan.Failures {
		results = append(results, Result{
			Version: types.ResolvedVersion{
				Version:   failure.Version,
				TagName:   failure.TagName,
				CommitSHA: failure.Commit,
			},
			Err: failure.Err,
		})
	}

	if len(plan.Versions) == 0 && len(results) == 0 {
		a.log.Info("No new versions to release.")
		return results, nil
	}

	if len(plan.Versions) > 0 {
		if a.cfg.GPGKey != "" {
			if err := a.signer.ConfigureSigning(a.cfg.GPGKey, a.cfg.GPGPassword); err != nil {
				return nil, fmt.Errorf("failed to configure tag signing: %w", err)
			}
		}

		latest, err := a.planner.SelectLatest(ctx, plan.Versions)
		if err != nil {
			a.log.WithError(err).Warn("Failed to determine the latest version, no release will be marked as latest.")
			latest = nil
		}

		for _, version := range plan.Versions {
			isLatest := latest != nil && latest.TagName == version.TagName

			results = append(results, Result{
				Version: version,
				Err:     a.process(ctx, version, isLatest),
			})
		}
	}

	return results, a.summarize(ctx, results)
}

func (a *Action) process(ctx context.Context, version types.ResolvedVersion, latest bool) (err error) {
	log := a.log.WithFields(logrus.Fields{"version": version.Version.String(), "commit": version.CommitSHA})
	log.Info("Releasing version…")

	// a panic in one version must not keep the others from being released
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}

		switch {
		case github.IsServerError(err):
			log.WithError(err).WithField("transient", true).Error("Failed to release version, the platform reported a server error.")
		case err != nil:
			log.WithError(err).Error("Failed to release version.")
		}
	}()

	text, err := a.changelog.Generate(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to generate changelog: %w", err)
	}

	rel := release.Release{
		Version:   version,
		Changelog: text,
		Latest:    latest,
	}

	pr, err := a.prs.RegistryPR(ctx, version.Version.String())
	if err != nil {
		log.WithError(err).Debug("Failed to find registry pull request.")
	} else if pr != nil {
		rel.RegistryPR = pr.HTMLURL
	}

	return a.releaser.Create(ctx, rel)
}

func (a *Action) summarize(ctx context.Context, results []Result) error {
	var succeeded, failed []Result
	for _, result := range results {
		if result.Failed() {
			failed = append(failed, result)
		} else {
			succeeded = append(succeeded, result)
		}
	}

	if len(succeeded) > 0 {
		a.log.Infof("Released %d %s.", len(succeeded), pluralize("version", len(succeeded)))
	}

	if len(failed) == 0 {
		return nil
	}

	body := reportBody(failed, a.clock.Now())

	url, err := a.issues.CreateIssue(ctx, a.cfg.Owner, a.cfg.Name, ReportTitle, body)
	if err != nil {
		a.log.WithError(err).Error("Failed to file manual intervention report.")
		a.log.Info(body)
	} else {
		a.log.WithField("url", url).Info("Filed manual intervention report.")
	}

	return fmt.Errorf("%w: %d %s failed", ErrReleasesFailed, len(failed), pluralize("version", len(failed)))
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}

	return inflect.Pluralize(word)
}
