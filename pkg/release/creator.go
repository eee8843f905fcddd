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

package release

import (
	"context"
	"errors"
	"fmt"

	"k8c.io/gtag/pkg/github"
	"k8c.io/gtag/pkg/types"

	"github.com/sirupsen/logrus"
)

// Repository is the local clone the tags are created in.
type Repository interface {
	RemoteTagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(tag string, commit string, message string) error
	PushTag(ctx context.Context, tag string) error
}

type Platform interface {
	BranchHead(ctx context.Context, owner string, name string, branch string) (string, error)
	CreateRelease(ctx context.Context, owner string, name string, release types.NewRelease) (string, error)
}

type Config struct {
	Owner         string
	Name          string
	DefaultBranch string
	Draft         bool
}

// Release is everything needed to publish one version.
type Release struct {
	Version   types.ResolvedVersion
	Changelog string
	Latest    bool

	// RegistryPR is linked in the tag message if set.
	RegistryPR string
}

type Creator struct {
	log      logrus.FieldLogger
	repo     Repository
	platform Platform
	cfg      Config
}

func NewCreator(log logrus.FieldLogger, repo Repository, platform Platform, cfg Config) *Creator {
	return &Creator{
		log:      log,
		repo:     repo,
		platform: platform,
		cfg:      cfg,
	}
}

// Create tags the commit and publishes the release. Every step can be
// repeated safely, so a failed run can simply be retried.
func (c *Creator) Create(ctx context.Context, release Release) error {
	version := release.Version
	log := c.log.WithFields(logrus.Fields{"tag": version.TagName, "commit": version.CommitSHA})

	exists, err := c.repo.RemoteTagExists(ctx, version.TagName)
	if err != nil {
		return fmt.Errorf("failed to check for existing tag: %w", err)
	}

	if exists {
		log.Info("Tag already exists, skipping tag creation.")
	} else {
		message := version.TagName
		if release.RegistryPR != "" {
			message = fmt.Sprintf("%s\n\nRegistered in %s", message, release.RegistryPR)
		}

		if err := c.repo.CreateTag(version.TagName, version.CommitSHA, message); err != nil {
			return err
		}

		log.Info("Pushing tag…")
		if err := c.repo.PushTag(ctx, version.TagName); err != nil {
			return err
		}
	}

	newRelease := types.NewRelease{
		TagName: version.TagName,
		Target:  c.target(ctx, version.CommitSHA),
		Name:    version.TagName,
		Body:    release.Changelog,
		Draft:   c.cfg.Draft,
		Latest:  release.Latest,
	}

	url, err := c.platform.CreateRelease(ctx, c.cfg.Owner, c.cfg.Name, newRelease)
	if errors.Is(err, github.ErrReleaseExists) {
		log.Info("Release already exists.")
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"url": url, "latest": release.Latest}).Info("Created release.")

	return nil
}

// target returns the default branch name if the commit is its head, which
// makes the platform show "N commits since this release".
func (c *Creator) target(ctx context.Context, commit string) string {
	if c.cfg.DefaultBranch == "" {
		return commit
	}

	head, err := c.platform.BranchHead(ctx, c.cfg.Owner, c.cfg.Name, c.cfg.DefaultBranch)
	if err != nil {
		c.log.WithError(err).Warn("Failed to get default branch head, targeting the commit.")
		return commit
	}

	if head == commit {
		return c.cfg.DefaultBranch
	}

	return commit
}
