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

package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"k8c.io/gtag/pkg/changelog"
	"k8c.io/gtag/pkg/git"
	"k8c.io/gtag/pkg/github"
	"k8c.io/gtag/pkg/planner"
	"k8c.io/gtag/pkg/registry"
	"k8c.io/gtag/pkg/release"
	"k8c.io/gtag/pkg/render"
	"k8c.io/gtag/pkg/resolver"
	"k8c.io/gtag/pkg/types"

	"github.com/sirupsen/logrus"
)

// Execute discovers the package, wires up all components and releases
// every new version. Errors before the first version is known abort the
// whole run.
func Execute(ctx context.Context, log logrus.FieldLogger, opts *types.Options) error {
	owner, name, err := types.SplitSlug(opts.Repository)
	if err != nil {
		return err
	}

	registryOwner, registryName, err := types.SplitSlug(opts.Registry)
	if err != nil {
		return err
	}

	client, err := github.NewClient(ctx, log, opts.GithubToken, opts.GithubAPIURL)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	repo, err := client.Repository(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("failed to get repository: %w", err)
	}

	workdir := opts.Workdir
	if workdir == "" {
		workdir, err = os.MkdirTemp("", "gtag-")
		if err != nil {
			return fmt.Errorf("failed to create working directory: %w", err)
		}
		defer os.RemoveAll(workdir)
	}

	local, err := git.Clone(ctx, log, repo.CloneURL, filepath.Join(workdir, "repository"), git.TokenAuth(opts.GithubToken))
	if err != nil {
		return err
	}

	local.SetIdentity(opts.GitUserName, opts.GitUserEmail)

	if opts.SSHKey != "" {
		if err := local.ConfigureSSH(repo.SSHURL, opts.SSHKey, opts.SSHPassword); err != nil {
			return fmt.Errorf("failed to configure SSH: %w", err)
		}
	}

	// discover
	project, err := registry.ReadProject(ctx, &registry.GitSource{Repo: local}, opts.Subdir)
	if err != nil {
		return fmt.Errorf("failed to read package metadata: %w", err)
	}

	log = log.WithField("package", project.Name)

	source, err := registrySource(ctx, log, opts, client, registryOwner, registryName, workdir)
	if err != nil {
		return err
	}

	reg := registry.New(log, source)

	dir, err := reg.PackagePath(ctx, project.UUID)
	if errors.Is(err, registry.ErrNotRegistered) {
		log.Info("Package is not registered, nothing to do.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find package in registry: %w", err)
	}

	versions, err := reg.Versions(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to read registered versions: %w", err)
	}

	repoURL, err := reg.RepositoryURL(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to read package repository URL: %w", err)
	}

	tagPrefix := opts.EffectiveTagPrefix(project.Name)

	res := resolver.New(log, client, local, resolver.Config{
		Owner:          owner,
		Name:           name,
		RegistryOwner:  registryOwner,
		RegistryName:   registryName,
		Subdir:         opts.Subdir,
		PackageName:    project.Name,
		PackageUUID:    project.UUID,
		PackageRepoURL: repoURL,
		MaxRegistryPRs: opts.MaxRegistryPRs,
	})

	plan := planner.New(log, res, planner.Config{
		TagPrefix:  tagPrefix,
		VerifyTags: opts.VerifyTags,
	})

	gen := changelog.NewGenerator(log, client, res, render.NewMarkdownRenderer(repo.HTMLURL), changelog.Config{
		Owner:        owner,
		Name:         name,
		HTMLURL:      repo.HTMLURL,
		PackageName:  project.Name,
		TagPrefix:    tagPrefix,
		Template:     opts.Template,
		IgnoreLabels: opts.ChangelogIgnore,
	})

	creator := release.NewCreator(log, local, client, release.Config{
		Owner:         owner,
		Name:          name,
		DefaultBranch: repo.DefaultBranch,
		Draft:         opts.Draft,
	})

	act := New(log, plan, gen, creator, res, local, client, Config{
		Owner:       owner,
		Name:        name,
		GPGKey:      opts.GPGKey,
		GPGPassword: opts.GPGPassword,
	})

	_, err = act.Run(ctx, versions)

	return err
}

// registrySource returns where the registry metadata is read from: a local
// directory, a clone made with a dedicated SSH key, or the contents API.
func registrySource(ctx context.Context, log logrus.FieldLogger, opts *types.Options, client *github.Client, owner string, name string, workdir string) (registry.Source, error) {
	switch {
	case opts.RegistryDir != "":
		// clones are read at HEAD, plain directories as they are
		if clone, err := git.Open(log, opts.RegistryDir, nil); err == nil {
			return &registry.GitSource{Repo: clone}, nil
		}

		return &registry.DirSource{Dir: opts.RegistryDir}, nil

	case opts.RegistrySSHKey != "":
		cloneURL, err := sshURL(opts.GithubURL, owner, name)
		if err != nil {
			return nil, err
		}

		auth, err := git.SSHAuth(opts.RegistrySSHKey, opts.RegistrySSHPass)
		if err != nil {
			return nil, fmt.Errorf("invalid registry SSH key: %w", err)
		}

		clone, err := git.Clone(ctx, log.WithField("registry", owner+"/"+name), cloneURL, filepath.Join(workdir, "registry"), auth)
		if err != nil {
			return nil, fmt.Errorf("failed to clone registry: %w", err)
		}

		return &registry.GitSource{Repo: clone}, nil

	default:
		return &registry.GitHubSource{Client: client, Owner: owner, Name: name}, nil
	}
}

func sshURL(webURL string, owner string, name string) (string, error) {
	parsed, err := url.Parse(webURL)
	if err != nil || parsed.Hostname() == "" {
		return "", fmt.Errorf("invalid GitHub URL %q", webURL)
	}

	return fmt.Sprintf("git@%s:%s/%s.git", parsed.Hostname(), owner, name), nil
}
