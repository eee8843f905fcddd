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

package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"k8c.io/gtag/pkg/types"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidMetadata = errors.New("invalid registry metadata")
	ErrNotRegistered   = errors.New("package is not registered")
)

// Source reads files by their slash-separated path.
type Source interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Project is the package manifest of the target repository.
type Project struct {
	Name string `toml:"name"`
	UUID string `toml:"uuid"`
}

var projectFiles = []string{"Project.toml", "JuliaProject.toml"}

// ReadProject reads the package manifest in dir from the target repository.
func ReadProject(ctx context.Context, source Source, dir string) (*Project, error) {
	for _, filename := range projectFiles {
		content, err := source.ReadFile(ctx, path.Join(dir, filename))
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return ParseProject(content)
	}

	return nil, fmt.Errorf("%w: no project file found in %q", ErrInvalidMetadata, dir)
}

func ParseProject(content []byte) (*Project, error) {
	project := &Project{}
	if _, err := toml.Decode(string(content), project); err != nil {
		return nil, fmt.Errorf("%w: failed to parse project file: %w", ErrInvalidMetadata, err)
	}

	if project.Name == "" {
		return nil, fmt.Errorf("%w: project file has no name", ErrInvalidMetadata)
	}

	if project.UUID == "" {
		return nil, fmt.Errorf("%w: project file has no uuid", ErrInvalidMetadata)
	}

	return project, nil
}

type registryIndex struct {
	Packages map[string]struct {
		Name string `toml:"name"`
		Path string `toml:"path"`
	} `toml:"packages"`
}

type versionEntry struct {
	TreeSHA1 string `toml:"git-tree-sha1"`
	Yanked   bool   `toml:"yanked"`
}

type packageManifest struct {
	Name string `toml:"name"`
	UUID string `toml:"uuid"`
	Repo string `toml:"repo"`
}

// Registry reads the metadata of a registry. All data is parsed into typed
// records before it leaves this package.
type Registry struct {
	source Source
	log    logrus.FieldLogger
	index  *registryIndex
}

func New(log logrus.FieldLogger, source Source) *Registry {
	return &Registry{
		source: source,
		log:    log,
	}
}

func (r *Registry) decode(ctx context.Context, filename string, target interface{}) error {
	content, err := r.source.ReadFile(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if _, err := toml.Decode(string(content), target); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidMetadata, filename, err)
	}

	return nil
}

// PackagePath returns the directory in the registry that holds the metadata
// for the package with the given UUID.
func (r *Registry) PackagePath(ctx context.Context, uuid string) (string, error) {
	if r.index == nil {
		index := &registryIndex{}
		if err := r.decode(ctx, "Registry.toml", index); err != nil {
			return "", err
		}

		r.index = index
	}

	pkg, ok := r.index.Packages[uuid]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, uuid)
	}

	if pkg.Path == "" {
		return "", fmt.Errorf("%w: package %s has no path", ErrInvalidMetadata, uuid)
	}

	return pkg.Path, nil
}

// Versions returns all versions declared in <dir>/Versions.toml. Entries
// that are not valid semantic versions or lack a tree hash abort the read.
func (r *Registry) Versions(ctx context.Context, dir string) ([]types.RegistryVersion, error) {
	entries := map[string]versionEntry{}
	if err := r.decode(ctx, path.Join(dir, "Versions.toml"), &entries); err != nil {
		return nil, err
	}

	result := []types.RegistryVersion{}
	for version, entry := range entries {
		sv, err := semver.StrictNewVersion(version)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid version: %w", ErrInvalidMetadata, version, err)
		}

		if entry.TreeSHA1 == "" {
			return nil, fmt.Errorf("%w: version %s has no tree hash", ErrInvalidMetadata, version)
		}

		result = append(result, types.RegistryVersion{
			Version:  sv,
			TreeHash: strings.ToLower(entry.TreeSHA1),
		})
	}

	r.log.WithField("versions", len(result)).Debug("Read registry versions.")

	return result, nil
}

// RepositoryURL returns the source repository URL declared in
// <dir>/Package.toml.
func (r *Registry) RepositoryURL(ctx context.Context, dir string) (string, error) {
	manifest := &packageManifest{}
	if err := r.decode(ctx, path.Join(dir, "Package.toml"), manifest); err != nil {
		return "", err
	}

	if manifest.Repo == "" {
		return "", fmt.Errorf("%w: package has no repo", ErrInvalidMetadata)
	}

	return manifest.Repo, nil
}
