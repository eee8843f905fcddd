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
	"io/fs"
	"os"
	"path/filepath"

	"k8c.io/gtag/pkg/git"
	"k8c.io/gtag/pkg/github"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitHubSource reads files from the default branch of a repository via the
// contents API.
type GitHubSource struct {
	Client *github.Client
	Owner  string
	Name   string
}

func (s *GitHubSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := s.Client.FileContents(ctx, s.Owner, s.Name, path)
	if github.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return content, err
}

// DirSource reads files from a local directory.
type DirSource struct {
	Dir string
}

func (s *DirSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return content, err
}

// GitSource reads files from the HEAD commit of a clone, which does not
// need to have a worktree.
type GitSource struct {
	Repo *git.Git
}

func (s *GitSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, err := s.Repo.ReadFile("", path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return content, err
}
