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

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
)

var ErrCommitNotFound = errors.New("commit not found")

// Git wraps a local clone of a repository.
type Git struct {
	repo *gogit.Repository
	log  logrus.FieldLogger

	// auth is used for talking to origin
	auth transport.AuthMethod

	// pushURL and pushAuth override origin for pushes, e.g. when
	// tags must be pushed over SSH
	pushURL  string
	pushAuth transport.AuthMethod

	signKey     *openpgp.Entity
	taggerName  string
	taggerEmail string
}

// CommitTree pairs a commit with the tree it (or its subdirectory) has.
type CommitTree struct {
	Commit string
	Tree   string
}

// TokenAuth returns the HTTPS credentials GitHub accepts for a bearer token.
func TokenAuth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}

	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// Clone clones url into dir, without checking out a worktree.
func Clone(ctx context.Context, log logrus.FieldLogger, url string, dir string, auth transport.AuthMethod) (*Git, error) {
	log.WithField("dir", dir).Info("Cloning repository…")

	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:        url,
		Auth:       auth,
		NoCheckout: true,
		Tags:       gogit.AllTags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	return newGit(repo, log, auth), nil
}

// Open opens an existing clone.
func Open(log logrus.FieldLogger, dir string, auth transport.AuthMethod) (*Git, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to open git repository %s: %w", dir, err)
	}

	return newGit(repo, log, auth), nil
}

func newGit(repo *gogit.Repository, log logrus.FieldLogger, auth transport.AuthMethod) *Git {
	return &Git{
		repo:        repo,
		log:         log,
		auth:        auth,
		pushAuth:    auth,
		taggerName:  "github-actions[bot]",
		taggerEmail: "41898282+github-actions[bot]@users.noreply.github.com",
	}
}

// SetIdentity sets the tagger identity for annotated tags.
func (g *Git) SetIdentity(name string, email string) {
	g.taggerName = name
	g.taggerEmail = email
}

// TreeHashes walks all commits reachable from any ref and returns, in walk
// order, each commit together with its tree hash. If subdir is given, the
// tree of that subdirectory is returned instead and commits that do not
// contain it are omitted.
func (g *Git) TreeHashes(subdir string) ([]CommitTree, error) {
	iter, err := g.repo.Log(&gogit.LogOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	result := []CommitTree{}
	err = iter.ForEach(func(commit *object.Commit) error {
		tree := commit.TreeHash.String()

		if subdir != "" {
			subtree, err := subdirTree(commit, subdir)
			if errors.Is(err, object.ErrDirectoryNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			tree = subtree
		}

		result = append(result, CommitTree{
			Commit: commit.Hash.String(),
			Tree:   tree,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history: %w", err)
	}

	return result, nil
}

// CommitTimes returns the author timestamp of every reachable commit.
func (g *Git) CommitTimes() (map[string]time.Time, error) {
	iter, err := g.repo.Log(&gogit.LogOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	result := map[string]time.Time{}
	err = iter.ForEach(func(commit *object.Commit) error {
		result[commit.Hash.String()] = commit.Author.When.UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history: %w", err)
	}

	return result, nil
}

// CommitTime returns the author time of a single commit, which does not
// need to be reachable from any ref.
func (g *Git) CommitTime(sha string) (time.Time, error) {
	commit, err := g.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrCommitNotFound, sha)
		}
		return time.Time{}, err
	}

	return commit.Author.When.UTC(), nil
}

// TreeHash returns the tree hash of a commit, or of the given
// subdirectory within that commit.
func (g *Git) TreeHash(sha string, subdir string) (string, error) {
	commit, err := g.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %s", ErrCommitNotFound, sha)
		}
		return "", err
	}

	if subdir == "" {
		return commit.TreeHash.String(), nil
	}

	return subdirTree(commit, subdir)
}

func subdirTree(commit *object.Commit, subdir string) (string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return "", err
	}

	subtree, err := tree.Tree(subdir)
	if err != nil {
		return "", err
	}

	return subtree.Hash.String(), nil
}

// ReadFile reads a file from the tree of the current HEAD.
func (g *Git) ReadFile(dir string, name string) ([]byte, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	file, err := commit.File(path.Join(dir, name))
	if err != nil {
		return nil, err
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
