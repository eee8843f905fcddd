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

package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"k8c.io/gtag/pkg/git"
	"k8c.io/gtag/pkg/github"
	"k8c.io/gtag/pkg/types"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ErrNotFound is returned when a tree hash cannot be mapped to a commit.
// Such versions are skipped and retried on the next run.
var ErrNotFound = errors.New("no commit found for tree hash")

const tagCacheAttempts = 3

// Platform is the subset of the hosting platform API the resolver needs.
type Platform interface {
	Tags(ctx context.Context, owner string, name string) ([]types.Ref, error)
	TagRef(ctx context.Context, owner string, name string, tag string) (*types.Ref, error)
	TagObjectTarget(ctx context.Context, owner string, name string, tagSHA string) (string, error)
	ClosedPullRequests(ctx context.Context, owner string, name string, page int) ([]types.PullRequest, int, error)
	ClosedPullRequestsByHead(ctx context.Context, owner string, name string, branch string) ([]types.PullRequest, error)
}

// History is the local clone of the target repository.
type History interface {
	TreeHashes(subdir string) ([]git.CommitTree, error)
	TreeHash(sha string, subdir string) (string, error)
	CommitTimes() (map[string]time.Time, error)
	CommitTime(sha string) (time.Time, error)
}

type Config struct {
	// Owner and Name identify the target repository.
	Owner string
	Name  string

	// RegistryOwner and RegistryName identify the registry repository that
	// receives the registration pull requests.
	RegistryOwner string
	RegistryName  string

	Subdir string

	// Package metadata used to derive the registration branch name.
	PackageName    string
	PackageUUID    string
	PackageRepoURL string

	// MaxRegistryPRs caps the number of closed registry pull requests that
	// are inspected when building the pull request cache.
	MaxRegistryPRs int
}

type tagEntry struct {
	sha string

	// annotated entries point to a tag object, not to a commit
	annotated bool
}

// Resolver maps tree hashes to commits. It keeps one lazily built cache per
// kind of lookup and never persists anything beyond its own lifetime.
type Resolver struct {
	log      logrus.FieldLogger
	platform Platform
	history  History
	cfg      Config

	newBackOff func() backoff.BackOff

	tags         map[string]*tagEntry
	tagsDegraded bool
	missingTags  sets.Set[string]
	trees        map[string]string
	prs          map[string]types.PullRequest
	commitTimes  map[string]time.Time
}

func New(log logrus.FieldLogger, platform Platform, history History, cfg Config) *Resolver {
	return &Resolver{
		log:      log,
		platform: platform,
		history:  history,
		cfg:      cfg,

		missingTags: sets.New[string](),

		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

func (r *Resolver) tagCache(ctx context.Context) map[string]*tagEntry {
	if r.tags != nil {
		return r.tags
	}

	r.log.Info("Loading tags…")

	refs, err := backoff.Retry(ctx, func() ([]types.Ref, error) {
		refs, err := r.platform.Tags(ctx, r.cfg.Owner, r.cfg.Name)
		if github.IsForbidden(err) {
			return nil, backoff.Permanent(err)
		}

		return refs, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(tagCacheAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.WithError(err).WithField("retry", next).Warn("Failed to list tags, retrying.")
		}),
	)

	r.tags = map[string]*tagEntry{}

	if err != nil {
		r.log.WithError(err).Warn("Failed to list tags, checking every tag individually.")
		r.tagsDegraded = true
		return r.tags
	}

	for _, ref := range refs {
		r.tags[ref.Name] = &tagEntry{
			sha:       ref.Hash,
			annotated: ref.Annotated,
		}
	}

	r.log.WithField("tags", len(r.tags)).Debug("Loaded tag cache.")

	return r.tags
}

// TagExists reports whether the tag was present when the tag cache was
// built. If the cache could not be built, every tag is looked up on its
// own and the answer is memoized.
func (r *Resolver) TagExists(ctx context.Context, tag string) bool {
	cache := r.tagCache(ctx)
	if _, exists := cache[tag]; exists {
		return true
	}

	if !r.tagsDegraded || r.missingTags.Has(tag) {
		return false
	}

	ref, err := r.platform.TagRef(ctx, r.cfg.Owner, r.cfg.Name, tag)
	if err != nil {
		// not memoized, the next call or run asks again
		r.log.WithError(err).WithField("tag", tag).Warn("Failed to look up tag, treating it as existing.")
		return true
	}

	if ref == nil {
		r.missingTags.Insert(tag)
		return false
	}

	cache[tag] = &tagEntry{
		sha:       ref.Hash,
		annotated: ref.Annotated,
	}

	return true
}

// TagNames returns all known tag names, sorted.
func (r *Resolver) TagNames(ctx context.Context) []string {
	cache := r.tagCache(ctx)

	names := make([]string, 0, len(cache))
	for name := range cache {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// TagCommit returns the commit an existing tag points to. Annotated tags
// cost one extra API call, the result is memoized.
func (r *Resolver) TagCommit(ctx context.Context, tag string) (string, error) {
	entry, exists := r.tagCache(ctx)[tag]
	if !exists {
		return "", fmt.Errorf("tag %s does not exist", tag)
	}

	if entry.annotated {
		commit, err := r.platform.TagObjectTarget(ctx, r.cfg.Owner, r.cfg.Name, entry.sha)
		if err != nil {
			return "", fmt.Errorf("failed to resolve annotated tag %s: %w", tag, err)
		}

		entry.sha = commit
		entry.annotated = false
	}

	return entry.sha, nil
}

func (r *Resolver) treeCache() (map[string]string, error) {
	if r.trees != nil {
		return r.trees, nil
	}

	r.log.WithField("subdir", r.cfg.Subdir).Info("Walking repository history…")

	commits, err := r.history.TreeHashes(r.cfg.Subdir)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree cache: %w", err)
	}

	trees := map[string]string{}
	for _, c := range commits {
		// first seen wins
		if _, exists := trees[c.Tree]; !exists {
			trees[c.Tree] = c.Commit
		}
	}

	r.log.WithField("trees", len(trees)).Debug("Built tree cache.")
	r.trees = trees

	return r.trees, nil
}

// Resolve returns the commit whose tree (or subdirectory tree) matches the
// version's tree hash. ErrNotFound means neither the history nor the
// registration pull request could provide a verified commit.
func (r *Resolver) Resolve(ctx context.Context, version types.RegistryVersion) (string, error) {
	log := r.log.WithField("version", version.Version.String())

	trees, err := r.treeCache()
	if err != nil {
		return "", err
	}

	if commit, ok := trees[version.TreeHash]; ok {
		return commit, nil
	}

	log.Debug("Tree hash not found in history, checking the registry pull request.")

	pr, err := r.RegistryPR(ctx, version.Version.String())
	if err != nil {
		return "", err
	}

	if pr == nil {
		log.Debug("No registry pull request found.")
		return "", ErrNotFound
	}

	claimed := claimedCommit(pr.Body)
	if claimed == "" {
		log.WithField("pr", pr.HTMLURL).Warn("Registry pull request does not name a commit.")
		return "", ErrNotFound
	}

	tree, err := r.history.TreeHash(claimed, r.cfg.Subdir)
	if err != nil {
		log.WithError(err).WithField("commit", claimed).Warn("Failed to verify the commit claimed by the registry pull request.")
		return "", ErrNotFound
	}

	if tree != version.TreeHash {
		log.WithFields(logrus.Fields{
			"commit":   claimed,
			"tree":     tree,
			"expected": version.TreeHash,
		}).Warn("Commit claimed by the registry pull request has a different tree, ignoring it.")
		return "", ErrNotFound
	}

	return claimed, nil
}

// CommitTimes returns the author times of the given commits. Commits that
// are unknown to the local clone are omitted.
func (r *Resolver) CommitTimes(shas []string) (map[string]time.Time, error) {
	if r.commitTimes == nil {
		times, err := r.history.CommitTimes()
		if err != nil {
			return nil, fmt.Errorf("failed to read commit times: %w", err)
		}

		r.commitTimes = times
	}

	result := map[string]time.Time{}
	for _, sha := range shas {
		t, ok := r.commitTimes[sha]
		if !ok {
			// commits claimed by registry pull requests are not
			// necessarily reachable from any ref
			var err error

			t, err = r.history.CommitTime(sha)
			if errors.Is(err, git.ErrCommitNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}

			r.commitTimes[sha] = t
		}

		result[sha] = t
	}

	return result, nil
}
