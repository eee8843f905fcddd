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
	"strings"
	"testing"
	"time"

	"k8c.io/gtag/pkg/git"
	"k8c.io/gtag/pkg/types"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type fakePlatform struct {
	tags      []types.Ref
	tagErrors []error
	tagCalls  int

	tagObjects     map[string]string
	tagObjectCalls int

	tagRefErr     error
	tagRefLookups []string

	// registry pull requests, newest first
	prs         []types.PullRequest
	pageSize    int
	pagesListed int
	headQueries []string
}

func (f *fakePlatform) Tags(_ context.Context, _ string, _ string) ([]types.Ref, error) {
	f.tagCalls++
	if len(f.tagErrors) >= f.tagCalls {
		return nil, f.tagErrors[f.tagCalls-1]
	}

	return f.tags, nil
}

func (f *fakePlatform) TagRef(_ context.Context, _ string, _ string, tag string) (*types.Ref, error) {
	f.tagRefLookups = append(f.tagRefLookups, tag)
	if f.tagRefErr != nil {
		return nil, f.tagRefErr
	}

	for _, ref := range f.tags {
		if ref.Name == tag {
			return &ref, nil
		}
	}

	return nil, nil
}

func (f *fakePlatform) TagObjectTarget(_ context.Context, _ string, _ string, sha string) (string, error) {
	f.tagObjectCalls++
	return f.tagObjects[sha], nil
}

func (f *fakePlatform) ClosedPullRequests(_ context.Context, _ string, _ string, page int) ([]types.PullRequest, int, error) {
	f.pagesListed++

	size := f.pageSize
	if size == 0 {
		size = 100
	}

	start := (page - 1) * size
	if start >= len(f.prs) {
		return nil, 0, nil
	}

	end := start + size
	next := page + 1
	if end >= len(f.prs) {
		end = len(f.prs)
		next = 0
	}

	return f.prs[start:end], next, nil
}

func (f *fakePlatform) ClosedPullRequestsByHead(_ context.Context, _ string, _ string, branch string) ([]types.PullRequest, error) {
	f.headQueries = append(f.headQueries, branch)

	result := []types.PullRequest{}
	for _, pr := range f.prs {
		if pr.HeadRef == branch {
			result = append(result, pr)
		}
	}

	return result, nil
}

type fakeHistory struct {
	commits []git.CommitTree

	// objects are known commits that are not reachable from any ref
	objects []git.CommitTree

	times            map[string]time.Time
	unreachableTimes map[string]time.Time
	walks            int
}

func (f *fakeHistory) TreeHashes(_ string) ([]git.CommitTree, error) {
	f.walks++
	return f.commits, nil
}

func (f *fakeHistory) TreeHash(sha string, _ string) (string, error) {
	for _, c := range append(f.commits, f.objects...) {
		if c.Commit == sha {
			return c.Tree, nil
		}
	}

	return "", git.ErrCommitNotFound
}

func (f *fakeHistory) CommitTimes() (map[string]time.Time, error) {
	result := map[string]time.Time{}
	for sha, t := range f.times {
		result[sha] = t
	}

	return result, nil
}

func (f *fakeHistory) CommitTime(sha string) (time.Time, error) {
	if t, ok := f.unreachableTimes[sha]; ok {
		return t, nil
	}

	return time.Time{}, git.ErrCommitNotFound
}

var testConfig = Config{
	Owner:          "owner",
	Name:           "Example.jl",
	RegistryOwner:  "JuliaRegistries",
	RegistryName:   "General",
	PackageName:    "Example",
	PackageUUID:    "7876af07-990d-54b4-ab0e-23690620f79a",
	PackageRepoURL: "https://github.com/owner/Example.jl.git",
	MaxRegistryPRs: 300,
}

func newTestResolver(platform *fakePlatform, history *fakeHistory, cfg Config) *Resolver {
	r := New(logrus.New(), platform, history, cfg)
	r.newBackOff = func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}

	return r
}

func registryVersion(version string, tree string) types.RegistryVersion {
	return types.RegistryVersion{
		Version:  semver.MustParse(version),
		TreeHash: tree,
	}
}

func sha(c string) string {
	return strings.Repeat(c, 40)
}

func TestResolveFromHistory(t *testing.T) {
	history := &fakeHistory{
		commits: []git.CommitTree{
			{Commit: "c3", Tree: "t2"},
			{Commit: "c2", Tree: "t2"},
			{Commit: "c1", Tree: "t1"},
		},
	}

	r := newTestResolver(&fakePlatform{}, history, testConfig)
	ctx := context.Background()

	commit, err := r.Resolve(ctx, registryVersion("1.1.0", "t2"))
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	// first seen wins
	if commit != "c3" {
		t.Errorf("Expected c3, got %q.", commit)
	}

	commit, err = r.Resolve(ctx, registryVersion("1.0.0", "t1"))
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if commit != "c1" {
		t.Errorf("Expected c1, got %q.", commit)
	}

	if history.walks != 1 {
		t.Errorf("Expected history to be walked once, got %d walks.", history.walks)
	}
}

func TestResolveFromRegistryPR(t *testing.T) {
	branch := RegistryBranch(testConfig.PackageName, testConfig.PackageUUID, "1.2.0", testConfig.PackageRepoURL)
	merged := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	testcases := []struct {
		name     string
		history  []git.CommitTree
		body     string
		expected string
	}{
		{
			name:     "verified claim",
			history:  []git.CommitTree{{Commit: sha("a"), Tree: "t3"}},
			body:     "- Repository: https://github.com/owner/Example.jl\n- Commit: " + sha("a") + "\n",
			expected: sha("a"),
		},
		{
			name:    "claimed commit has another tree",
			history: []git.CommitTree{{Commit: sha("a"), Tree: "other"}},
			body:    "- Commit: " + sha("a") + "\n",
		},
		{
			name:    "claimed commit is unknown",
			history: []git.CommitTree{},
			body:    "- Commit: " + sha("b") + "\n",
		},
		{
			name:    "no claim",
			history: []git.CommitTree{},
			body:    "UUID: 7876af07",
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			platform := &fakePlatform{
				prs: []types.PullRequest{
					{Number: 1, HeadRef: branch, Body: testcase.body, MergedAt: merged},
				},
			}

			r := newTestResolver(platform, &fakeHistory{objects: testcase.history}, testConfig)

			commit, err := r.Resolve(context.Background(), registryVersion("1.2.0", "t3"))
			if testcase.expected == "" {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("Expected ErrNotFound, got %q / %v.", commit, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Failed to resolve: %v", err)
			}

			if commit != testcase.expected {
				t.Fatalf("Expected %q, got %q.", testcase.expected, commit)
			}
		})
	}
}

func TestRegistryPRCache(t *testing.T) {
	merged := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	branch := func(version string) string {
		return RegistryBranch(testConfig.PackageName, testConfig.PackageUUID, version, testConfig.PackageRepoURL)
	}

	platform := &fakePlatform{
		pageSize: 2,
		prs: []types.PullRequest{
			{Number: 5, HeadRef: branch("1.3.0"), MergedAt: merged},
			{Number: 4, HeadRef: branch("1.2.0")}, // closed without merging
			{Number: 3, HeadRef: branch("1.2.0"), MergedAt: merged},
			{Number: 2, HeadRef: branch("1.1.0"), MergedAt: merged},
			{Number: 1, HeadRef: branch("1.0.0"), MergedAt: merged},
		},
	}

	cfg := testConfig
	cfg.MaxRegistryPRs = 3

	r := newTestResolver(platform, &fakeHistory{}, cfg)
	ctx := context.Background()

	pr, err := r.RegistryPR(ctx, "1.2.0")
	if err != nil {
		t.Fatalf("Failed to find pull request: %v", err)
	}

	if pr == nil || pr.Number != 3 {
		t.Fatalf("Expected pull request #3, got %+v.", pr)
	}

	if platform.pagesListed != 2 {
		t.Errorf("Expected 2 pages to be listed, got %d.", platform.pagesListed)
	}

	if len(platform.headQueries) != 0 {
		t.Errorf("Expected no direct queries, got %v.", platform.headQueries)
	}

	// beyond the cap, found via a direct query
	pr, err = r.RegistryPR(ctx, "1.0.0")
	if err != nil {
		t.Fatalf("Failed to find pull request: %v", err)
	}

	if pr == nil || pr.Number != 1 {
		t.Fatalf("Expected pull request #1, got %+v.", pr)
	}

	if diff := cmp.Diff([]string{branch("1.0.0")}, platform.headQueries); diff != "" {
		t.Errorf("Unexpected direct queries (-want +got):\n%s", diff)
	}

	// the direct result is memoized
	if _, err := r.RegistryPR(ctx, "1.0.0"); err != nil {
		t.Fatalf("Failed to find pull request: %v", err)
	}

	if len(platform.headQueries) != 1 {
		t.Errorf("Expected the direct query result to be cached, got %d queries.", len(platform.headQueries))
	}

	if platform.pagesListed != 2 {
		t.Errorf("Expected the cache to be built once, got %d pages listed.", platform.pagesListed)
	}

	pr, err = r.RegistryPR(ctx, "9.9.9")
	if err != nil {
		t.Fatalf("Failed to look up pull request: %v", err)
	}

	if pr != nil {
		t.Fatalf("Expected no pull request, got #%d.", pr.Number)
	}
}

func TestRegistryBranch(t *testing.T) {
	branch := RegistryBranch("Example", "7876af07-990d-54b4-ab0e-23690620f79a", "1.2.3", "https://github.com/owner/Example.jl.git")

	if !strings.HasPrefix(branch, "registrator-example-7876af07-v1.2.3-") {
		t.Fatalf("Unexpected branch name %q.", branch)
	}

	if suffix := strings.TrimPrefix(branch, "registrator-example-7876af07-v1.2.3-"); len(suffix) != 10 {
		t.Fatalf("Expected a 10 character hash suffix, got %q.", suffix)
	}
}

func TestTagCacheRetries(t *testing.T) {
	transient := errors.New("non-200 OK status code: 502 Bad Gateway body: \"\"")

	testcases := []struct {
		name          string
		errors        []error
		expectedCalls int
		expectedTag   bool
	}{
		{
			name:          "success after two failures",
			errors:        []error{transient, transient},
			expectedCalls: 3,
			expectedTag:   true,
		},
		{
			name:          "gives up after three attempts",
			errors:        []error{transient, transient, transient, transient},
			expectedCalls: 3,
			expectedTag:   true,
		},
		{
			name:          "forbidden is not retried",
			errors:        []error{errors.New("non-200 OK status code: 403 Forbidden body: \"\"")},
			expectedCalls: 1,
			expectedTag:   true,
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			platform := &fakePlatform{
				tags:      []types.Ref{{Name: "v1.0.0", Hash: "c1"}},
				tagErrors: testcase.errors,
			}

			r := newTestResolver(platform, &fakeHistory{}, testConfig)
			ctx := context.Background()

			if exists := r.TagExists(ctx, "v1.0.0"); exists != testcase.expectedTag {
				t.Errorf("Expected TagExists to return %v, got %v.", testcase.expectedTag, exists)
			}

			// the cache, even if empty, is only built once
			r.TagExists(ctx, "v2.0.0")

			if platform.tagCalls != testcase.expectedCalls {
				t.Errorf("Expected %d calls, got %d.", testcase.expectedCalls, platform.tagCalls)
			}
		})
	}
}

func TestTagExistsWithoutTagCache(t *testing.T) {
	transient := errors.New("non-200 OK status code: 502 Bad Gateway body: \"\"")

	platform := &fakePlatform{
		tags:       []types.Ref{{Name: "v1.0.0", Hash: "t1", Annotated: true}},
		tagErrors:  []error{transient, transient, transient},
		tagObjects: map[string]string{"t1": "c1"},
	}

	r := newTestResolver(platform, &fakeHistory{}, testConfig)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !r.TagExists(ctx, "v1.0.0") {
			t.Fatal("Expected existing tag to be found without a tag cache.")
		}

		if r.TagExists(ctx, "v2.0.0") {
			t.Fatal("Expected missing tag not to exist.")
		}
	}

	if diff := cmp.Diff([]string{"v1.0.0", "v2.0.0"}, platform.tagRefLookups); diff != "" {
		t.Errorf("Expected every tag to be looked up once (-want +got):\n%s", diff)
	}

	commit, err := r.TagCommit(ctx, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to get tag commit: %v", err)
	}

	if commit != "c1" {
		t.Errorf("Expected c1, got %q.", commit)
	}
}

func TestTagExistsLookupFailure(t *testing.T) {
	platform := &fakePlatform{
		tagErrors: []error{errors.New("non-200 OK status code: 403 Forbidden body: \"\"")},
		tagRefErr: errors.New("connection reset"),
	}

	r := newTestResolver(platform, &fakeHistory{}, testConfig)

	if !r.TagExists(context.Background(), "v1.0.0") {
		t.Fatal("Expected a tag that cannot be looked up to be treated as existing.")
	}
}

func TestTagCommitMemoizesAnnotatedTags(t *testing.T) {
	platform := &fakePlatform{
		tags: []types.Ref{
			{Name: "v1.0.0", Hash: "c1"},
			{Name: "v2.0.0", Hash: "tagobj", Annotated: true},
		},
		tagObjects: map[string]string{"tagobj": "c2"},
	}

	r := newTestResolver(platform, &fakeHistory{}, testConfig)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		commit, err := r.TagCommit(ctx, "v2.0.0")
		if err != nil {
			t.Fatalf("Failed to resolve tag: %v", err)
		}

		if commit != "c2" {
			t.Fatalf("Expected c2, got %q.", commit)
		}
	}

	commit, err := r.TagCommit(ctx, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to resolve tag: %v", err)
	}

	if commit != "c1" {
		t.Fatalf("Expected c1, got %q.", commit)
	}

	if platform.tagObjectCalls != 1 {
		t.Fatalf("Expected one tag object lookup, got %d.", platform.tagObjectCalls)
	}

	if diff := cmp.Diff([]string{"v1.0.0", "v2.0.0"}, r.TagNames(ctx)); diff != "" {
		t.Fatalf("Unexpected tag names (-want +got):\n%s", diff)
	}
}

func TestCommitTimes(t *testing.T) {
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{
		times:            map[string]time.Time{"c1": when, "c2": when.Add(time.Hour)},
		unreachableTimes: map[string]time.Time{"c9": when.Add(2 * time.Hour)},
	}

	r := newTestResolver(&fakePlatform{}, history, testConfig)

	times, err := r.CommitTimes([]string{"c1", "c9", "unknown"})
	if err != nil {
		t.Fatalf("Failed to get commit times: %v", err)
	}

	expected := map[string]time.Time{"c1": when, "c9": when.Add(2 * time.Hour)}
	if diff := cmp.Diff(expected, times); diff != "" {
		t.Fatalf("Unexpected commit times (-want +got):\n%s", diff)
	}
}
