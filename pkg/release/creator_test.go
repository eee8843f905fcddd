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
	"testing"

	"k8c.io/gtag/pkg/git"
	"k8c.io/gtag/pkg/github"
	"k8c.io/gtag/pkg/types"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type fakeRepository struct {
	remoteTags map[string]bool
	pushErr    error

	created  []string
	messages []string
	pushed   []string
}

func (f *fakeRepository) RemoteTagExists(_ context.Context, tag string) (bool, error) {
	return f.remoteTags[tag], nil
}

func (f *fakeRepository) CreateTag(tag string, _ string, message string) error {
	f.created = append(f.created, tag)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeRepository) PushTag(_ context.Context, tag string) error {
	if f.pushErr != nil {
		return f.pushErr
	}

	f.pushed = append(f.pushed, tag)
	return nil
}

type fakePlatform struct {
	head       string
	releaseErr error
	releases   []types.NewRelease
}

func (f *fakePlatform) BranchHead(_ context.Context, _ string, _ string, _ string) (string, error) {
	return f.head, nil
}

func (f *fakePlatform) CreateRelease(_ context.Context, _ string, _ string, release types.NewRelease) (string, error) {
	f.releases = append(f.releases, release)
	return "https://example.com/release", f.releaseErr
}

var testConfig = Config{
	Owner:         "owner",
	Name:          "Example.jl",
	DefaultBranch: "main",
}

func testRelease(commit string) Release {
	return Release{
		Version: types.ResolvedVersion{
			Version:   semver.MustParse("1.1.0"),
			TagName:   "v1.1.0",
			CommitSHA: commit,
		},
		Changelog: "changes",
		Latest:    true,
	}
}

func TestCreate(t *testing.T) {
	repo := &fakeRepository{}
	platform := &fakePlatform{head: "other"}

	release := testRelease("c2")
	release.RegistryPR = "https://github.com/JuliaRegistries/General/pull/1"

	if err := NewCreator(logrus.New(), repo, platform, testConfig).Create(context.Background(), release); err != nil {
		t.Fatalf("Failed to create release: %v", err)
	}

	if diff := cmp.Diff([]string{"v1.1.0"}, repo.pushed); diff != "" {
		t.Errorf("Unexpected pushes (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"v1.1.0\n\nRegistered in https://github.com/JuliaRegistries/General/pull/1"}, repo.messages); diff != "" {
		t.Errorf("Unexpected tag message (-want +got):\n%s", diff)
	}

	expected := []types.NewRelease{{
		TagName: "v1.1.0",
		Target:  "c2",
		Name:    "v1.1.0",
		Body:    "changes",
		Latest:  true,
	}}

	if diff := cmp.Diff(expected, platform.releases); diff != "" {
		t.Errorf("Unexpected releases (-want +got):\n%s", diff)
	}
}

func TestCreateTargetsDefaultBranch(t *testing.T) {
	platform := &fakePlatform{head: "c2"}

	if err := NewCreator(logrus.New(), &fakeRepository{}, platform, testConfig).Create(context.Background(), testRelease("c2")); err != nil {
		t.Fatalf("Failed to create release: %v", err)
	}

	if target := platform.releases[0].Target; target != "main" {
		t.Fatalf("Expected target main, got %q.", target)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	repo := &fakeRepository{remoteTags: map[string]bool{"v1.1.0": true}}
	platform := &fakePlatform{releaseErr: github.ErrReleaseExists}

	if err := NewCreator(logrus.New(), repo, platform, testConfig).Create(context.Background(), testRelease("c2")); err != nil {
		t.Fatalf("Expected existing tag and release to be fine, got %v.", err)
	}

	if len(repo.created) != 0 || len(repo.pushed) != 0 {
		t.Fatalf("Expected no tag to be created, got %v / %v.", repo.created, repo.pushed)
	}
}

func TestCreateWorkflowRejection(t *testing.T) {
	repo := &fakeRepository{
		pushErr: &git.WorkflowPushError{Tag: "v1.1.0", Err: errors.New("refusing to allow a GitHub App to create or update workflow")},
	}
	platform := &fakePlatform{}

	err := NewCreator(logrus.New(), repo, platform, testConfig).Create(context.Background(), testRelease("c2"))

	var workflowErr *git.WorkflowPushError
	if !errors.As(err, &workflowErr) {
		t.Fatalf("Expected a WorkflowPushError, got %v.", err)
	}

	if len(platform.releases) != 0 {
		t.Fatal("Expected no release to be created without a tag.")
	}
}

func TestCreateReleaseError(t *testing.T) {
	boom := errors.New("server error")
	platform := &fakePlatform{releaseErr: boom}

	err := NewCreator(logrus.New(), &fakeRepository{}, platform, testConfig).Create(context.Background(), testRelease("c2"))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the release error, got %v.", err)
	}
}
