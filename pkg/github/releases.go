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

package github

import (
	"context"
	"strconv"

	"k8c.io/gtag/pkg/types"

	"github.com/google/go-github/v75/github"
)

func (c *Client) Releases(ctx context.Context, owner string, name string) ([]types.ExistingRelease, error) {
	opts := &github.ListOptions{PerPage: pageSize}
	result := []types.ExistingRelease{}

	for {
		c.log.WithField("page", opts.Page).Debug("Releases()")

		releases, resp, err := c.rest.Repositories.ListReleases(ctx, owner, name, opts)
		if err != nil {
			return nil, c.fail(ctx, err, "failed to list releases")
		}

		for _, release := range releases {
			result = append(result, types.ExistingRelease{
				TagName:   release.GetTagName(),
				CreatedAt: release.GetCreatedAt().Time,
				HTMLURL:   release.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// CreateRelease returns ErrReleaseExists if a release for the tag already
// exists.
func (c *Client) CreateRelease(ctx context.Context, owner string, name string, release types.NewRelease) (string, error) {
	c.log.WithField("tag", release.TagName).Debug("CreateRelease()")

	created, _, err := c.rest.Repositories.CreateRelease(ctx, owner, name, &github.RepositoryRelease{
		TagName:         github.Ptr(release.TagName),
		TargetCommitish: github.Ptr(release.Target),
		Name:            github.Ptr(release.Name),
		Body:            github.Ptr(release.Body),
		Draft:           github.Ptr(release.Draft),
		MakeLatest:      github.Ptr(strconv.FormatBool(release.Latest)),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return "", ErrReleaseExists
		}

		return "", c.fail(ctx, err, "failed to create release")
	}

	return created.GetHTMLURL(), nil
}
