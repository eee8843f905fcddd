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

package github

import (
	"context"

	"k8c.io/gtag/pkg/types"

	"github.com/google/go-github/v75/github"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ClosedPullRequests returns one page of closed pull requests, newest first,
// and the number of the next page (0 if there is none).
func (c *Client) ClosedPullRequests(ctx context.Context, owner string, name string, page int) ([]types.PullRequest, int, error) {
	c.log.WithFields(logrus.Fields{"repo": owner + "/" + name, "page": page}).Debug("ClosedPullRequests()")

	opts := &github.PullRequestListOptions{
		State:     "closed",
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: pageSize,
		},
	}

	prs, resp, err := c.rest.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, 0, c.fail(ctx, err, "failed to list pull requests")
	}

	result := []types.PullRequest{}
	for _, pr := range prs {
		result = append(result, convertPullRequest(pr))
	}

	return result, resp.NextPage, nil
}

// ClosedPullRequestsByHead returns the closed pull requests opened from the
// given branch of the base repository.
func (c *Client) ClosedPullRequestsByHead(ctx context.Context, owner string, name string, branch string) ([]types.PullRequest, error) {
	c.log.WithField("head", branch).Debug("ClosedPullRequestsByHead()")

	opts := &github.PullRequestListOptions{
		State: "closed",
		Head:  owner + ":" + branch,
	}

	prs, _, err := c.rest.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, c.fail(ctx, err, "failed to list pull requests")
	}

	result := []types.PullRequest{}
	for _, pr := range prs {
		result = append(result, convertPullRequest(pr))
	}

	return result, nil
}

func convertPullRequest(api *github.PullRequest) types.PullRequest {
	labels := sets.New[string]()
	for _, label := range api.Labels {
		labels.Insert(label.GetName())
	}

	return types.PullRequest{
		Number:   api.GetNumber(),
		Title:    api.GetTitle(),
		Body:     api.GetBody(),
		Labels:   labels,
		MergedAt: api.GetMergedAt().Time,
		HeadRef:  api.GetHead().GetRef(),
		HTMLURL:  api.GetHTMLURL(),
		Author:   api.GetUser().GetLogin(),
	}
}
