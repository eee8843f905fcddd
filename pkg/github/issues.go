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
	"fmt"
	"time"

	"k8c.io/gtag/pkg/types"

	"github.com/google/go-github/v75/github"
	"github.com/sirupsen/logrus"
)

const searchTimeFormat = "2006-01-02T15:04:05Z"

func closedSearchQuery(owner string, name string, start time.Time, end time.Time) string {
	return fmt.Sprintf("repo:%s/%s is:closed closed:%s..%s",
		owner, name,
		start.UTC().Format(searchTimeFormat),
		end.UTC().Format(searchTimeFormat),
	)
}

// SearchClosedIssues uses the search API to find all issues and pull requests
// closed within [start, end].
func (c *Client) SearchClosedIssues(ctx context.Context, owner string, name string, start time.Time, end time.Time) ([]types.Issue, error) {
	query := closedSearchQuery(owner, name, start, end)
	opts := &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	result := []types.Issue{}

	for {
		c.log.WithFields(logrus.Fields{"query": query, "page": opts.Page}).Debug("SearchClosedIssues()")

		page, resp, err := c.rest.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, c.fail(ctx, err, "failed to search issues")
		}

		// the search API silently caps results, so a partial answer is useless
		if page.GetIncompleteResults() {
			return nil, ErrIncompleteSearch
		}

		for _, issue := range page.Issues {
			result = append(result, convertIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// ClosedIssuesSince pages through all closed issues and pull requests updated
// since the given time. Callers must filter by close time themselves.
func (c *Client) ClosedIssuesSince(ctx context.Context, owner string, name string, since time.Time) ([]types.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:     "closed",
		Since:     since,
		Sort:      "created",
		Direction: "asc",
		ListOptions: github.ListOptions{
			PerPage: pageSize,
		},
	}

	result := []types.Issue{}

	for {
		c.log.WithField("page", opts.ListOptions.Page).Debug("ClosedIssuesSince()")

		page, resp, err := c.rest.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, c.fail(ctx, err, "failed to list issues")
		}

		for _, issue := range page {
			result = append(result, convertIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return result, nil
}

func convertIssue(api *github.Issue) types.Issue {
	labels := []string{}
	for _, label := range api.Labels {
		labels = append(labels, label.GetName())
	}

	return types.Issue{
		Number:        api.GetNumber(),
		Title:         api.GetTitle(),
		HTMLURL:       api.GetHTMLURL(),
		Author:        api.GetUser().GetLogin(),
		Labels:        labels,
		ClosedAt:      api.GetClosedAt().Time,
		IsPullRequest: api.IsPullRequest(),
		MergedAt:      api.GetPullRequestLinks().GetMergedAt().Time,
	}
}
