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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"k8c.io/gtag/pkg/types"

	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const pageSize = 100

// Client talks to the REST and GraphQL APIs with a single bearer token.
type Client struct {
	rest    *github.Client
	graphql *githubv4.Client
	log     logrus.FieldLogger
}

// NewClient creates a client for api.github.com, or for a GitHub Enterprise
// instance if apiURL is given.
func NewClient(ctx context.Context, log logrus.FieldLogger, token string, apiURL string) (*Client, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}

	src := oauth2.StaticTokenSource(
		&oauth2.Token{
			AccessToken: token,
		},
	)

	return newClient(log, oauth2.NewClient(ctx, src), apiURL)
}

func newClient(log logrus.FieldLogger, httpClient *http.Client, apiURL string) (*Client, error) {
	rest := github.NewClient(httpClient)
	graphql := githubv4.NewClient(httpClient)

	if apiURL != "" {
		apiURL = strings.TrimSuffix(apiURL, "/")

		base, err := url.Parse(apiURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", apiURL, err)
		}

		rest.BaseURL = base
		graphql = githubv4.NewEnterpriseClient(graphqlEndpoint(apiURL), httpClient)
	}

	return &Client{
		rest:    rest,
		graphql: graphql,
		log:     log,
	}, nil
}

// graphqlEndpoint maps "https://ghe/api/v3" to "https://ghe/api/graphql" and
// "https://api.github.com" to "https://api.github.com/graphql".
func graphqlEndpoint(apiURL string) string {
	if strings.HasSuffix(apiURL, "/v3") {
		return strings.TrimSuffix(apiURL, "/v3") + "/graphql"
	}

	return apiURL + "/graphql"
}

func (c *Client) Repository(ctx context.Context, owner string, name string) (types.Repository, error) {
	c.log.WithField("repo", owner+"/"+name).Debug("Repository()")

	repo, _, err := c.rest.Repositories.Get(ctx, owner, name)
	if err != nil {
		return types.Repository{}, c.fail(ctx, err, "failed to get repository")
	}

	return types.Repository{
		Owner:         owner,
		Name:          name,
		DefaultBranch: repo.GetDefaultBranch(),
		HTMLURL:       repo.GetHTMLURL(),
		CloneURL:      repo.GetCloneURL(),
		SSHURL:        repo.GetSSHURL(),
	}, nil
}

// BranchHead returns the commit hash the given branch currently points to.
func (c *Client) BranchHead(ctx context.Context, owner string, name string, branch string) (string, error) {
	b, _, err := c.rest.Repositories.GetBranch(ctx, owner, name, branch, 1)
	if err != nil {
		return "", c.fail(ctx, err, fmt.Sprintf("failed to get branch %q", branch))
	}

	return b.GetCommit().GetSHA(), nil
}

func (c *Client) CreateIssue(ctx context.Context, owner string, name string, title string, body string) (string, error) {
	issue, _, err := c.rest.Issues.Create(ctx, owner, name, &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return "", c.fail(ctx, err, "failed to create issue")
	}

	return issue.GetHTMLURL(), nil
}

// FileContents returns the raw content of a file on the default branch.
func (c *Client) FileContents(ctx context.Context, owner string, name string, path string) ([]byte, error) {
	c.log.WithField("path", path).Debug("FileContents()")

	file, _, _, err := c.rest.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return nil, c.fail(ctx, err, fmt.Sprintf("failed to get %s", path))
	}

	if file == nil {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	// files larger than 1 MB are not inlined into the contents response
	if file.GetEncoding() == "none" || (file.Content == nil && file.GetSize() > 0) {
		blob, _, err := c.rest.Git.GetBlobRaw(ctx, owner, name, file.GetSHA())
		if err != nil {
			return nil, c.fail(ctx, err, fmt.Sprintf("failed to get blob for %s", path))
		}

		return blob, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return []byte(content), nil
}
