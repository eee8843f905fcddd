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
	"fmt"

	"k8c.io/gtag/pkg/types"

	"github.com/shurcooL/githubv4"
)

type ref struct {
	Name   string
	Target struct {
		// for annotated tags, the target is the tag object itself and its
		// OID is not the commit hash; we only record the type here and
		// resolve the commit later, if ever needed
		Typename string `graphql:"__typename"`
		OID      string
	}
}

type refsQuery struct {
	Repository struct {
		Refs struct {
			Nodes    []ref
			PageInfo struct {
				EndCursor   githubv4.String
				HasNextPage bool
			}
		} `graphql:"refs(first: 100, refPrefix: $prefix, after: $cursor)"`
	} `graphql:"repository(name: $name, owner: $owner)"`
}

// Tags lists all tags of a repository.
func (c *Client) Tags(ctx context.Context, owner string, name string) ([]types.Ref, error) {
	result := []types.Ref{}
	cursor := ""

	for {
		var (
			err  error
			page []types.Ref
		)

		page, cursor, err = c.fetchTagsPage(ctx, owner, name, cursor)
		if err != nil {
			return nil, c.fail(ctx, err, "failed to fetch tags")
		}

		result = append(result, page...)

		if cursor == "" {
			break
		}
	}

	return result, nil
}

func (c *Client) fetchTagsPage(ctx context.Context, owner string, name string, cursor string) ([]types.Ref, string, error) {
	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"prefix": githubv4.String("refs/tags/"),
	}

	if cursor == "" {
		variables["cursor"] = (*githubv4.String)(nil)
	} else {
		variables["cursor"] = githubv4.String(cursor)
	}

	c.log.WithField("cursor", cursor).Debug("fetchTags()")

	var q refsQuery

	err := c.graphql.Query(ctx, &q, variables)
	if err != nil {
		return nil, "", err
	}

	cursor = ""
	if info := q.Repository.Refs.PageInfo; info.HasNextPage {
		cursor = string(info.EndCursor)
	}

	result := []types.Ref{}
	for _, apiRef := range q.Repository.Refs.Nodes {
		result = append(result, convertRef(apiRef))
	}

	return result, cursor, nil
}

func convertRef(api ref) types.Ref {
	return types.Ref{
		Name:      api.Name,
		Hash:      api.Target.OID,
		Annotated: api.Target.Typename == "Tag",
	}
}

// TagObjectTarget resolves an annotated tag object to the hash of the
// object it points to.
func (c *Client) TagObjectTarget(ctx context.Context, owner string, name string, tagSHA string) (string, error) {
	c.log.WithField("tag", tagSHA).Debug("TagObjectTarget()")

	tag, _, err := c.rest.Git.GetTag(ctx, owner, name, tagSHA)
	if err != nil {
		return "", c.fail(ctx, err, fmt.Sprintf("failed to get tag object %s", tagSHA))
	}

	return tag.GetObject().GetSHA(), nil
}

// TagRef looks up a single tag. It returns nil if the tag does not exist.
func (c *Client) TagRef(ctx context.Context, owner string, name string, tag string) (*types.Ref, error) {
	c.log.WithField("tag", tag).Debug("TagRef()")

	ref, _, err := c.rest.Git.GetRef(ctx, owner, name, "tags/"+tag)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, c.fail(ctx, err, fmt.Sprintf("failed to get tag %s", tag))
	}

	return &types.Ref{
		Name:      tag,
		Hash:      ref.GetObject().GetSHA(),
		Annotated: ref.GetObject().GetType() == "tag",
	}, nil
}
