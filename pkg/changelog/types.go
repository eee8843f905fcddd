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

package changelog

import (
	"time"

	"k8c.io/gtag/pkg/types"
)

// Data is everything a changelog template can access. Empty strings stand
// for missing values.
type Data struct {
	Package string
	Version string
	// VersionURL links to the tree of the new tag.
	VersionURL string
	SHA        string

	PreviousRelease string
	CompareURL      string
	CustomNotes     string
	Backport        bool

	Issues []Item
	Pulls  []Item
}

// Item is a closed issue or merged pull request.
type Item struct {
	Number   int
	Title    string
	URL      string
	Author   string
	Labels   []string
	ClosedAt time.Time
}

func newItem(issue types.Issue) Item {
	return Item{
		Number:   issue.Number,
		Title:    issue.Title,
		URL:      issue.HTMLURL,
		Author:   issue.Author,
		Labels:   issue.Labels,
		ClosedAt: issue.ClosedAt,
	}
}
