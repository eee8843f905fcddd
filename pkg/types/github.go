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

package types

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// PullRequest is a pull request as seen by the changelog and by the
// registry lookup (where HeadRef is the registrator branch name).
type PullRequest struct {
	Number   int              `yaml:"number"`
	Title    string           `yaml:"title"`
	Body     string           `yaml:"body"`
	Labels   sets.Set[string] `yaml:"labels"`
	MergedAt time.Time        `yaml:"mergedAt"`
	HeadRef  string           `yaml:"headRef"`
	HTMLURL  string           `yaml:"htmlURL"`
	Author   string           `yaml:"author"`
}

func (p PullRequest) Merged() bool {
	return !p.MergedAt.IsZero()
}

// Issue is a closed issue or pull request returned by the search or the
// issue listing. Both code paths produce this type.
type Issue struct {
	Number        int
	Title         string
	HTMLURL       string
	Author        string
	Labels        []string
	ClosedAt      time.Time
	IsPullRequest bool
	MergedAt      time.Time
}

type Repository struct {
	Owner         string
	Name          string
	DefaultBranch string
	HTMLURL       string
	CloneURL      string
	SSHURL        string
}

// Ref is a tag as listed by the platform. For annotated tags Hash is the
// OID of the tag object, not of the commit it points to.
type Ref struct {
	Name      string
	Hash      string
	Annotated bool
}

type ExistingRelease struct {
	TagName   string
	CreatedAt time.Time
	HTMLURL   string
}

type NewRelease struct {
	TagName string
	Target  string
	Name    string
	Body    string
	Draft   bool
	Latest  bool
}
