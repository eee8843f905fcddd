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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"k8c.io/gtag/pkg/types"

	"github.com/sirupsen/logrus"
)

var claimedCommitRegex = regexp.MustCompile(`- Commit: ([a-f0-9]{40})`)

func claimedCommit(body string) string {
	match := claimedCommitRegex.FindStringSubmatch(body)
	if match == nil {
		return ""
	}

	return match[1]
}

// RegistryBranch returns the head branch name the registration bot uses
// for a version of a package.
func RegistryBranch(name string, uuid string, version string, repoURL string) string {
	sum := sha1.Sum([]byte(repoURL))
	short := uuid
	if len(short) > 8 {
		short = short[:8]
	}

	return fmt.Sprintf("registrator-%s-%s-v%s-%s", strings.ToLower(name), short, version, hex.EncodeToString(sum[:])[:10])
}

func (r *Resolver) loadPullRequests(ctx context.Context) error {
	if r.prs != nil {
		return nil
	}

	log := r.log.WithField("registry", r.cfg.RegistryOwner+"/"+r.cfg.RegistryName)
	log.Info("Loading registry pull requests…")

	prs := map[string]types.PullRequest{}
	inspected := 0
	page := 1

	for page != 0 && inspected < r.cfg.MaxRegistryPRs {
		items, next, err := r.platform.ClosedPullRequests(ctx, r.cfg.RegistryOwner, r.cfg.RegistryName, page)
		if err != nil {
			return fmt.Errorf("failed to list registry pull requests: %w", err)
		}

		for _, pr := range items {
			if inspected >= r.cfg.MaxRegistryPRs {
				break
			}
			inspected++

			if !pr.Merged() {
				continue
			}

			// newest first, keep the first one for a branch
			if _, exists := prs[pr.HeadRef]; !exists {
				prs[pr.HeadRef] = pr
			}
		}

		page = next
	}

	log.WithFields(logrus.Fields{"inspected": inspected, "merged": len(prs)}).Debug("Loaded registry pull requests.")
	r.prs = prs

	return nil
}

// RegistryPR returns the merged registration pull request for the given
// version, or nil if none can be found.
func (r *Resolver) RegistryPR(ctx context.Context, version string) (*types.PullRequest, error) {
	branch := RegistryBranch(r.cfg.PackageName, r.cfg.PackageUUID, version, r.cfg.PackageRepoURL)
	log := r.log.WithField("branch", branch)

	if err := r.loadPullRequests(ctx); err != nil {
		return nil, err
	}

	if pr, ok := r.prs[branch]; ok {
		log.Debug("Found registry pull request in cache.")
		return &pr, nil
	}

	log.Debug("Registry pull request not cached, querying it directly.")

	prs, err := r.platform.ClosedPullRequestsByHead(ctx, r.cfg.RegistryOwner, r.cfg.RegistryName, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to find registry pull request: %w", err)
	}

	for _, pr := range prs {
		if pr.Merged() {
			r.prs[branch] = pr
			return &pr, nil
		}
	}

	return nil, nil
}
