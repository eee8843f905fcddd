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

package action

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"k8c.io/gtag/pkg/git"

	"github.com/go-openapi/inflect"
)

const ReportTitle = "gtag: Manual intervention needed"

const workflowNote = `The tag for this version could not be pushed because the commit modifies files in .github/workflows,
which the token of this run is not allowed to do. Push the tag manually, or configure an SSH deploy key
with write access (GTAG_SSH_KEY) so that future tags are pushed over SSH.`

func reportBody(failed []Result, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The following %s could not be released automatically (run at %s).\n", pluralize("version", len(failed)), now.UTC().Format(time.RFC3339))
	b.WriteString("Tags that were pushed and releases that were created in the same run are not affected.\n")

	for _, result := range failed {
		version := result.Version
		commit := version.CommitSHA
		if commit == "" {
			commit = "<commit>"
		}

		fmt.Fprintf(&b, "\n## %s\n\n", version.TagName)
		fmt.Fprintf(&b, "- Version: `%s`\n", version.Version)
		fmt.Fprintf(&b, "- Commit: `%s`\n", commit)
		reason := result.Err.Error()
		if reason != "" {
			reason = inflect.Capitalize(reason)
		}
		fmt.Fprintf(&b, "- Reason: %s\n", reason)

		var workflowErr *git.WorkflowPushError
		if errors.As(result.Err, &workflowErr) {
			fmt.Fprintf(&b, "\n%s\n", workflowNote)
		}

		b.WriteString("\nTo create the tag manually, run:\n\n```sh\n")
		fmt.Fprintf(&b, "git tag -a %s %s -m '%s'\n", version.TagName, commit, version.TagName)
		fmt.Fprintf(&b, "git push origin %s\n", version.TagName)
		b.WriteString("```\n")
	}

	b.WriteString("\nVersions with an existing tag are skipped by later runs, so create their releases manually if needed.\n")

	return b.String()
}
