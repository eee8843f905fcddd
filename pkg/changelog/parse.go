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
	"regexp"
	"strings"
)

var (
	// the registration bot wraps notes in a five-backtick fence so that
	// they can contain regular code blocks
	fencedNotesRegex = regexp.MustCompile("(?s)<!-- BEGIN RELEASE NOTES -->\\s*`````[^\\n]*\\n(.*?)`````\\s*<!-- END RELEASE NOTES -->")
	legacyNotesRegex = regexp.MustCompile(`(?s)<!-- BEGIN RELEASE NOTES -->(.*?)<!-- END RELEASE NOTES -->`)
	quotePrefixRegex = regexp.MustCompile(`^> ?`)
)

// extractCustomNotes returns the release notes the package author wrote
// into the registration request, or an empty string.
func extractCustomNotes(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	if match := fencedNotesRegex.FindStringSubmatch(body); match != nil {
		return strings.TrimSpace(match[1])
	}

	match := legacyNotesRegex.FindStringSubmatch(body)
	if match == nil {
		return ""
	}

	lines := []string{}
	for _, line := range strings.Split(match[1], "\n") {
		if !strings.HasPrefix(line, ">") {
			continue
		}

		lines = append(lines, quotePrefixRegex.ReplaceAllLiteralString(line, ""))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
