/*
Copyright 2017 The Kubernetes Authors.

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

package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"k8c.io/gtag/pkg/changelog"
)

type markdown struct {
	repositoryURL string
}

// NewMarkdownRenderer returns a renderer for Go text templates. The
// repository URL is used by the "issuelink" template function.
func NewMarkdownRenderer(repositoryURL string) changelog.Renderer {
	return &markdown{
		repositoryURL: repositoryURL,
	}
}

// DefaultTemplate is used when no custom template is configured. For
// backports the generated lists are wrapped in an HTML comment, because
// the close times of issues say little about what went into an older
// release line.
var DefaultTemplate = strings.TrimSpace(`
## {{ .Package }} {{ .Version }}

{{ if .PreviousRelease -}}
[Diff since {{ .PreviousRelease }}]({{ .CompareURL }})
{{- end }}

{{ if .CustomNotes -}}
{{ .CustomNotes }}
{{- end }}

{{ if .Backport -}}
This release has been identified as a backport.
Automated changelogs for backports tend to be wildly incorrect.
Therefore, the list of issues and pull requests is hidden.
<!--
{{- end }}
{{ if .Pulls -}}
**Merged pull requests:**
{{ range .Pulls -}}
- {{ .Title }} ([#{{ .Number }}]({{ issuelink .Number }})){{ if .Author }} (@{{ .Author }}){{ end }}
{{ end -}}
{{ end }}
{{ if .Issues -}}
**Closed issues:**
{{ range .Issues -}}
- {{ .Title }} ([#{{ .Number }}]({{ issuelink .Number }}))
{{ end -}}
{{ end }}
{{ if .Backport -}}
-->
{{- end }}
`)

var blankLinesRegex = regexp.MustCompile(`\n{3,}`)

func (m *markdown) Render(tpl string, data *changelog.Data) (string, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}

	t := template.New("changelog").Funcs(template.FuncMap{
		"issuelink": func(number int) string {
			return fmt.Sprintf("%s/issues/%d", m.repositoryURL, number)
		},
	})

	var err error
	t, err = t.Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}

	text := blankLinesRegex.ReplaceAllString(b.String(), "\n\n")

	return strings.TrimSpace(text) + "\n", nil
}
