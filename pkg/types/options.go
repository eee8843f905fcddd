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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
)

const (
	DefaultRegistry       = "JuliaRegistries/General"
	DefaultMaxRegistryPRs = 300

	// NoTagPrefix disables the tag prefix even for packages in a subdirectory.
	NoTagPrefix = "NO_PREFIX"
)

var DefaultIgnoreLabels = []string{
	"changelog skip",
	"duplicate",
	"exclude from changelog",
	"invalid",
	"no changelog",
	"question",
	"skip changelog",
	"wont fix",
}

// Secrets are only ever read from the environment.
type Secrets struct {
	GithubToken     string `env:"GTAG_GITHUB_TOKEN"`
	SSHKey          string `env:"GTAG_SSH_KEY"`
	SSHPassword     string `env:"GTAG_SSH_PASSWORD"`
	GPGKey          string `env:"GTAG_GPG_KEY"`
	GPGPassword     string `env:"GTAG_GPG_PASSWORD"`
	RegistrySSHKey  string `env:"GTAG_REGISTRY_SSH_KEY"`
	RegistrySSHPass string `env:"GTAG_REGISTRY_SSH_PASSWORD"`
}

type Options struct {
	Secrets

	Repository        string
	Registry          string
	GithubURL         string
	GithubAPIURL      string
	Subdir            string
	TagPrefix         string
	Draft             bool
	VerifyTags        bool
	ChangelogTemplate string
	ChangelogIgnore   []string
	MaxRegistryPRs    int
	Workdir           string
	RegistryDir       string
	GitUserName       string
	GitUserEmail      string
	Verbose           bool

	// Template holds the contents of ChangelogTemplate after Parse().
	Template string
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Repository, "repository", "r", "", "Target repository as owner/name")
	fs.StringVar(&o.Registry, "registry", DefaultRegistry, "Registry repository as owner/name")
	fs.StringVar(&o.GithubURL, "github-url", "https://github.com", "Web URL of the GitHub instance")
	fs.StringVar(&o.GithubAPIURL, "github-api-url", "", "API URL of a GitHub Enterprise instance (defaults to api.github.com)")
	fs.StringVar(&o.Subdir, "subdir", "", "Subdirectory of the package inside the repository")
	fs.StringVar(&o.TagPrefix, "tag-prefix", "", fmt.Sprintf("Tag prefix (defaults to the package name if --subdir is set, %q disables it)", NoTagPrefix))
	fs.BoolVar(&o.Draft, "draft", false, "Create draft releases")
	fs.BoolVar(&o.VerifyTags, "verify-tags", false, "Fail versions whose existing tag points to a different commit")
	fs.StringVar(&o.ChangelogTemplate, "changelog-template", "", "Path to a custom changelog template")
	fs.StringSliceVar(&o.ChangelogIgnore, "changelog-ignore", DefaultIgnoreLabels, "Issue/PR labels that exclude an item from the changelog")
	fs.IntVar(&o.MaxRegistryPRs, "max-registry-prs", DefaultMaxRegistryPRs, "Maximum number of closed registry pull requests to inspect")
	fs.StringVar(&o.Workdir, "workdir", "", "Directory to clone repositories into (defaults to a temporary directory)")
	fs.StringVar(&o.RegistryDir, "registry-dir", "", "Path to an already cloned registry")
	fs.StringVar(&o.GitUserName, "git-user-name", "github-actions[bot]", "Name used for tagging")
	fs.StringVar(&o.GitUserEmail, "git-user-email", "41898282+github-actions[bot]@users.noreply.github.com", "Email used for tagging")
	fs.BoolVarP(&o.Verbose, "verbose", "V", false, "Enable more verbose logging")
}

func (o *Options) Parse(ctx context.Context) error {
	if err := envconfig.Process(ctx, &o.Secrets); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if o.GithubToken == "" {
		return errors.New("no $GTAG_GITHUB_TOKEN defined")
	}

	if _, _, err := SplitSlug(o.Repository); err != nil {
		return fmt.Errorf("invalid --repository: %w", err)
	}

	if _, _, err := SplitSlug(o.Registry); err != nil {
		return fmt.Errorf("invalid --registry: %w", err)
	}

	if o.MaxRegistryPRs <= 0 {
		return errors.New("--max-registry-prs must be positive")
	}

	o.Subdir = strings.Trim(o.Subdir, "/")

	if o.ChangelogTemplate != "" {
		content, err := os.ReadFile(o.ChangelogTemplate)
		if err != nil {
			return fmt.Errorf("failed to read changelog template: %w", err)
		}
		o.Template = string(content)
	}

	return nil
}

// EffectiveTagPrefix returns the prefix to put in front of "vX.Y.Z".
func (o *Options) EffectiveTagPrefix(packageName string) string {
	switch {
	case o.TagPrefix == NoTagPrefix:
		return ""
	case o.TagPrefix != "":
		return o.TagPrefix
	case o.Subdir != "":
		return packageName
	default:
		return ""
	}
}

func SplitSlug(slug string) (string, string, error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%q is not in owner/name form", slug)
	}

	return parts[0], parts[1], nil
}
