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
	"strings"
	"unicode"

	"k8s.io/apimachinery/pkg/util/sets"
)

// normalizeLabel makes "Won't Fix", "wont-fix" and "wontfix" equal.
func normalizeLabel(label string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(label) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func newLabelSet(labels []string) sets.Set[string] {
	result := sets.New[string]()
	for _, label := range labels {
		if normalized := normalizeLabel(label); normalized != "" {
			result.Insert(normalized)
		}
	}

	return result
}

func isIgnored(ignore sets.Set[string], labels []string) bool {
	for _, label := range labels {
		if ignore.Has(normalizeLabel(label)) {
			return true
		}
	}

	return false
}
