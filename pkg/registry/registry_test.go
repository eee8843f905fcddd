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

package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
)

type mapSource map[string]string

func (s mapSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := s[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return []byte(content), nil
}

const exampleUUID = "7876af07-990d-54b4-ab0e-23690620f79a"

var exampleRegistry = mapSource{
	"Registry.toml": `
name = "General"

[packages]
7876af07-990d-54b4-ab0e-23690620f79a = { name = "Example", path = "E/Example" }
`,
	"E/Example/Versions.toml": `
["0.5.3"]
git-tree-sha1 = "46E44E869B4D90B96BD8ED1FDCF32244FDDFA6D6"

["0.5.4"]
git-tree-sha1 = "8eb7b4d4ca487caade9ba3e85932e28ce6d6e1f8"
yanked = true
`,
	"E/Example/Package.toml": `
name = "Example"
uuid = "7876af07-990d-54b4-ab0e-23690620f79a"
repo = "https://github.com/JuliaLang/Example.jl.git"
`,
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg := New(logrus.New(), exampleRegistry)

	path, err := reg.PackagePath(ctx, exampleUUID)
	if err != nil {
		t.Fatalf("Failed to find package: %v", err)
	}

	if path != "E/Example" {
		t.Fatalf("Expected path E/Example, got %q.", path)
	}

	versions, err := reg.Versions(ctx, path)
	if err != nil {
		t.Fatalf("Failed to read versions: %v", err)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version.LessThan(versions[j].Version)
	})

	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d.", len(versions))
	}

	if versions[0].Version.String() != "0.5.3" || versions[0].TreeHash != "46e44e869b4d90b96bd8ed1fdcf32244fddfa6d6" {
		t.Errorf("Unexpected first version %v / %s.", versions[0].Version, versions[0].TreeHash)
	}

	repo, err := reg.RepositoryURL(ctx, path)
	if err != nil {
		t.Fatalf("Failed to read package: %v", err)
	}

	if repo != "https://github.com/JuliaLang/Example.jl.git" {
		t.Errorf("Unexpected repository URL %q.", repo)
	}
}

func TestRegistryNotRegistered(t *testing.T) {
	reg := New(logrus.New(), exampleRegistry)

	_, err := reg.PackagePath(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Expected ErrNotRegistered, got %v.", err)
	}
}

func TestRegistryInvalidVersions(t *testing.T) {
	testcases := []struct {
		name     string
		versions string
	}{
		{
			name:     "not a version",
			versions: "[\"latest\"]\ngit-tree-sha1 = \"abc\"\n",
		},
		{
			name:     "missing tree hash",
			versions: "[\"1.0.0\"]\nyanked = false\n",
		},
		{
			name:     "broken toml",
			versions: "[\"1.0.0\"\n",
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			reg := New(logrus.New(), mapSource{"X/Versions.toml": testcase.versions})

			_, err := reg.Versions(context.Background(), "X")
			if !errors.Is(err, ErrInvalidMetadata) {
				t.Fatalf("Expected ErrInvalidMetadata, got %v.", err)
			}
		})
	}
}

func TestReadProject(t *testing.T) {
	testcases := []struct {
		name     string
		source   mapSource
		dir      string
		expected *Project
		invalid  bool
	}{
		{
			name: "project file",
			source: mapSource{
				"Project.toml": "name = \"Example\"\nuuid = \"" + exampleUUID + "\"\n",
			},
			expected: &Project{Name: "Example", UUID: exampleUUID},
		},
		{
			name: "legacy project file in subdirectory",
			source: mapSource{
				"lib/Sub/JuliaProject.toml": "name = \"Sub\"\nuuid = \"" + exampleUUID + "\"\n",
			},
			dir:      "lib/Sub",
			expected: &Project{Name: "Sub", UUID: exampleUUID},
		},
		{
			name: "missing uuid",
			source: mapSource{
				"Project.toml": "name = \"Example\"\n",
			},
			invalid: true,
		},
		{
			name:    "no project file",
			source:  mapSource{},
			invalid: true,
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			project, err := ReadProject(context.Background(), testcase.source, testcase.dir)
			if testcase.invalid {
				if !errors.Is(err, ErrInvalidMetadata) {
					t.Fatalf("Expected ErrInvalidMetadata, got %v.", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Failed to read project: %v", err)
			}

			if *project != *testcase.expected {
				t.Fatalf("Expected %+v, got %+v.", testcase.expected, project)
			}
		})
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "E", "Example"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "E", "Example", "Package.toml"), []byte("repo = \"x\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	source := &DirSource{Dir: dir}

	if _, err := source.ReadFile(context.Background(), "E/Example/Package.toml"); err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	if _, err := source.ReadFile(context.Background(), "E/Example/Versions.toml"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Expected ErrFileNotFound, got %v.", err)
	}
}
