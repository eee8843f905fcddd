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

package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sirupsen/logrus"
)

const remoteName = "origin"

// WorkflowPushError is returned when the remote refuses a tag because the
// tagged commit changes workflow files and the credentials are not allowed
// to do that. Retrying does not help.
type WorkflowPushError struct {
	Tag string
	Err error
}

func (e *WorkflowPushError) Error() string {
	return fmt.Sprintf("pushing tag %s was rejected because the commit modifies workflow files: %v", e.Tag, e.Err)
}

func (e *WorkflowPushError) Unwrap() error {
	return e.Err
}

func isWorkflowRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "workflow") && (strings.Contains(msg, "refusing") || strings.Contains(msg, "permission"))
}

// RemoteTagExists asks the remote whether the tag exists, independent of
// any locally known refs.
func (g *Git) RemoteTagExists(ctx context.Context, tag string) (bool, error) {
	remote, err := g.repo.Remote(remoteName)
	if err != nil {
		return false, fmt.Errorf("failed to get remote: %w", err)
	}

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: g.auth})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to list remote refs: %w", err)
	}

	name := plumbing.NewTagReferenceName(tag)
	for _, ref := range refs {
		if ref.Name() == name {
			return true, nil
		}
	}

	return false, nil
}

// CreateTag creates an annotated tag locally, signed if a signing key has
// been configured.
func (g *Git) CreateTag(tag string, commit string, message string) error {
	g.log.WithFields(logrus.Fields{"tag": tag, "commit": commit, "signed": g.signKey != nil}).Debug("Creating tag.")

	_, err := g.repo.CreateTag(tag, plumbing.NewHash(commit), &gogit.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  g.taggerName,
			Email: g.taggerEmail,
			When:  time.Now(),
		},
		Message: message,
		SignKey: g.signKey,
	})
	if err != nil && !errors.Is(err, gogit.ErrTagExists) {
		return fmt.Errorf("failed to create tag %s: %w", tag, err)
	}

	return nil
}

// PushTag pushes a single tag to the remote.
func (g *Git) PushTag(ctx context.Context, tag string) error {
	ref := plumbing.NewTagReferenceName(tag)

	err := g.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remoteName,
		RemoteURL:  g.pushURL,
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       g.pushAuth,
	})

	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case isWorkflowRejection(err):
		return &WorkflowPushError{Tag: tag, Err: err}
	default:
		return fmt.Errorf("failed to push tag %s: %w", tag, err)
	}
}

// Tag returns the commit a local tag points to.
func (g *Git) Tag(tag string) (string, error) {
	ref, err := g.repo.Tag(tag)
	if err != nil {
		return "", err
	}

	obj, err := g.repo.TagObject(ref.Hash())
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// lightweight tag
		return ref.Hash().String(), nil
	case err != nil:
		return "", err
	}

	return obj.Target.String(), nil
}
