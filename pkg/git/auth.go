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
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// decodeKey accepts keys either verbatim (PEM/armored) or base64 encoded.
func decodeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if strings.Contains(key, "-----BEGIN") {
		return []byte(key + "\n"), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("key is neither PEM/armored nor valid base64: %w", err)
	}

	return decoded, nil
}

// SSHAuth builds SSH credentials from a private key.
func SSHAuth(key string, password string) (transport.AuthMethod, error) {
	pem, err := decodeKey(key)
	if err != nil {
		return nil, err
	}

	auth, err := gitssh.NewPublicKeys("git", pem, password)
	if err != nil {
		return nil, fmt.Errorf("invalid SSH key: %w", err)
	}

	return auth, nil
}

// ConfigureSSH makes all following pushes go to url using the given key.
func (g *Git) ConfigureSSH(url string, key string, password string) error {
	auth, err := SSHAuth(key, password)
	if err != nil {
		return err
	}

	g.pushURL = url
	g.pushAuth = auth
	g.log.Info("Configured SSH for pushing tags.")

	return nil
}
