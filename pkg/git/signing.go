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
	"bytes"
	"errors"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// ConfigureSigning makes all following tags signed with the given OpenPGP
// private key.
func (g *Git) ConfigureSigning(key string, password string) error {
	armored, err := decodeKey(key)
	if err != nil {
		return err
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil {
		return fmt.Errorf("invalid GPG key: %w", err)
	}

	if len(entities) == 0 || entities[0].PrivateKey == nil {
		return errors.New("GPG key does not contain a private key")
	}

	entity := entities[0]
	if err := decryptEntity(entity, password); err != nil {
		return err
	}

	g.signKey = entity
	g.log.WithField("key", entity.PrimaryKey.KeyIdString()).Info("Configured GPG signing.")

	return nil
}

func decryptEntity(entity *openpgp.Entity, password string) error {
	if entity.PrivateKey.Encrypted {
		if password == "" {
			return errors.New("GPG key is encrypted but no password was given")
		}

		if err := entity.PrivateKey.Decrypt([]byte(password)); err != nil {
			return fmt.Errorf("failed to decrypt GPG key: %w", err)
		}
	}

	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
			if err := subkey.PrivateKey.Decrypt([]byte(password)); err != nil {
				return fmt.Errorf("failed to decrypt GPG subkey: %w", err)
			}
		}
	}

	return nil
}
