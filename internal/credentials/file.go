// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"crosspost/internal/models"
)

// path returns the credential file for a destination.
func (s *Store) path(dest models.Destination) string {
	return filepath.Join(s.dir, string(dest)+".json")
}

// readFile loads and validates the persisted credential for dest.
func (s *Store) readFile(dest models.Destination) (*models.Credential, error) {
	data, err := os.ReadFile(s.path(dest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dest, ErrMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("credentials read %s: %w", dest, err)
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("credentials decode %s: %w", dest, err)
	}
	if cred.Destination == "" {
		cred.Destination = dest
	}
	if cred.Destination != dest {
		return nil, fmt.Errorf("credentials %s: file holds credential for %q", dest, cred.Destination)
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &cred, nil
}

// writeFile persists cred atomically: the JSON goes to a temp file in the
// same directory which is then renamed over the target, so readers see
// either the old or the new file and never a partial write.
// Callers must hold the destination lock.
func (s *Store) writeFile(cred *models.Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials encode %s: %w", cred.Destination, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(cred.Destination)+".*.tmp")
	if err != nil {
		return fmt.Errorf("credentials temp %s: %w", cred.Destination, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credentials write %s: %w", cred.Destination, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credentials sync %s: %w", cred.Destination, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credentials close %s: %w", cred.Destination, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("credentials chmod %s: %w", cred.Destination, err)
	}
	if err := os.Rename(tmpName, s.path(cred.Destination)); err != nil {
		return fmt.Errorf("credentials rename %s: %w", cred.Destination, err)
	}
	return nil
}
