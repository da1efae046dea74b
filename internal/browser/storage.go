// File: internal/browser/storage.go
package browser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

// SaveStorageState writes a snapshot to disk so later runs can reuse a login
// without re-submitting credentials.
func SaveStorageState(path string, state *schemas.StorageState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage state directory: %w", err)
	}
	// Cookies are live credentials, keep the file owner-only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write storage state: %w", err)
	}
	return nil
}

// LoadStorageState reads a previously saved snapshot.
func LoadStorageState(path string) (*schemas.StorageState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage state: %w", err)
	}
	var state schemas.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse storage state %s: %w", path, err)
	}
	return &state, nil
}
