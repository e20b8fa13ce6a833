package plex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// linkState is what the link flow persists between runs.
type linkState struct {
	ClientIdentifier   string `json:"client_identifier"`
	AuthorizationToken string `json:"authorization_token"`
	ResolvedURL        string `json:"resolved_url,omitempty"`
}

// TokenStore abstracts persistence for the link state.
type TokenStore interface {
	Load() (linkState, error)
	Save(linkState) error
}

// FileTokenStore writes link state to a JSON file on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a FileTokenStore rooted at the provided path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the state file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads link state from disk. A missing file resolves to an empty state.
func (s *FileTokenStore) Load() (linkState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return linkState{}, nil
		}
		return linkState{}, fmt.Errorf("read plex link state: %w", err)
	}

	var state linkState
	if err := json.Unmarshal(data, &state); err != nil {
		return linkState{}, fmt.Errorf("decode plex link state: %w", err)
	}
	return state, nil
}

// Save persists link state to disk readable only by the owner.
func (s *FileTokenStore) Save(state linkState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure link state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plex link state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write plex link state: %w", err)
	}
	return nil
}
