// Package store persists tournament state as one yaml snapshot. The
// engine hands over plain records and assumes atomic whole-snapshot
// replacement: a reader either sees the previous file or the new one,
// never a partial write.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbeckmann/matchplan/internal/availability"
)

// ErrNotFound reports a missing snapshot file.
var ErrNotFound = errors.New("snapshot not found")

// TeamRecord is a team as persisted.
type TeamRecord struct {
	Name         string                     `yaml:"name"`
	Members      []string                   `yaml:"members"`
	Availability *availability.Availability `yaml:"availability"`
}

// SoloRecord is an unpaired registrant as persisted.
type SoloRecord struct {
	Player       string                     `yaml:"player"`
	Availability *availability.Availability `yaml:"availability"`
}

// MatchRecord is a match as persisted. Date and Start are empty while
// the match is unscheduled.
type MatchRecord struct {
	ID     string `yaml:"id"`
	Round  int    `yaml:"round"`
	TeamA  string `yaml:"team_a"`
	TeamB  string `yaml:"team_b"`
	Status string `yaml:"status"`
	Date   string `yaml:"date,omitempty"`
	Start  string `yaml:"start,omitempty"`
	Winner string `yaml:"winner,omitempty"`
}

// VoteRecord is one vote log entry as persisted.
type VoteRecord struct {
	Participant string    `yaml:"participant"`
	Decision    string    `yaml:"decision"`
	At          time.Time `yaml:"at"`
}

// RequestRecord is a reschedule request as persisted.
type RequestRecord struct {
	ID           string       `yaml:"id"`
	MatchID      string       `yaml:"match_id"`
	Requester    string       `yaml:"requester"`
	Date         string       `yaml:"date"`
	Start        string       `yaml:"start"`
	Participants []string     `yaml:"participants"`
	Votes        []VoteRecord `yaml:"votes,omitempty"`
	CreatedAt    time.Time    `yaml:"created_at"`
	ExpiresAt    time.Time    `yaml:"expires_at"`
	State        string       `yaml:"state"`
}

// Snapshot is the whole persisted tournament state.
type Snapshot struct {
	SavedAt  time.Time       `yaml:"saved_at"`
	Start    string          `yaml:"start_date"`
	End      string          `yaml:"end_date"`
	Teams    []TeamRecord    `yaml:"teams"`
	Solo     []SoloRecord    `yaml:"solo,omitempty"`
	Matches  []MatchRecord   `yaml:"matches,omitempty"`
	Requests []RequestRecord `yaml:"requests,omitempty"`
}

// Store loads and saves whole snapshots.
type Store interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
}

// FileStore keeps the snapshot in one yaml file, replaced atomically on
// save via a temp file and rename.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and parses the snapshot file.
func (fs *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fs.path)
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot to a temp file in the target directory and
// renames it over the destination.
func (fs *FileStore) Save(snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
