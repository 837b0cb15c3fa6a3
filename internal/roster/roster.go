// Package roster loads the immutable list of legislators to scrape.
//
// The roster file is the single source of truth for a run's work list: every
// worker loads the same file and derives its own assignment from it, so the
// file must not change while a run is active.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Member is one addressable scrape target. Immutable once loaded.
type Member struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	State   string `json:"state,omitempty"`
	Chamber string `json:"chamber,omitempty"`
	Party   string `json:"party,omitempty"`
}

// Load reads and validates a roster file. Order is preserved: the position of
// each member in the returned slice is what partitioning is computed from.
func Load(path string) ([]Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	members, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return members, nil
}

// Parse decodes roster JSON and validates it.
func Parse(data []byte) ([]Member, error) {
	var members []Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decode roster JSON: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}
	seen := make(map[string]struct{}, len(members))
	for i, m := range members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("roster entry %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate roster id %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(m.URL) == "" {
			return nil, fmt.Errorf("roster entry %q has no url", id)
		}
	}
	return members, nil
}
