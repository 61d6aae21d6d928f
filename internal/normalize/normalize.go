// Package normalize resolves source machine spellings to canonical machine keys.
package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pinleague/pipeline/internal/model"
)

// Normalizer maps raw machine text to canonical keys. It is built once from an
// alias-table snapshot and never mutated afterwards, so any two runs over the
// same snapshot resolve identically.
type Normalizer struct {
	exact  map[string]string // trimmed alias → canonical key
	folded map[string]string // lower(trimmed alias) → canonical key
}

// New builds a Normalizer from a canonical-key → alias-list mapping.
// Every canonical key maps to itself; every alias is trimmed and case-folded.
func New(aliases map[string][]string) *Normalizer {
	n := &Normalizer{
		exact:  make(map[string]string),
		folded: make(map[string]string),
	}
	for key, list := range aliases {
		n.add(key, key)
		for _, a := range list {
			n.add(a, key)
		}
	}
	return n
}

func (n *Normalizer) add(alias, key string) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return
	}
	n.exact[alias] = key
	n.folded[strings.ToLower(alias)] = key
}

// Resolve canonicalizes raw machine text. Lookup order: exact trimmed match,
// then case-insensitive match, then the trimmed input itself. The second return
// reports whether the text was found in the alias table; callers log a warning
// for unmapped text but still load it, since a legitimate new machine must not
// be dropped.
func (n *Normalizer) Resolve(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if key, ok := n.exact[trimmed]; ok {
		return key, true
	}
	if key, ok := n.folded[strings.ToLower(trimmed)]; ok {
		return key, true
	}
	return trimmed, false
}

// aliasEntry is the on-disk shape of one machine in the alias file.
type aliasEntry struct {
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Year         int      `json:"year,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}

// LoadFile reads a canonical-key → machine/alias mapping from a JSON file and
// returns the Normalizer built from it plus the reference rows for the loader.
// Machines and aliases come back sorted by key for deterministic load order.
func LoadFile(path string) (*Normalizer, []model.Machine, []model.MachineAlias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read alias file: %w", err)
	}
	var entries map[string]aliasEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}

	aliasMap := make(map[string][]string, len(entries))
	machines := make([]model.Machine, 0, len(entries))
	var aliases []model.MachineAlias
	for key, e := range entries {
		aliasMap[key] = e.Aliases
		name := e.Name
		if name == "" {
			name = key
		}
		machines = append(machines, model.Machine{
			Key:          key,
			DisplayName:  name,
			Manufacturer: e.Manufacturer,
			Year:         e.Year,
		})
		for _, a := range e.Aliases {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			aliases = append(aliases, model.MachineAlias{Alias: a, MachineKey: key})
		}
	}
	sort.Slice(machines, func(i, j int) bool { return machines[i].Key < machines[j].Key })
	sort.Slice(aliases, func(i, j int) bool {
		if aliases[i].MachineKey != aliases[j].MachineKey {
			return aliases[i].MachineKey < aliases[j].MachineKey
		}
		return aliases[i].Alias < aliases[j].Alias
	})
	return New(aliasMap), machines, aliases, nil
}
