// Package allowlist normalizes, stores and queries the IP allow-list.
//
// Entries are compared by exact string match. There is no CIDR matching
// and no IPv6 canonicalization.
package allowlist

import (
	"fmt"
	"strings"

	"iplogin/options"
)

// Parse splits raw textarea content on newlines, trims every line and drops
// empty ones. Order and duplicates are preserved.
func Parse(raw string) []string {
	ips := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ips = append(ips, line)
	}
	return ips
}

func Contains(list []string, ip string) bool {
	for _, entry := range list {
		if entry == ip {
			return true
		}
	}
	return false
}

// Append returns list with ip added at the end unless it is already present.
// The input slice is never modified.
func Append(list []string, ip string) []string {
	if Contains(list, ip) {
		return list
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, ip)
}

func Serialize(list []string) string {
	return strings.Join(list, "\n")
}

// Engine reads and writes the allow-list through a Store.
type Engine struct {
	store options.Store
}

func NewEngine(store options.Store) *Engine {
	return &Engine{store: store}
}

func (e *Engine) Load() ([]string, error) {
	raw, err := e.store.Get(options.AllowedIPs, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list: %w", err)
	}
	return Parse(raw), nil
}

func (e *Engine) Save(list []string) error {
	if err := e.store.Set(options.AllowedIPs, Serialize(list)); err != nil {
		return fmt.Errorf("failed to write allow-list: %w", err)
	}
	return nil
}

// Replace overwrites the stored list with the parsed raw text. No dedup is
// applied; the administrator owns the list's contents.
func (e *Engine) Replace(raw string) ([]string, error) {
	list := Parse(raw)
	return list, e.Save(list)
}

// Add appends ip to the stored list. It reports whether the list changed.
func (e *Engine) Add(ip string) (bool, error) {
	list, err := e.Load()
	if err != nil {
		return false, err
	}
	updated := Append(list, ip)
	if len(updated) == len(list) {
		return false, nil
	}
	return true, e.Save(updated)
}
