// Package navigation models the visible location of the GUI page.
//
// The location carries two pieces of project state: a one-time `project`
// query parameter that is consumed as soon as it is read, and a fragment
// (#name) that reflects the project currently shown.
package navigation

import (
	"fmt"
	"net/url"
	"sync"
)

// QueryProject is the one-time query parameter naming a project
const QueryProject = "project"

// Location is the mutable, externally visible navigation state
type Location struct {
	mu  sync.RWMutex
	url *url.URL
}

// New parses raw as the initial location
func New(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	return &Location{url: u}, nil
}

// Replace starts a new navigation lifetime at raw
func (l *Location) Replace(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid location %q: %w", raw, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.url = u
	return nil
}

// ConsumeQuery reads key from the query string and removes it from the
// visible location in the same step.
func (l *Location) ConsumeQuery(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.url.Query()
	if !q.Has(key) {
		return "", false
	}
	value := q.Get(key)
	q.Del(key)
	l.url.RawQuery = q.Encode()
	return value, true
}

// SetFragment reflects name as the location fragment
func (l *Location) SetFragment(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.url.Fragment = name
	l.url.RawFragment = ""
}

// Clear blanks the query string and fragment
func (l *Location) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.url.RawQuery = ""
	l.url.Fragment = ""
	l.url.RawFragment = ""
}

// Fragment returns the current fragment without '#'
func (l *Location) Fragment() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.url.Fragment
}

// Query returns the current value of key without consuming it
func (l *Location) Query(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q := l.url.Query()
	return q.Get(key), q.Has(key)
}

func (l *Location) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.url.String()
}
