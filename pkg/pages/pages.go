// Package pages tracks the pages a session must generate and their reference sketches.
package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrPageNotFound is returned when a page name or path has no matching page.
var ErrPageNotFound = errors.New("page not found")

// Page is one unit of generation work.
type Page struct {
	Name      string `json:"name"`
	Route     string `json:"-"`
	Path      string `json:"path,omitempty"`
	Completed bool   `json:"complete"`
}

// Structure is the ordered set of pages, unique by name.
type Structure struct {
	pages []Page
}

// Normalize replaces spaces in a page name with dashes.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
}

// RouteFor returns the canonical route of the page at position i.
func RouteFor(i int, name string) string {
	if i == 0 {
		return "/"
	}
	return "/" + Normalize(name)
}

// NewStructure builds a structure from page names in order. The first page
// becomes the active target and receives its path.
func NewStructure(names []string) (*Structure, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one page is required")
	}
	s := &Structure{pages: make([]Page, 0, len(names))}
	seen := make(map[string]struct{}, len(names))
	for i, raw := range names {
		name := Normalize(raw)
		if name == "" {
			return nil, fmt.Errorf("page %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate page name %q", name)
		}
		seen[name] = struct{}{}
		s.pages = append(s.pages, Page{Name: name, Route: RouteFor(i, name)})
	}
	s.pages[0].Path = s.pages[0].Route
	return s, nil
}

func (s *Structure) index(name string) int {
	name = Normalize(name)
	return slices.IndexFunc(s.pages, func(p Page) bool { return p.Name == name })
}

// Pages returns a copy of all pages.
func (s *Structure) Pages() []Page {
	return slices.Clone(s.pages)
}

// Get returns the page named name.
func (s *Structure) Get(name string) (Page, bool) {
	if i := s.index(name); i >= 0 {
		return s.pages[i], true
	}
	return Page{}, false
}

// ByRoute returns the page whose route or assigned path equals path.
func (s *Structure) ByRoute(path string) (Page, bool) {
	for _, p := range s.pages {
		if p.Route == path || (p.Path != "" && p.Path == path) {
			return p, true
		}
	}
	return Page{}, false
}

// MarkComplete sets the completed flag of the named page.
func (s *Structure) MarkComplete(name string) error {
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, name)
	}
	s.pages[i].Completed = true
	return nil
}

// MarkIncomplete clears the completed flag and the path of the named page.
func (s *Structure) MarkIncomplete(name string) error {
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, name)
	}
	s.pages[i].Completed = false
	s.pages[i].Path = ""
	return nil
}

// AssignPath records path on the page whose route matches it. It reports
// whether any page matched.
func (s *Structure) AssignPath(path string) bool {
	for i := range s.pages {
		if s.pages[i].Route == path {
			s.pages[i].Path = path
			return true
		}
	}
	return false
}

// AllComplete reports whether every page is completed.
func (s *Structure) AllComplete() bool {
	for _, p := range s.pages {
		if !p.Completed {
			return false
		}
	}
	return true
}

// NextIncomplete returns the first page that is not completed.
func (s *Structure) NextIncomplete() (Page, bool) {
	for _, p := range s.pages {
		if !p.Completed {
			return p, true
		}
	}
	return Page{}, false
}

// Remaining counts incomplete pages.
func (s *Structure) Remaining() int {
	n := 0
	for _, p := range s.pages {
		if !p.Completed {
			n++
		}
	}
	return n
}

// JSON renders the structure the way it is shown to the reasoning roles.
func (s *Structure) JSON() string {
	data, err := json.Marshal(s.pages)
	if err != nil {
		return "[]"
	}
	return string(data)
}
