// Package session holds the mutable state owned by one generation session.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pagegen/pkg/codemodel"
	"pagegen/pkg/conversation"
	"pagegen/pkg/pages"
)

// ErrInconsistentState signals that counters and pages disagree in a way no
// transition can repair.
var ErrInconsistentState = errors.New("inconsistent session state")

// PageNotFoundError reports an active path with no matching page or reference.
type PageNotFoundError struct {
	Path string
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page not found for active path %q", e.Path)
}

// Is lets errors.Is(err, pages.ErrPageNotFound) match.
func (e *PageNotFoundError) Is(target error) bool {
	return target == pages.ErrPageNotFound
}

// PageInput is one page supplied at session start.
type PageInput struct {
	Name      string
	Reference pages.Image
}

// State is the complete mutable state of one session. It is owned by the
// session goroutine and must not be shared.
//
//nolint:govet // fieldalignment: logical grouping preferred
type State struct {
	ID                  string
	Conversation        *conversation.History
	Pages               *pages.Structure
	ActivePagePath      string
	Code                *codemodel.Model
	SequentialOpCount   int
	CyclesSinceProgress int
	CurrentPlan         string
	References          *pages.ReferenceSet
	Errors              *ErrorLog
}

// New seeds a session from its page inputs.
func New(inputs []PageInput) (*State, error) {
	names := make([]string, len(inputs))
	images := make([]pages.Image, len(inputs))
	for i := range inputs {
		names[i] = inputs[i].Name
		images[i] = inputs[i].Reference
	}
	structure, err := pages.NewStructure(names)
	if err != nil {
		return nil, fmt.Errorf("invalid pages: %w", err)
	}
	return &State{
		ID:             uuid.NewString(),
		Conversation:   conversation.NewHistory(),
		Pages:          structure,
		ActivePagePath: pages.RouteFor(0, names[0]),
		Code:           codemodel.Seed(),
		References:     pages.NewReferenceSet(names, images),
		Errors:         NewErrorLog(0),
	}, nil
}

// ActiveReference resolves the sketch for the active path.
func (s *State) ActiveReference() (pages.Image, error) {
	img, ok := s.References.Lookup(s.ActivePagePath)
	if !ok {
		return pages.Image{}, &PageNotFoundError{Path: s.ActivePagePath}
	}
	return img, nil
}

// Navigate makes path the active target, assigning it to the page whose route
// matches. A page name is accepted in place of its route.
func (s *State) Navigate(path string) {
	if _, ok := s.Pages.ByRoute(path); !ok {
		if page, named := s.Pages.Get(path); named {
			path = page.Route
		}
	}
	s.ActivePagePath = path
	s.Pages.AssignPath(path)
}

// Advance marks the active page complete and moves to the next incomplete
// page. It reports false when no page remains.
func (s *State) Advance() (bool, error) {
	if page, ok := s.Pages.ByRoute(s.ActivePagePath); ok {
		if err := s.Pages.MarkComplete(page.Name); err != nil {
			return false, err
		}
	}
	s.CyclesSinceProgress = 0

	next, ok := s.Pages.NextIncomplete()
	if !ok {
		if !s.Pages.AllComplete() {
			return false, fmt.Errorf("%w: incomplete pages remain but none can be selected", ErrInconsistentState)
		}
		return false, nil
	}
	s.Navigate(next.Route)
	return true, nil
}
