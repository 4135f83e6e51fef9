package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/pages"
)

func inputs(names ...string) []PageInput {
	out := make([]PageInput, len(names))
	for i, n := range names {
		out[i] = PageInput{Name: n, Reference: pages.NewImage([]byte(n), "image/png")}
	}
	return out
}

func TestNewSeedsState(t *testing.T) {
	s, err := New(inputs("Home", "About"))
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "/", s.ActivePagePath)
	assert.Len(t, s.Code.Functions, 1)
	assert.Equal(t, 0, s.Conversation.Len())

	img, err := s.ActiveReference()
	require.NoError(t, err)
	assert.Equal(t, []byte("Home"), img.Data)
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestActiveReferenceMissing(t *testing.T) {
	s, err := New(inputs("Home"))
	require.NoError(t, err)

	s.Navigate("/ghost")
	_, err = s.ActiveReference()
	var pnf *PageNotFoundError
	require.True(t, errors.As(err, &pnf))
	assert.Equal(t, "/ghost", pnf.Path)
	assert.True(t, errors.Is(err, pages.ErrPageNotFound))
}

func TestAdvance(t *testing.T) {
	s, err := New(inputs("Home", "About"))
	require.NoError(t, err)
	s.CyclesSinceProgress = 7

	more, err := s.Advance()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, "/About", s.ActivePagePath)
	assert.Equal(t, 0, s.CyclesSinceProgress)
	home, _ := s.Pages.Get("Home")
	assert.True(t, home.Completed)

	more, err = s.Advance()
	require.NoError(t, err)
	assert.False(t, more)
	assert.True(t, s.Pages.AllComplete())
}

func TestNavigateByNameResolvesRoute(t *testing.T) {
	s, err := New(inputs("Home", "About"))
	require.NoError(t, err)
	require.NoError(t, s.Pages.MarkComplete("Home"))

	s.Navigate("About")
	assert.Equal(t, "/About", s.ActivePagePath)
	about, _ := s.Pages.Get("About")
	assert.Equal(t, "/About", about.Path)

	img, err := s.ActiveReference()
	require.NoError(t, err)
	assert.Equal(t, []byte("About"), img.Data)

	more, err := s.Advance()
	require.NoError(t, err)
	assert.False(t, more)
	about, _ = s.Pages.Get("About")
	assert.True(t, about.Completed)
	assert.True(t, s.Pages.AllComplete())
}

func TestErrorLog(t *testing.T) {
	l := NewErrorLog(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		l.Append(m)
	}
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, "c\nd", l.Last(2))
	assert.Equal(t, "b\nc\nd", l.Last(10))
	l.Clear()
	assert.Equal(t, "", l.Last(1))
}
