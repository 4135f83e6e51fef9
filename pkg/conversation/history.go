package conversation

// History is the ordered, append-only turn log of one session. It is owned
// by a single session goroutine and is not safe for concurrent use.
type History struct {
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn to the end of the log.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t.clone())
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of all turns.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	for i := range h.turns {
		out[i] = h.turns[i].clone()
	}
	return out
}

// Last returns the most recent turn.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1].clone(), true
}

// PendingRequest returns the trailing request that has not been answered yet.
func (h *History) PendingRequest() (*OperationCall, bool) {
	last, ok := h.Last()
	if !ok || !last.IsRequest() {
		return nil, false
	}
	return last.Call, true
}
