package tzbaker

// MaxScreenStackSize is the number of entries a screen stack can hold.
const MaxScreenStackSize = 7

// Entry is one screen of a dynamic display: a title and the value rendered
// under it.
type Entry struct {
	Title string
	Value Value
}

// ScreenStack holds the entries of the current flow in display order.
type ScreenStack struct {
	entries [MaxScreenStackSize]Entry
	size    int
}

// Push appends an entry. It fails with ErrDisplayOverflow once the stack is full.
func (s *ScreenStack) Push(title string, value Value) error {
	if s.size >= MaxScreenStackSize {
		return ErrDisplayOverflow
	}
	s.entries[s.size] = Entry{Title: title, Value: value}
	s.size++
	return nil
}

// At returns the entry at index i.
func (s *ScreenStack) At(i int) (Entry, bool) {
	if i < 0 || i >= s.size {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries.
func (s *ScreenStack) Len() int {
	return s.size
}

// IsEmpty returns true if the stack holds no entries.
func (s *ScreenStack) IsEmpty() bool {
	return s.size == 0
}

// Clear drops every entry.
func (s *ScreenStack) Clear() {
	s.entries = [MaxScreenStackSize]Entry{}
	s.size = 0
}
