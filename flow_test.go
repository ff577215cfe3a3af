package tzbaker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textRender(v Value) (string, error) {
	return renderValue(nil, v)
}

func threeEntries() []Entry {
	return []Entry{
		{"First", StringValue("one")},
		{"Second", StringValue("two")},
		{"Third", StringValue("three")},
	}
}

func noop() ([]byte, error) { return nil, nil }

func TestFlow_AdvanceTable(t *testing.T) {
	f := NewFlow(textRender, nil)
	require.NoError(t, f.Prompt(threeEntries(), noop, noop))

	f.advance(EventLeft)
	assert.Equal(t, ModeDynamic, f.Mode())
	assert.Equal(t, 0, f.Index())

	f.advance(EventRight)
	assert.Equal(t, 1, f.Index())

	f.advance(EventLeft)
	assert.Equal(t, 0, f.Index())

	f.advance(EventLeft)
	assert.Equal(t, ModeStatic, f.Mode())

	f.advance(EventRight)
	assert.Equal(t, ModeDynamic, f.Mode())
	assert.Equal(t, 2, f.Index())

	f.advance(EventRight)
	assert.Equal(t, ModeStatic, f.Mode())
}

func TestFlow_NavigateForward(t *testing.T) {
	f := NewFlow(textRender, nil)
	require.NoError(t, f.Prompt(threeEntries(), noop, noop))

	title, value := f.Screen()
	assert.Equal(t, "Review", title)
	assert.Equal(t, "Request", value)

	var visited []int
	for i := 0; i < 3; i++ {
		f.PressRight()
		require.Equal(t, ModeDynamic, f.Mode())
		visited = append(visited, f.Index())
	}
	assert.Equal(t, []int{0, 1, 2}, visited)

	title, value = f.Screen()
	assert.Equal(t, "Third", title)
	assert.Equal(t, "three", value)

	f.PressRight()
	assert.Equal(t, ModeStatic, f.Mode())
	title, _ = f.Screen()
	assert.Equal(t, "Reject", title)
}

func TestFlow_NavigateBackward(t *testing.T) {
	f := NewFlow(textRender, nil)
	require.NoError(t, f.Prompt(threeEntries(), noop, noop))

	for i := 0; i < 4; i++ {
		f.PressRight()
	}
	require.Equal(t, ModeStatic, f.Mode())

	// entering from the right starts at the last entry
	f.PressLeft()
	assert.Equal(t, ModeDynamic, f.Mode())
	assert.Equal(t, 2, f.Index())

	f.PressLeft()
	assert.Equal(t, 1, f.Index())
	f.PressLeft()
	assert.Equal(t, 0, f.Index())

	f.PressLeft()
	assert.Equal(t, ModeStatic, f.Mode())
	title, _ := f.Screen()
	assert.Equal(t, "Review", title)
}

func TestFlow_EmptyStackSkipsDynamic(t *testing.T) {
	f := NewFlow(textRender, nil)
	require.NoError(t, f.Prompt(nil, noop, noop))

	f.PressRight()
	assert.Equal(t, ModeStatic, f.Mode())
	title, _ := f.Screen()
	assert.Equal(t, "Reject", title)

	f.PressRight()
	title, _ = f.Screen()
	assert.Equal(t, "Accept", title)

	// the confirm flow does not wrap around
	f.PressRight()
	title, _ = f.Screen()
	assert.Equal(t, "Accept", title)
}

func TestFlow_SelectResolvesOnce(t *testing.T) {
	f := NewFlow(textRender, nil)

	var accepted, rejected int
	require.NoError(t, f.Prompt(threeEntries(),
		func() ([]byte, error) { accepted++; return []byte{1}, nil },
		func() ([]byte, error) { rejected++; return nil, ErrRejected }))

	assert.Nil(t, f.Select(), "Review is not a decision")

	for i := 0; i < 5; i++ {
		f.PressRight()
	}
	title, _ := f.Screen()
	require.Equal(t, "Accept", title)

	resolution := f.Select()
	require.NotNil(t, resolution)
	assert.NoError(t, resolution.Err)
	assert.Equal(t, []byte{1}, resolution.Data)
	assert.Equal(t, 1, accepted)
	assert.Zero(t, rejected)
	assert.False(t, f.Pending())

	// back on the idle screens, selecting does nothing
	assert.Nil(t, f.Select())
	_, err := f.Accept()
	assert.Error(t, err)
	assert.Equal(t, 1, accepted)
}

func TestFlow_ContinuationMayPromptAgain(t *testing.T) {
	f := NewFlow(textRender, nil)

	var calls []string
	second := func(name string) Continuation {
		return func() ([]byte, error) {
			calls = append(calls, name)
			return nil, nil
		}
	}

	first := func() ([]byte, error) {
		calls = append(calls, "first accept")
		assert.False(t, f.Pending(), "slot must be empty when the continuation runs")
		return nil, f.Prompt(threeEntries(), second("second accept"), second("second reject"))
	}

	require.NoError(t, f.Prompt(threeEntries(), first, second("first reject")))

	_, err := f.Accept()
	require.NoError(t, err)
	assert.True(t, f.Pending())

	_, err = f.Reject()
	require.NoError(t, err)
	assert.False(t, f.Pending())

	assert.Equal(t, []string{"first accept", "second reject"}, calls)
}

func TestFlow_BusyWhilePending(t *testing.T) {
	f := NewFlow(textRender, nil)
	require.NoError(t, f.Prompt(threeEntries(), noop, noop))

	assert.ErrorIs(t, f.Prompt(threeEntries(), noop, noop), ErrBusy)
	assert.ErrorIs(t, f.Begin(), ErrBusy)
}

func TestFlow_Overflow(t *testing.T) {
	f := NewFlow(textRender, nil)

	entries := make([]Entry, MaxScreenStackSize+1)
	for i := range entries {
		entries[i] = Entry{Title: fmt.Sprintf("Entry %d", i), Value: LevelValue(i)}
	}

	err := f.Prompt(entries, noop, noop)
	assert.ErrorIs(t, err, ErrDisplayOverflow)
	assert.Equal(t, SwDisplayOverflow, StatusFor(err))
	assert.False(t, f.Pending())

	require.NoError(t, f.Prompt(entries[:MaxScreenStackSize], noop, noop))
	assert.Equal(t, MaxScreenStackSize, f.Stack().Len())
}

func TestFlow_RenderTruncates(t *testing.T) {
	f := NewFlow(textRender, nil)

	long := strings.Repeat("x", 300)
	require.NoError(t, f.Prompt([]Entry{{strings.Repeat("T", 50), StringValue(long)}}, noop, noop))

	f.PressRight()
	title, value := f.Screen()
	assert.Len(t, title, TitleSize)
	assert.Len(t, value, ValueSize)
}

func TestFlow_IdleLoops(t *testing.T) {
	idle := func(s *ScreenStack) error {
		return s.Push("High Watermark", WatermarkValue(HighWatermark{HighestLevel: 12, HighestRound: 3}))
	}

	quit := 0
	f := NewFlow(textRender, idle)
	f.OnQuit = func() { quit++ }

	title, value := f.Screen()
	assert.Equal(t, "Application", title)
	assert.Equal(t, "is ready", value)

	f.PressRight()
	title, value = f.Screen()
	assert.Equal(t, "High Watermark", title)
	assert.Equal(t, "12 (3)", value)

	f.PressRight()
	title, _ = f.Screen()
	assert.Equal(t, "Quit", title)

	f.PressRight()
	title, _ = f.Screen()
	assert.Equal(t, "Application", title)

	f.PressLeft()
	title, _ = f.Screen()
	assert.Equal(t, "Quit", title)

	assert.Nil(t, f.Select())
	assert.Equal(t, 1, quit)
}
