package prompt

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m confirmModel, keys ...tea.KeyMsg) (confirmModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(confirmModel)
	}
	return m, cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestQuestion(t *testing.T) {
	assert.Equal(t, "You have 1 saved search from when you were offline. Run them now?", Question(1))
	assert.Equal(t, "You have 3 saved searches from when you were offline. Run them now?", Question(3))
}

func TestConfirmModelYes(t *testing.T) {
	m, cmd := press(t, newConfirmModel("run?"), runeKey('y'))
	assert.True(t, m.done)
	assert.True(t, m.answer)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestConfirmModelNo(t *testing.T) {
	for _, k := range []tea.KeyMsg{runeKey('n'), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		m, _ := press(t, newConfirmModel("run?"), k)
		assert.True(t, m.done, k.String())
		assert.False(t, m.answer, k.String())
	}
}

func TestConfirmModelEnterUsesHighlight(t *testing.T) {
	m, _ := press(t, newConfirmModel("run?"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.answer, "yes is highlighted first")

	m, _ = press(t, newConfirmModel("run?"), tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.done)
	assert.False(t, m.answer)
}

func TestConfirmModelIgnoresOtherInput(t *testing.T) {
	m, cmd := press(t, newConfirmModel("run?"), runeKey('x'))
	assert.False(t, m.done)
	assert.Nil(t, cmd)

	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Nil(t, cmd)
	assert.Equal(t, m, next)
	assert.Contains(t, m.View(), "run?")
}

func TestFixed(t *testing.T) {
	ok, err := Fixed(true).Confirm(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Fixed(false).Confirm(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fixed(true).Confirm(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectAssumeYes(t *testing.T) {
	assert.Equal(t, Fixed(true), Select(true))
}
