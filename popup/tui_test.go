package popup

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func sized(t *testing.T, c *Controller) *model {
	t.Helper()
	m := newModel(context.Background(), c)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_ExtractKeyRunsController(t *testing.T) {
	c := newTestController(&fakeMessenger{resp: transcriptResp("the transcript text")}, nil)
	m := sized(t, c)

	if v := m.View(); !strings.Contains(v, CopyLabel) || !strings.Contains(v, "Extract Transcript") {
		t.Fatalf("initial view:\n%s", v)
	}

	_, cmd := m.Update(runeKey('e'))
	if cmd == nil {
		t.Fatal("extract key returned no command")
	}
	msg := cmd()
	if _, ok := msg.(stateMsg); !ok {
		t.Fatalf("command returned %T", msg)
	}
	m.Update(msg)

	if !strings.Contains(m.View(), "the transcript text") {
		t.Errorf("view after extract:\n%s", m.View())
	}
}

func TestModel_CopyKeyIgnoredWhileDisabled(t *testing.T) {
	clip := &fakeClipboard{}
	m := sized(t, newTestController(&fakeMessenger{}, clip))
	if _, cmd := m.Update(runeKey('c')); cmd != nil {
		t.Error("copy key should do nothing while disabled")
	}
}

func TestModel_CopyKey(t *testing.T) {
	clip := &fakeClipboard{}
	c := NewController(Config{
		Messenger:   &fakeMessenger{resp: transcriptResp("abc")},
		Clipboard:   clip,
		CopyConfirm: time.Minute,
	})
	c.OnExtractClick(context.Background())
	m := sized(t, c)

	_, cmd := m.Update(runeKey('c'))
	if cmd == nil {
		t.Fatal("copy key returned no command")
	}
	m.Update(cmd())
	if clip.get() != "abc" {
		t.Errorf("clipboard: got %q", clip.get())
	}
	if !strings.Contains(m.View(), CopiedLabel) {
		t.Errorf("view should show %q:\n%s", CopiedLabel, m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, newTestController(&fakeMessenger{}, nil))
	_, cmd := m.Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
