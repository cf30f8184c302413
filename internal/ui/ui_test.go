package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar(t *testing.T) {
	SetColorForcing(false, true)
	SetTheme("mono")
	defer SetTheme("classic")

	cases := []struct {
		done, total, width int
		want               string
	}{
		{0, 0, 10, ".......... " + "  0%"},
		{1, 2, 10, "#####..... " + " 50%"},
		{3, 3, 4, "##### 100%"},
	}
	for _, c := range cases {
		if got := ProgressBar(c.done, c.total, c.width); got != c.want {
			t.Fatalf("ProgressBar(%d,%d,%d) = %q, want %q", c.done, c.total, c.width, got, c.want)
		}
	}
}

func TestSetTheme_UnknownFallsBackToClassic(t *testing.T) {
	SetTheme("plaid")
	if Current().Name != "classic" {
		t.Fatalf("expected classic, got %q", Current().Name)
	}
	SetTheme("NEON")
	if Current().Name != "neon" {
		t.Fatalf("expected neon, got %q", Current().Name)
	}
	SetTheme("classic")
}

func TestPanelAndMessages(t *testing.T) {
	SetColorForcing(false, true)
	SetTheme("mono")
	defer SetTheme("classic")

	var buf bytes.Buffer
	Panel(&buf, []string{"My Todo List", "Total: 2"})
	out := buf.String()
	if !strings.Contains(out, "My Todo List") || !strings.Contains(out, "+") {
		t.Fatalf("unexpected panel %q", out)
	}

	buf.Reset()
	OK(&buf, "saved")
	Fail(&buf, "broken")
	if buf.String() != "x saved\n! broken\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if Current().Checkbox(true) != "[x]" || Current().Checkbox(false) != "[ ]" {
		t.Fatalf("unexpected checkbox symbols")
	}
}
