package domain

import (
	"fmt"
	"testing"
)

func TestValidStateTransitions(t *testing.T) {
	cases := []struct {
		src, dst State
		want     bool
	}{
		{Offline, Starting, true},
		{Stopped, Starting, true},
		{Starting, Running, true},
		{Starting, Stopping, true},
		{Starting, Stopped, true},
		{Running, Stopping, true},
		{Running, Stopped, true},
		{Stopping, Stopped, true},

		{Offline, Running, false},
		{Offline, Stopped, false},
		{Stopped, Running, false},
		{Stopping, Running, false},
		{Stopping, Starting, false},
		{Running, Starting, false},
		{Stopped, Stopped, false},
	}
	for _, c := range cases {
		if got := ValidStateTransition(c.src, c.dst); got != c.want {
			t.Errorf("ValidStateTransition(%s, %s) = %v, want %v", c.src, c.dst, got, c.want)
		}
	}
}

func TestStateHelpers(t *testing.T) {
	for _, s := range []State{Starting, Running, Stopping} {
		if !s.Live() {
			t.Errorf("%s.Live() = false, want true", s)
		}
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
	for _, s := range []State{Offline, Stopped} {
		if s.Live() {
			t.Errorf("%s.Live() = true, want false", s)
		}
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
}

func TestLogBufferEviction(t *testing.T) {
	b := NewLogBuffer(MaxLogLines)
	for i := 0; i < MaxLogLines; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}
	if b.Len() != MaxLogLines {
		t.Fatalf("Len() = %d, want %d", b.Len(), MaxLogLines)
	}

	// La línea 8001 expulsa exactamente la más antigua.
	b.Append("overflow")
	if b.Len() != MaxLogLines {
		t.Fatalf("Len() after overflow = %d, want %d", b.Len(), MaxLogLines)
	}
	lines := b.Lines()
	if lines[0] != "line 1" {
		t.Errorf("oldest line = %q, want %q", lines[0], "line 1")
	}
	if lines[len(lines)-1] != "overflow" {
		t.Errorf("newest line = %q, want %q", lines[len(lines)-1], "overflow")
	}
	// El orden de las restantes se conserva.
	for i := 0; i < MaxLogLines-1; i++ {
		want := fmt.Sprintf("line %d", i+1)
		if lines[i] != want {
			t.Fatalf("lines[%d] = %q, want %q", i, lines[i], want)
		}
	}
}

func TestLogBufferLinesIsACopy(t *testing.T) {
	b := NewLogBuffer(10)
	b.Append("a")
	lines := b.Lines()
	lines[0] = "mutated"
	if got := b.Lines()[0]; got != "a" {
		t.Errorf("buffer was mutated through the returned slice: %q", got)
	}
}

func TestClassifyLogLine(t *testing.T) {
	cases := []struct {
		line string
		want LogSeverity
	}{
		{"LogTemp: Warning: something", SeverityWarning},
		{"LogTemp: Error: failed", SeverityError},
		{"LogNet: ready on port 7777", SeverityInfo},
		{"Warning: low memory", SeverityWarning},
		{"Error: boom", SeverityError},
		{"error:", SeverityError},
		{"an error occurred somewhere", SeverityInfo},
		{"", SeverityInfo},
	}
	for _, c := range cases {
		if got := ClassifyLogLine(c.line); got != c.want {
			t.Errorf("ClassifyLogLine(%q) = %s, want %s", c.line, got, c.want)
		}
	}
}
