package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("los tests del runner usan sh")
	}
}

// collectEvents drena el canal hasta el evento terminal o el timeout.
func collectEvents(t *testing.T, h ports.ProcessHandle, timeout time.Duration) ([]string, int, int) {
	t.Helper()
	var lines []string
	exitCode := 0
	exitEvents := 0
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return lines, exitCode, exitEvents
			}
			switch ev.Type {
			case ports.EventLine:
				lines = append(lines, ev.Line)
			case ports.EventExited:
				exitEvents++
				exitCode = ev.ExitCode
			}
		case <-deadline:
			t.Fatalf("timed out waiting for process events")
		}
	}
}

func TestSpawnStreamsLinesInOrder(t *testing.T) {
	requireShell(t)

	r := NewLocalProcessRunner()
	h, err := r.Spawn(context.Background(), []string{"sh", "-c", "echo one; echo two >&2; echo three"}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	lines, code, exits := collectEvents(t, h, 5*time.Second)
	if exits != 1 {
		t.Fatalf("got %d exit events, want exactly 1", exits)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	// stdout conserva su orden relativo; stderr va al mismo stream
	if lines[0] != "one" {
		t.Errorf("first line = %q, want %q", lines[0], "one")
	}
	found := map[string]bool{}
	for _, l := range lines {
		found[l] = true
	}
	for _, want := range []string{"one", "two", "three"} {
		if !found[want] {
			t.Errorf("line %q missing from output: %v", want, lines)
		}
	}
	if h.Alive() {
		t.Error("process still alive after exit event")
	}
}

func TestExitEventWithZeroLines(t *testing.T) {
	requireShell(t)

	r := NewLocalProcessRunner()
	h, err := r.Spawn(context.Background(), []string{"sh", "-c", "exit 3"}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	lines, code, exits := collectEvents(t, h, 5*time.Second)
	if len(lines) != 0 {
		t.Errorf("got %d lines, want 0: %v", len(lines), lines)
	}
	if exits != 1 {
		t.Errorf("got %d exit events, want exactly 1", exits)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestSpawnFailsOnMissingExecutable(t *testing.T) {
	r := NewLocalProcessRunner()
	if _, err := r.Spawn(context.Background(), []string{"/nonexistent/binary-xyz"}, ""); err == nil {
		t.Fatal("Spawn on a missing executable should fail")
	}
}

func TestSpawnFailsOnEmptyCommand(t *testing.T) {
	r := NewLocalProcessRunner()
	if _, err := r.Spawn(context.Background(), nil, ""); err == nil {
		t.Fatal("Spawn with no command should fail")
	}
}

func TestShutdownEscalatesToKillOnStubbornProcess(t *testing.T) {
	requireShell(t)

	r := NewLocalProcessRunner()
	// Esperas cortas para que el test recorra los tres niveles rápido.
	r.GraceTimeout = 150 * time.Millisecond
	r.TermTimeout = 150 * time.Millisecond
	r.KillTimeout = 2 * time.Second

	// Proceso que ignora INT y TERM: solo el nivel 3 le alcanza.
	h, err := r.Spawn(context.Background(), []string{"sh", "-c", `trap "" INT TERM; echo ready; while true; do sleep 0.05; done`}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	// Esperar la primera línea para garantizar que el trap está activo.
	select {
	case ev := <-h.Events():
		if ev.Type != ports.EventLine || ev.Line != "ready" {
			t.Fatalf("unexpected first event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the process to start")
	}

	start := time.Now()
	h.Shutdown()
	elapsed := time.Since(start)

	if h.Alive() {
		t.Fatal("process still alive after Shutdown")
	}
	if elapsed > 5*time.Second {
		t.Errorf("Shutdown took %v, should stay within the bounded window", elapsed)
	}

	// El evento terminal sigue llegando exactamente una vez.
	_, _, exits := collectEvents(t, h, 5*time.Second)
	if exits != 1 {
		t.Errorf("got %d exit events, want exactly 1", exits)
	}
}

func TestShutdownOnAlreadyExitedProcessIsImmediate(t *testing.T) {
	requireShell(t)

	r := NewLocalProcessRunner()
	h, err := r.Spawn(context.Background(), []string{"sh", "-c", "true"}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	collectEvents(t, h, 5*time.Second)

	start := time.Now()
	h.Shutdown() // ya muerto: éxito, sin esperas
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown on dead process took %v", elapsed)
	}
}

func TestStopReadingIsAdvisory(t *testing.T) {
	requireShell(t)

	r := NewLocalProcessRunner()
	r.GraceTimeout = 100 * time.Millisecond
	r.TermTimeout = 100 * time.Millisecond

	h, err := r.Spawn(context.Background(), []string{"sh", "-c", "echo first; sleep 60"}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	select {
	case ev := <-h.Events():
		if ev.Type != ports.EventLine {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first line")
	}

	h.StopReading()
	h.Shutdown()

	// Tras la parada, el stream entrega el evento terminal y se cierra.
	_, _, exits := collectEvents(t, h, 5*time.Second)
	if exits != 1 {
		t.Errorf("got %d exit events, want exactly 1", exits)
	}
}
