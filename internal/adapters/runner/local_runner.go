package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

const (
	defaultGraceTimeout = 7 * time.Second
	defaultTermTimeout  = 5 * time.Second
	defaultKillTimeout  = 2 * time.Second

	// exitCodeUnknown es el código centinela cuando la propia espera falla.
	exitCodeUnknown = -1
)

// LocalProcessRunner implementa ports.ProcessRunner lanzando procesos
// locales con la salida stdout/stderr combinada en un único stream de
// líneas.
type LocalProcessRunner struct {
	// Esperas acotadas entre niveles de la terminación escalonada.
	GraceTimeout time.Duration
	TermTimeout  time.Duration
	KillTimeout  time.Duration
}

func NewLocalProcessRunner() *LocalProcessRunner {
	return &LocalProcessRunner{
		GraceTimeout: defaultGraceTimeout,
		TermTimeout:  defaultTermTimeout,
		KillTimeout:  defaultKillTimeout,
	}
}

// Spawn lanza el comando en el directorio dado. La lectura de salida y la
// espera del proceso arrancan inmediatamente en goroutines propias.
func (r *LocalProcessRunner) Spawn(ctx context.Context, command []string, dir string) (ports.ProcessHandle, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	setSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %v", err)
	}
	// Salida combinada: stderr comparte el extremo de escritura del pipe.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %v", err)
	}

	p := &localProcess{
		cmd:          cmd,
		stdout:       stdout,
		events:       make(chan ports.ProcessEvent, 100),
		done:         make(chan struct{}),
		graceTimeout: r.GraceTimeout,
		termTimeout:  r.TermTimeout,
		killTimeout:  r.KillTimeout,
	}

	go p.waitLoop()
	go p.readLoop()

	return p, nil
}

type localProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	events chan ports.ProcessEvent

	// done se cierra cuando cmd.Wait devuelve; exitCode es válido a
	// partir de ese momento.
	done     chan struct{}
	exitCode int

	stopRead     atomic.Bool
	shutdownOnce sync.Once

	graceTimeout time.Duration
	termTimeout  time.Duration
	killTimeout  time.Duration
}

// waitLoop es el único punto donde se llama a cmd.Wait.
func (p *localProcess) waitLoop() {
	err := p.cmd.Wait()
	p.exitCode = exitCodeFrom(p.cmd, err)
	close(p.done)
}

func exitCodeFrom(cmd *exec.Cmd, err error) int {
	if err == nil {
		if state := cmd.ProcessState; state != nil {
			return state.ExitCode()
		}
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return exitCodeUnknown
}

// readLoop consume el stream línea a línea y emite exactamente un evento
// terminal con el código de salida, incluso si no hubo ninguna línea.
func (p *localProcess) readLoop() {
	scanner := bufio.NewScanner(p.stdout)
	// El motor puede emitir líneas muy largas (callstacks, dumps).
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if p.stopRead.Load() {
			break
		}
		p.events <- ports.ProcessEvent{Type: ports.EventLine, Line: scanner.Text()}
	}
	<-p.done
	p.events <- ports.ProcessEvent{Type: ports.EventExited, ExitCode: p.exitCode}
	close(p.events)
}

func (p *localProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *localProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *localProcess) Events() <-chan ports.ProcessEvent {
	return p.events
}

// StopReading es cooperativo: el lector abandona en la siguiente línea.
// No cierra el stream; hacerlo bajo una lectura activa corrompe las
// últimas líneas.
func (p *localProcess) StopReading() {
	p.stopRead.Store(true)
}

func (p *localProcess) Kill() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Shutdown ejecuta la terminación escalonada. Cada nivel comprueba si el
// proceso sigue vivo antes de actuar; un proceso ya muerto es éxito.
func (p *localProcess) Shutdown() {
	p.shutdownOnce.Do(p.shutdown)
}

func (p *localProcess) shutdown() {
	// (1) señal de cortesía con espera acotada
	if p.Alive() {
		if err := p.signalGraceful(); err == nil {
			p.waitExit(p.graceTimeout)
		}
	}
	// (2) terminación estándar
	if p.Alive() {
		if err := p.signalTerminate(); err == nil {
			p.waitExit(p.termTimeout)
		}
	}
	// (3) matanza incondicional con un breve periodo de gracia
	if p.Alive() {
		if err := p.cmd.Process.Kill(); err == nil {
			p.waitExit(p.killTimeout)
		}
	}
	// Cerrar siempre el stream para desbloquear a un lector aparcado.
	p.stdout.Close()
}

func (p *localProcess) waitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}
