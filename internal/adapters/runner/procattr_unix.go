//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr coloca al hijo en su propio grupo de procesos para que
// las señales del terminal no le alcancen por accidente.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGraceful envía la señal de cortesía (SIGINT). El motor la trata
// como petición de apagado ordenado.
func (p *localProcess) signalGraceful() error {
	return p.cmd.Process.Signal(syscall.SIGINT)
}

// signalTerminate envía la terminación estándar (SIGTERM).
func (p *localProcess) signalTerminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}
