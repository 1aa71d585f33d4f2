//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

var (
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

// setSysProcAttr crea el hijo en un grupo de procesos nuevo y sin consola
// visible, requisito para poder enviarle CTRL_BREAK de forma aislada.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}

// signalGraceful envía CTRL_BREAK al grupo del proceso, el equivalente en
// Windows a la petición de apagado ordenado.
func (p *localProcess) signalGraceful() error {
	r, _, err := procGenerateConsoleCtrlEvent.Call(syscall.CTRL_BREAK_EVENT, uintptr(p.cmd.Process.Pid))
	if r == 0 {
		return err
	}
	return nil
}

// signalTerminate en Windows equivale a TerminateProcess.
func (p *localProcess) signalTerminate() error {
	return p.cmd.Process.Kill()
}
