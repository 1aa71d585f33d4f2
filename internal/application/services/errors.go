package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrServerNotFound indica que el id no existe en el registro.
	ErrServerNotFound = errors.New("server not found")

	// ErrExecutableNotFound aborta un arranque sin cambiar el estado.
	ErrExecutableNotFound = errors.New("engine executable not found")

	// ErrStartDeclined se devuelve cuando el puerto parece ocupado y el
	// llamante no confirma el arranque. No hay cambio de estado.
	ErrStartDeclined = errors.New("start declined: port appears to be in use")

	// ErrShuttingDown rechaza operaciones tras iniciar el apagado global.
	ErrShuttingDown = errors.New("server manager is shutting down")

	// ErrInvalidPort rechaza configuraciones con puerto fuera de rango.
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
)

// SpawnError envuelve el error del sistema operativo junto con el comando
// exacto que se intentó lanzar.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
