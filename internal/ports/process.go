package ports

import "context"

// ProcessEventType distingue los eventos emitidos por el lector de logs.
type ProcessEventType int

const (
	// EventLine es una línea de la salida combinada stdout/stderr.
	EventLine ProcessEventType = iota
	// EventExited es el evento terminal con el código de salida. Se emite
	// exactamente una vez por proceso, siempre el último.
	EventExited
)

// ProcessEvent representa una línea de salida o la finalización del proceso.
type ProcessEvent struct {
	Type     ProcessEventType
	Line     string
	ExitCode int
}

// ProcessRunner define el contrato para lanzar procesos hijos con su
// salida combinada en streaming.
type ProcessRunner interface {
	// Spawn lanza el comando en el directorio dado y devuelve el handle
	// del proceso vivo. La lectura de salida comienza inmediatamente.
	Spawn(ctx context.Context, command []string, dir string) (ProcessHandle, error)
}

// ProcessHandle es el control de un proceso hijo vivo. Todas las
// operaciones son seguras ante un proceso ya terminado.
type ProcessHandle interface {
	PID() int

	// Alive indica si el proceso sigue en ejecución.
	Alive() bool

	// Events entrega líneas en orden de llegada y después exactamente un
	// EventExited. El canal se cierra tras el evento terminal.
	Events() <-chan ProcessEvent

	// StopReading pide al lector abandonar lecturas pendientes. Es
	// cooperativo: no cierra el stream, eso corresponde a Shutdown o a la
	// propia salida del hijo.
	StopReading()

	// Shutdown ejecuta la terminación escalonada (señal de cortesía,
	// terminación estándar, matanza incondicional) y bloquea hasta
	// completarla. Un proceso ya muerto se trata como éxito.
	Shutdown()

	// Kill mata el proceso sin escalado previo. Se usa en el apagado
	// global para rezagados.
	Kill() error
}
