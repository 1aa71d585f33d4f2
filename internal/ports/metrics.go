package ports

// ProcessSample es una lectura puntual de recursos de un proceso.
type ProcessSample struct {
	CPUPercent float64
	MemoryMB   float64
}

// ProcessMetricsCollector muestrea CPU y memoria residente de un proceso
// por PID. El CPU viene normalizado por el número de núcleos lógicos.
type ProcessMetricsCollector interface {
	Sample(pid int) (ProcessSample, error)

	// Forget descarta el estado interno asociado a un PID (el cálculo de
	// CPU es incremental entre muestras).
	Forget(pid int)
}
