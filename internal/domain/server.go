package domain

import "time"

// ServerConfig es la configuración inmutable de un servidor gestionado.
// Se edita únicamente por sustitución completa; el ID es estable entre
// ciclos de guardado/restauración.
type ServerConfig struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	EnginePath   string `json:"engine_path"`
	ProjectPath  string `json:"project_path"`
	Port         int    `json:"port"`
	CustomParams string `json:"custom_params"`
}

// ServerSnapshot es una copia de solo lectura del estado de un servidor,
// expuesta a la capa de presentación. El estado mutable vive en el
// supervisor y nunca se comparte directamente.
type ServerSnapshot struct {
	Config      ServerConfig `json:"config"`
	State       State        `json:"state"`
	PID         int          `json:"pid,omitempty"`
	PrivateIP   string       `json:"private_ip"`
	PublicIP    string       `json:"public_ip"`
	CPUPercent  float64      `json:"cpu_percent"`
	MemoryMB    float64      `json:"memory_mb"`
	LastStarted time.Time    `json:"last_started,omitempty"`
}

// Tipos de evento publicados por el supervisor a los suscriptores.
type EventType string

const (
	EventStateChanged  EventType = "state_changed"
	EventLogLine       EventType = "log_line"
	EventMetrics       EventType = "metrics"
	EventServerAdded   EventType = "server_added"
	EventServerRemoved EventType = "server_removed"
)

// ServerEvent es el mensaje que viaja del supervisor a la capa de
// presentación. Solo se rellenan los campos relevantes para cada tipo.
type ServerEvent struct {
	Type       EventType   `json:"type"`
	ServerID   string      `json:"server_id"`
	State      State       `json:"state,omitempty"`
	Line       string      `json:"line,omitempty"`
	Severity   LogSeverity `json:"severity,omitempty"`
	CPUPercent float64     `json:"cpu_percent,omitempty"`
	MemoryMB   float64     `json:"memory_mb,omitempty"`
}
