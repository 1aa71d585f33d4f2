package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dev.rubentxu.devops-platform/server-manager/internal/domain"
	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

const (
	publicIPTimeout  = 2500 * time.Millisecond
	metricsInterval  = 1 * time.Second
	shutdownDeadline = 10 * time.Second

	subscriberBuffer = 256
)

// serverEntry es el registro mutable de un servidor gestionado. Es
// propiedad exclusiva del ServerManager: fuera de él solo circulan
// snapshots. Invariante: process != nil exactamente cuando el estado es
// Starting, Running o Stopping.
type serverEntry struct {
	config      domain.ServerConfig
	state       domain.State
	process     ports.ProcessHandle
	stopping    bool // hay un terminador en vuelo; como máximo uno
	privateIP   string
	publicIP    string
	cpuPercent  float64
	memoryMB    float64
	logs        *domain.LogBuffer
	lastStarted time.Time
	onStopped   []func()
}

// ServerManager es el supervisor de procesos: posee la tabla de servidores
// y orquesta el lector de logs, el terminador y el muestreo de métricas de
// cada entidad. Ninguna de sus operaciones públicas bloquea: todo el I/O
// ocurre en tareas de fondo que reportan por canales o callbacks.
type ServerManager struct {
	mu      sync.RWMutex
	servers map[string]*serverEntry
	closed  bool

	store     ports.Store[domain.ServerConfig]
	runner    ports.ProcessRunner
	collector ports.ProcessMetricsCollector
	probe     ports.PortProbe
	network   ports.NetworkInfo
	builder   ports.CommandBuilder

	subsMu     sync.Mutex
	subs       map[chan domain.ServerEvent]struct{}
	subsClosed bool

	wg   sync.WaitGroup
	quit chan struct{}
}

func NewServerManager(
	store ports.Store[domain.ServerConfig],
	runner ports.ProcessRunner,
	collector ports.ProcessMetricsCollector,
	probe ports.PortProbe,
	network ports.NetworkInfo,
	builder ports.CommandBuilder,
) *ServerManager {
	m := &ServerManager{
		servers:   make(map[string]*serverEntry),
		store:     store,
		runner:    runner,
		collector: collector,
		probe:     probe,
		network:   network,
		builder:   builder,
		subs:      make(map[chan domain.ServerEvent]struct{}),
		quit:      make(chan struct{}),
	}

	m.restoreSavedServers()

	m.wg.Add(1)
	go m.metricsLoop()

	return m
}

// restoreSavedServers repuebla el registro desde la persistencia. Un
// fallo de carga se trata como "sin servidores guardados".
func (m *ServerManager) restoreSavedServers() {
	configs, err := m.store.List()
	if err != nil {
		log.Printf("could not load saved servers, starting empty: %v", err)
		return
	}
	privateIP := m.network.PrivateIP()
	for _, cfg := range configs {
		entry := &serverEntry{
			config:    cfg,
			state:     domain.Offline,
			privateIP: privateIP,
			publicIP:  ports.PublicIPUnknown,
			logs:      domain.NewLogBuffer(domain.MaxLogLines),
		}
		m.servers[cfg.ID] = entry
		m.resolvePublicIPAsync(cfg.ID)
	}
}

// Add registra una nueva configuración y la persiste. Genera el ID si la
// configuración no trae uno.
func (m *ServerManager) Add(cfg domain.ServerConfig) (string, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Port)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Name == "" {
		cfg.Name = "Server"
	}

	entry := &serverEntry{
		config:    cfg,
		state:     domain.Offline,
		privateIP: m.network.PrivateIP(),
		publicIP:  ports.PublicIPUnknown,
		logs:      domain.NewLogBuffer(domain.MaxLogLines),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}
	m.servers[cfg.ID] = entry
	m.mu.Unlock()

	if err := m.store.Put(cfg.ID, cfg); err != nil {
		log.Printf("could not persist server %s: %v", cfg.ID, err)
	}
	m.resolvePublicIPAsync(cfg.ID)
	m.publish(domain.ServerEvent{Type: domain.EventServerAdded, ServerID: cfg.ID, State: domain.Offline})
	return cfg.ID, nil
}

// Start arranca un servidor. Es idempotente: con un proceso ya vivo es un
// no-op. confirmPortInUse decide si continuar cuando el puerto efectivo
// parece ocupado; nil equivale a rechazar.
func (m *ServerManager) Start(id string, confirmPortInUse func(port int) bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	entry, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return ErrServerNotFound
	}
	if entry.process != nil || entry.stopping {
		// Ya vivo o parándose: no-op, no es un error.
		m.mu.Unlock()
		return nil
	}
	cfg := entry.config
	m.mu.Unlock()

	exe := m.builder.ResolveExecutable(cfg)
	if exe == "" {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, cfg.EnginePath)
	}

	// Refrescar direcciones en cada arranque; la pública en segundo plano.
	privateIP := m.network.PrivateIP()
	m.resolvePublicIPAsync(id)

	// El sondeo del puerto es orientativo: nunca bloquea por sí solo,
	// solo exige confirmación explícita del llamante.
	effectivePort := m.builder.EffectivePort(cfg)
	if m.probe.IsPortBusy(effectivePort) {
		if confirmPortInUse == nil || !confirmPortInUse(effectivePort) {
			return fmt.Errorf("%w: %d", ErrStartDeclined, effectivePort)
		}
	}

	command, dir := m.builder.BuildCommand(cfg)
	handle, err := m.runner.Spawn(context.Background(), command, dir)
	if err != nil {
		return &SpawnError{Command: command, Err: err}
	}

	m.mu.Lock()
	entry, ok = m.servers[id]
	if !ok || entry.process != nil || m.closed {
		// Carrera con un borrado, otro arranque o el apagado global: el
		// proceso recién lanzado sobra.
		closed := m.closed
		if !closed {
			// El Add bajo el mutex garantiza que el apagado global aún no
			// ha pasado a su espera final y contará esta limpieza.
			m.wg.Add(1)
		}
		m.mu.Unlock()
		if closed {
			// El apagado ya no espera por tareas nuevas: limpiar en línea.
			handle.Shutdown()
			for range handle.Events() {
			}
			return ErrShuttingDown
		}
		go func() {
			defer m.wg.Done()
			handle.Shutdown()
			for range handle.Events() {
			}
		}()
		if !ok {
			return ErrServerNotFound
		}
		return nil
	}
	entry.privateIP = privateIP
	entry.process = handle
	entry.lastStarted = time.Now()
	m.transitionLocked(entry, domain.Starting)
	m.appendLogLocked(entry, fmt.Sprintf("[Manager] Started: %s", strings.Join(command, " ")))
	m.wg.Add(1)
	m.mu.Unlock()

	go m.consumeProcessEvents(id, handle)

	return nil
}

// consumeProcessEvents bombea las líneas y el evento terminal del lector
// hacia la tabla de estado. Es la única tarea que consume el stream de un
// proceso, lo que preserva el orden de llegada. El handle viaja con cada
// evento: el lector puede entregar su evento terminal después de que la
// entidad haya sido finalizada e incluso rearrancada, y esos rezagados no
// deben tocar la ejecución nueva.
func (m *ServerManager) consumeProcessEvents(id string, handle ports.ProcessHandle) {
	defer m.wg.Done()
	for ev := range handle.Events() {
		switch ev.Type {
		case ports.EventLine:
			m.handleLogLine(id, handle, ev.Line)
		case ports.EventExited:
			m.handleProcessExited(id, handle, ev.ExitCode)
		}
	}
}

func (m *ServerManager) handleLogLine(id string, handle ports.ProcessHandle, line string) {
	m.mu.Lock()
	entry, ok := m.servers[id]
	if !ok || entry.process != handle {
		// Línea rezagada de una ejecución ya finalizada.
		m.mu.Unlock()
		return
	}
	if entry.state == domain.Starting {
		// La primera línea de salida confirma que el proceso respira.
		m.transitionLocked(entry, domain.Running)
	}
	m.appendLogLocked(entry, line)
	m.mu.Unlock()
}

func (m *ServerManager) handleProcessExited(id string, handle ports.ProcessHandle, exitCode int) {
	var callbacks []func()

	m.mu.Lock()
	entry, ok := m.servers[id]
	if !ok || entry.process != handle {
		// Evento terminal rezagado: la entidad ya fue finalizada (y quizá
		// rearrancada con otro proceso). No hay nada que deshacer.
		m.mu.Unlock()
		return
	}
	m.appendLogLocked(entry, fmt.Sprintf("[Manager] Process exited with code %d", exitCode))
	if entry.stopping {
		// Hay un terminador en vuelo; él finaliza cuando complete.
		m.mu.Unlock()
		return
	}
	callbacks = m.finalizeStopLocked(entry)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Stop solicita la parada de un servidor. No bloquea: la terminación
// escalonada corre en su propia tarea y onDone se invoca al finalizar.
// Es idempotente frente a paradas duplicadas y un no-op sin proceso vivo.
func (m *ServerManager) Stop(id string, onDone func()) error {
	return m.stop(id, onDone, false)
}

// stop es la implementación de Stop; duringShutdown salta el rechazo por
// cierre para que el apagado global pueda parar sus propias entidades.
func (m *ServerManager) stop(id string, onDone func(), duringShutdown bool) error {
	m.mu.Lock()
	if m.closed && !duringShutdown {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	entry, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return ErrServerNotFound
	}
	if entry.stopping {
		// Parada duplicada: se ignora, pero el callback no se pierde.
		if onDone != nil {
			entry.onStopped = append(entry.onStopped, onDone)
		}
		m.mu.Unlock()
		return nil
	}
	if entry.process == nil {
		// Sin proceso vivo se salta directamente a la finalización;
		// Offline/Stopped se mantienen tal cual.
		m.mu.Unlock()
		if onDone != nil {
			onDone()
		}
		return nil
	}

	entry.stopping = true
	if onDone != nil {
		entry.onStopped = append(entry.onStopped, onDone)
	}
	m.transitionLocked(entry, domain.Stopping)
	handle := entry.process
	// El lector deja de consumir; cerrar el stream es cosa del terminador.
	handle.StopReading()
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		handle.Shutdown()
		m.finalizeStop(id)
	}()

	return nil
}

func (m *ServerManager) finalizeStop(id string) {
	var callbacks []func()

	m.mu.Lock()
	if entry, ok := m.servers[id]; ok {
		callbacks = m.finalizeStopLocked(entry)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// finalizeStopLocked lleva la entrada a Stopped, limpia el handle y pone
// las métricas a cero. Es idempotente: una entrada ya finalizada solo
// entrega los callbacks pendientes.
func (m *ServerManager) finalizeStopLocked(entry *serverEntry) []func() {
	if entry.process != nil {
		m.collector.Forget(entry.process.PID())
	}
	entry.process = nil
	entry.stopping = false
	entry.cpuPercent = 0
	entry.memoryMB = 0
	if entry.state != domain.Stopped && domain.ValidStateTransition(entry.state, domain.Stopped) {
		m.transitionLocked(entry, domain.Stopped)
	}
	callbacks := entry.onStopped
	entry.onStopped = nil
	return callbacks
}

// Delete elimina un servidor del registro y de la persistencia. Sobre una
// entidad viva primero encadena una parada y borra al completarse.
func (m *ServerManager) Delete(id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	entry, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return ErrServerNotFound
	}
	if entry.state.Live() {
		m.mu.Unlock()
		return m.Stop(id, func() { m.removeServer(id) })
	}
	m.mu.Unlock()

	m.removeServer(id)
	return nil
}

func (m *ServerManager) removeServer(id string) {
	m.mu.Lock()
	_, ok := m.servers[id]
	delete(m.servers, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := m.store.Delete(id); err != nil {
		log.Printf("could not remove server %s from store: %v", id, err)
	}
	m.publish(domain.ServerEvent{Type: domain.EventServerRemoved, ServerID: id})
}

// Snapshot devuelve una copia de solo lectura del estado de un servidor.
func (m *ServerManager) Snapshot(id string) (domain.ServerSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.servers[id]
	if !ok {
		return domain.ServerSnapshot{}, ErrServerNotFound
	}
	return snapshotOf(entry), nil
}

// Snapshots devuelve todos los servidores ordenados por nombre.
func (m *ServerManager) Snapshots() []domain.ServerSnapshot {
	m.mu.RLock()
	out := make([]domain.ServerSnapshot, 0, len(m.servers))
	for _, entry := range m.servers {
		out = append(out, snapshotOf(entry))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Config.Name == out[j].Config.Name {
			return out[i].Config.ID < out[j].Config.ID
		}
		return out[i].Config.Name < out[j].Config.Name
	})
	return out
}

func snapshotOf(entry *serverEntry) domain.ServerSnapshot {
	snap := domain.ServerSnapshot{
		Config:      entry.config,
		State:       entry.state,
		PrivateIP:   entry.privateIP,
		PublicIP:    entry.publicIP,
		CPUPercent:  entry.cpuPercent,
		MemoryMB:    entry.memoryMB,
		LastStarted: entry.lastStarted,
	}
	if entry.process != nil {
		snap.PID = entry.process.PID()
	}
	return snap
}

// Logs devuelve las líneas retenidas de un servidor en orden de llegada.
func (m *ServerManager) Logs(id string) ([]string, error) {
	m.mu.RLock()
	entry, ok := m.servers[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrServerNotFound
	}
	return entry.logs.Lines(), nil
}

// ExportLog vuelca el log retenido de un servidor a un fichero.
func (m *ServerManager) ExportLog(id string, path string) error {
	lines, err := m.Logs(id)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create log directory: %v", err)
		}
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Subscribe registra un suscriptor de eventos. El canal devuelto se
// cierra al cancelar o en el apagado global. Un suscriptor lento pierde
// eventos en vez de frenar al supervisor.
func (m *ServerManager) Subscribe() (<-chan domain.ServerEvent, func()) {
	ch := make(chan domain.ServerEvent, subscriberBuffer)

	m.subsMu.Lock()
	if m.subsClosed {
		m.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()

	cancel := func() {
		m.subsMu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.subsMu.Unlock()
	}
	return ch, cancel
}

func (m *ServerManager) publish(ev domain.ServerEvent) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if m.subsClosed {
		return
	}
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Suscriptor saturado: descartar antes que bloquear.
		}
	}
}

func (m *ServerManager) transitionLocked(entry *serverEntry, dst domain.State) {
	if !domain.ValidStateTransition(entry.state, dst) {
		log.Printf("invalid state transition for %s: %s -> %s", entry.config.ID, entry.state, dst)
		return
	}
	entry.state = dst
	m.publish(domain.ServerEvent{Type: domain.EventStateChanged, ServerID: entry.config.ID, State: dst})
}

func (m *ServerManager) appendLogLocked(entry *serverEntry, line string) {
	entry.logs.Append(line)
	m.publish(domain.ServerEvent{
		Type:     domain.EventLogLine,
		ServerID: entry.config.ID,
		Line:     line,
		Severity: domain.ClassifyLogLine(line),
	})
}

func (m *ServerManager) resolvePublicIPAsync(id string) {
	// El par comprobación/Add bajo el mutex impide que la tarea arranque
	// cuando el apagado global ya está (o va a estar) en su espera final.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		ip := m.network.PublicIP(publicIPTimeout)
		m.mu.Lock()
		entry, ok := m.servers[id]
		if ok {
			entry.publicIP = ip
		}
		state := domain.Offline
		if ok {
			state = entry.state
		}
		m.mu.Unlock()
		if ok {
			// Reutiliza el evento de estado para que la presentación
			// refresque la fila con la IP recién resuelta.
			m.publish(domain.ServerEvent{Type: domain.EventStateChanged, ServerID: id, State: state})
		}
	}()
}

// metricsLoop muestrea cada segundo los servidores en Running. Nunca toca
// el estado del ciclo de vida, solo los dos campos numéricos.
func (m *ServerManager) metricsLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.sampleMetrics()
		}
	}
}

func (m *ServerManager) sampleMetrics() {
	type target struct {
		id  string
		pid int
	}

	m.mu.RLock()
	targets := make([]target, 0, len(m.servers))
	for id, entry := range m.servers {
		if entry.state == domain.Running && entry.process != nil {
			targets = append(targets, target{id: id, pid: entry.process.PID()})
		}
	}
	m.mu.RUnlock()

	for _, t := range targets {
		sample, err := m.collector.Sample(t.pid)
		if err != nil {
			// El proceso pudo desaparecer a mitad de muestra: se conserva
			// la última lectura buena hasta la siguiente.
			continue
		}
		m.mu.Lock()
		entry, ok := m.servers[t.id]
		if ok && entry.state == domain.Running {
			entry.cpuPercent = sample.CPUPercent
			entry.memoryMB = sample.MemoryMB
			m.publish(domain.ServerEvent{
				Type:       domain.EventMetrics,
				ServerID:   t.id,
				CPUPercent: sample.CPUPercent,
				MemoryMB:   sample.MemoryMB,
			})
		}
		m.mu.Unlock()
	}

	// Fuera de Running las lecturas se fuerzan a cero.
	m.mu.Lock()
	for id, entry := range m.servers {
		if entry.state != domain.Running && (entry.cpuPercent != 0 || entry.memoryMB != 0) {
			entry.cpuPercent = 0
			entry.memoryMB = 0
			m.publish(domain.ServerEvent{Type: domain.EventMetrics, ServerID: id})
		}
	}
	m.mu.Unlock()
}

// Shutdown detiene todas las entidades no terminales, espera hasta el
// plazo global, remata a los rezagados y espera de forma síncrona a que
// todas las tareas de fondo acaben. Tras Shutdown el supervisor queda
// inutilizable.
func (m *ServerManager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}
	m.closed = true
	close(m.quit)

	var pending []string
	for id, entry := range m.servers {
		if entry.state == domain.Starting || entry.state == domain.Running {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	done := make(chan struct{}, len(pending))
	for _, id := range pending {
		if err := m.stop(id, func() { done <- struct{}{} }, true); err != nil {
			done <- struct{}{}
		}
	}

	deadline := time.NewTimer(shutdownDeadline)
	defer deadline.Stop()
	for remaining := len(pending); remaining > 0; {
		select {
		case <-done:
			remaining--
		case <-deadline.C:
			// Plazo agotado: matanza incondicional de los rezagados. Los
			// terminadores en vuelo completarán sobre procesos muertos.
			m.mu.Lock()
			for _, entry := range m.servers {
				if entry.process != nil {
					if err := entry.process.Kill(); err != nil {
						log.Printf("could not kill straggler %s: %v", entry.config.ID, err)
					}
				}
			}
			m.mu.Unlock()
			remaining = 0
		}
	}

	// Espera síncrona de lectores, terminadores y resoluciones en vuelo:
	// ningún hilo debe sobrevivir a la aplicación.
	m.wg.Wait()

	m.subsMu.Lock()
	m.subsClosed = true
	for ch := range m.subs {
		close(ch)
	}
	m.subs = make(map[chan domain.ServerEvent]struct{})
	m.subsMu.Unlock()
}
