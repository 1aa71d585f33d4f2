package domain

import "sync"

// MaxLogLines es el número máximo de líneas retenidas por servidor.
const MaxLogLines = 8000

// LogBuffer es un búfer ordenado y acotado de líneas de log. Al superar
// la capacidad se descartan primero las líneas más antiguas (FIFO).
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = MaxLogLines
	}
	return &LogBuffer{max: max}
}

// Append añade una línea al final, descartando la más antigua si el
// búfer está lleno.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if overflow := len(b.lines) - b.max; overflow > 0 {
		b.lines = b.lines[overflow:]
	}
}

// Lines devuelve una copia de las líneas en orden de llegada.
func (b *LogBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
