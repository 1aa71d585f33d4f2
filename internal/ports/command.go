package ports

import "dev.rubentxu.devops-platform/server-manager/internal/domain"

// CommandBuilder construye la línea de comandos lista para lanzar a
// partir de una configuración. El supervisor la consume de forma opaca.
type CommandBuilder interface {
	// ResolveExecutable localiza el ejecutable del motor a partir de la
	// ruta configurada (fichero directo o raíz de instalación). Devuelve
	// cadena vacía si no existe.
	ResolveExecutable(cfg domain.ServerConfig) string

	// BuildCommand ensambla el vector de argumentos completo y el
	// directorio de trabajo.
	BuildCommand(cfg domain.ServerConfig) (command []string, dir string)

	// EffectivePort devuelve el puerto que usará realmente el proceso:
	// el de los parámetros personalizados si lo sobrescriben, o el
	// configurado.
	EffectivePort(cfg domain.ServerConfig) int
}
