package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"unicode"

	"dev.rubentxu.devops-platform/server-manager/internal/domain"
)

// maxSearchDepth acota la búsqueda del ejecutable dentro de una
// instalación del motor.
const maxSearchDepth = 5

var portParamRe = regexp.MustCompile(`(?i)-(?:Port|NetPort)=(\d+)`)

// UnrealCommandBuilder implementa ports.CommandBuilder para servidores
// dedicados de Unreal Engine.
type UnrealCommandBuilder struct{}

func NewUnrealCommandBuilder() *UnrealCommandBuilder {
	return &UnrealCommandBuilder{}
}

// ResolveExecutable localiza el ejecutable del editor: la ruta directa si
// es un fichero, las ubicaciones conocidas dentro de una instalación, o
// una búsqueda acotada en profundidad como último recurso.
func (b *UnrealCommandBuilder) ResolveExecutable(cfg domain.ServerConfig) string {
	return resolveEngineExecutable(cfg.EnginePath)
}

func resolveEngineExecutable(path string) string {
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}

	root, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	if runtime.GOOS == "windows" {
		candidates := []string{
			filepath.Join(root, "Engine", "Binaries", "Win64", "UnrealEditor.exe"),
			filepath.Join(root, "Engine", "Binaries", "Win64", "UE4Editor.exe"),
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				return c
			}
		}
	}

	names := map[string]bool{
		"UnrealEditor.exe": true,
		"UnrealEditor":     true,
		"UE4Editor.exe":    true,
		"UE4Editor":        true,
	}

	var found string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr == nil && d.IsDir() && strings.Count(rel, string(os.PathSeparator)) > maxSearchDepth {
			return fs.SkipDir
		}
		if !d.IsDir() && names[d.Name()] {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// BuildCommand ensambla la línea de comandos del servidor dedicado. Solo
// añade -Port si los parámetros personalizados no lo sobrescriben ya.
func (b *UnrealCommandBuilder) BuildCommand(cfg domain.ServerConfig) ([]string, string) {
	exe := resolveEngineExecutable(cfg.EnginePath)
	if exe == "" {
		exe = cfg.EnginePath
	}

	command := []string{exe}
	if cfg.ProjectPath != "" {
		command = append(command, cfg.ProjectPath)
	}
	command = append(command, "-server", "-unattended", "-stdout", "-FullStdOutLogOutput")

	low := strings.ToLower(cfg.CustomParams)
	if !strings.Contains(low, "-port=") && !strings.Contains(low, "-netport=") {
		command = append(command, fmt.Sprintf("-Port=%d", cfg.Port))
	}

	if params := strings.TrimSpace(cfg.CustomParams); params != "" {
		command = append(command, SplitParams(params)...)
	}

	dir := ""
	if cfg.ProjectPath != "" {
		dir = filepath.Dir(cfg.ProjectPath)
	}
	return command, dir
}

// EffectivePort devuelve el puerto que usará realmente el proceso.
func (b *UnrealCommandBuilder) EffectivePort(cfg domain.ServerConfig) int {
	if m := portParamRe.FindStringSubmatch(cfg.CustomParams); m != nil {
		if port, err := strconv.Atoi(m[1]); err == nil {
			return port
		}
	}
	return cfg.Port
}

// SplitParams divide la cadena de parámetros respetando comillas simples
// y dobles.
func SplitParams(s string) []string {
	var out []string
	var cur strings.Builder
	var quote rune

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
