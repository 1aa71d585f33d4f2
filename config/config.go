package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const appDirName = "ServerManager"

// GetListenAddr devuelve la dirección de escucha del servidor HTTP.
func GetListenAddr() string {
	return getEnvironmentValue("SERVER_MANAGER_ADDR", "0.0.0.0:8090")
}

// GetStorePath devuelve la ruta del fichero de persistencia de servidores.
func GetStorePath() string {
	if v := os.Getenv("SERVER_MANAGER_DB"); v != "" {
		return v
	}
	return filepath.Join(ProgramSavedDir(), "servers.db")
}

func getEnvironmentValue(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ProgramSavedDir devuelve (y crea si hace falta) el directorio de datos
// de la aplicación para el usuario actual.
func ProgramSavedDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	dir := filepath.Join(base, appDirName)
	os.MkdirAll(dir, 0o755)
	return dir
}

// LogsDir devuelve el directorio de exportación de logs.
func LogsDir() string {
	return filepath.Join(ProgramSavedDir(), "Logs")
}

// Settings son las preferencias persistidas de la aplicación.
type Settings struct {
	Theme string `json:"theme"`
}

func settingsPath() string {
	return filepath.Join(ProgramSavedDir(), "settings.json")
}

// LoadSettings carga las preferencias; cualquier fallo devuelve los
// valores por defecto.
func LoadSettings() Settings {
	settings := Settings{Theme: "dark"}
	data, err := os.ReadFile(settingsPath())
	if err != nil {
		return settings
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{Theme: "dark"}
	}
	return settings
}

// SaveSettings persiste las preferencias. Es best-effort: un fallo de
// escritura no es fatal para la aplicación.
func SaveSettings(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(), data, 0o644)
}
