package http_handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dev.rubentxu.devops-platform/server-manager/internal/application/services"
	"dev.rubentxu.devops-platform/server-manager/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// SetupRoutes registra los endpoints REST del supervisor en el mux.
func SetupRoutes(mux *http.ServeMux, manager *services.ServerManager, logsDir string) {
	// Listar todos los servidores
	mux.HandleFunc("GET /api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Snapshots())
	})

	// Registrar un servidor nuevo
	mux.HandleFunc("POST /api/servers", func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.ServerConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if cfg.Name == "" || cfg.EnginePath == "" {
			writeError(w, http.StatusBadRequest, "name and engine_path are required")
			return
		}
		id, err := manager.Add(cfg)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"server_id": id})
	})

	// Consultar un servidor
	mux.HandleFunc("GET /api/servers/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := manager.Snapshot(r.PathValue("id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	// Arrancar; ?confirm_port_in_use=true autoriza un puerto ocupado
	mux.HandleFunc("POST /api/servers/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		confirm := r.URL.Query().Get("confirm_port_in_use") == "true"
		err := manager.Start(r.PathValue("id"), func(port int) bool { return confirm })
		if errors.Is(err, services.ErrStartDeclined) {
			// Puerta de confirmación, no un fallo: 409 con el detalle.
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
	})

	// Detener
	mux.HandleFunc("POST /api/servers/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Stop(r.PathValue("id"), nil); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
	})

	// Borrar (si está vivo, detiene y borra al completar)
	mux.HandleFunc("DELETE /api/servers/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Delete(r.PathValue("id")); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "deleted"})
	})

	// Log retenido
	mux.HandleFunc("GET /api/servers/{id}/log", func(w http.ResponseWriter, r *http.Request) {
		lines, err := manager.Logs(r.PathValue("id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, lines)
	})

	// Exportar el log a un fichero bajo el directorio de logs
	mux.HandleFunc("POST /api/servers/{id}/log/export", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		snap, err := manager.Snapshot(id)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		name := fmt.Sprintf("%s_%s.log",
			strings.ReplaceAll(snap.Config.Name, " ", "_"),
			time.Now().Format("20060102_150405"))
		path := filepath.Join(logsDir, name)
		if err := manager.ExportLog(id, path); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrServerNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExecutableNotFound), errors.Is(err, services.ErrInvalidPort):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
