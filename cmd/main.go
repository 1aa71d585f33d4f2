package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dev.rubentxu.devops-platform/server-manager/config"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/engine"
	http_handlers "dev.rubentxu.devops-platform/server-manager/internal/adapters/http"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/metrics"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/network"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/runner"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/store"
	"dev.rubentxu.devops-platform/server-manager/internal/adapters/websockets"
	"dev.rubentxu.devops-platform/server-manager/internal/application/services"
	"dev.rubentxu.devops-platform/server-manager/internal/domain"
)

func main() {
	// Persistencia de configuraciones de servidores
	configStore, err := store.NewBoltDBStore[domain.ServerConfig](config.GetStorePath(), 0o600, "servers")
	if err != nil {
		log.Fatalf("Failed to open server store: %v", err)
	}
	defer configStore.Close()

	// Adaptadores del supervisor
	processRunner := runner.NewLocalProcessRunner()
	metricsCollector := metrics.NewGopsutilCollector()
	portProbe := network.NewProbe()
	netResolver := network.NewResolver()
	commandBuilder := engine.NewUnrealCommandBuilder()

	// Crear el supervisor; restaura los servidores guardados
	manager := services.NewServerManager(
		configStore,
		processRunner,
		metricsCollector,
		portProbe,
		netResolver,
		commandBuilder,
	)

	// Capa de presentación: REST + WebSocket
	mux := http.NewServeMux()
	http_handlers.SetupRoutes(mux, manager, config.LogsDir())
	wsHandler := websockets.NewWSHandler(manager)
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	bindAddr := config.GetListenAddr()
	server := &http.Server{Addr: bindAddr, Handler: mux}

	go func() {
		log.Printf("╔════════════════════════════════════════════╗")
		log.Printf("║  Server manager listening on %s    ║", bindAddr)
		log.Printf("║  REST API:  http://%s/api/servers  ║", bindAddr)
		log.Printf("║  WebSocket: ws://%s/ws             ║", bindAddr)
		log.Printf("╚════════════════════════════════════════════╝")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Apagado ordenado: detener todos los servidores antes de salir para
	// no dejar procesos huérfanos.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down, stopping all servers...")
	manager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Shutdown complete")
}
