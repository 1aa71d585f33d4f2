package network

import (
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

const defaultEchoURL = "https://api.ipify.org"

// Resolver implementa ports.NetworkInfo.
type Resolver struct {
	// EchoURL es el servicio externo de eco de IP pública.
	EchoURL string
}

func NewResolver() *Resolver {
	return &Resolver{EchoURL: defaultEchoURL}
}

// PrivateIP resuelve la IPv4 no-loopback del host vía el propio hostname.
// Si nada resuelve, devuelve la loopback.
func (r *Resolver) PrivateIP() string {
	hostname, err := os.Hostname()
	if err == nil {
		if addrs, err := net.LookupIP(hostname); err == nil {
			for _, addr := range addrs {
				if ip4 := addr.To4(); ip4 != nil && !ip4.IsLoopback() {
					return ip4.String()
				}
			}
		}
	}
	return "127.0.0.1"
}

// PublicIP hace una única consulta HTTP con timeout corto. Cualquier
// fallo (timeout, red, respuesta no-2xx) devuelve el centinela: la
// resolución pública jamás bloquea ni aborta un arranque.
func (r *Resolver) PublicIP(timeout time.Duration) string {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(r.EchoURL)
	if err != nil {
		return ports.PublicIPUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.PublicIPUnknown
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return ports.PublicIPUnknown
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return ports.PublicIPUnknown
	}
	return ip
}
