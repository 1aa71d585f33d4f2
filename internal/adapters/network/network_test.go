package network

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

func TestIsPortBusyOnFreePort(t *testing.T) {
	// Reservar un puerto y liberarlo: debería quedar ligable.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	if NewProbe().IsPortBusy(port) {
		t.Errorf("IsPortBusy(%d) = true on a freed port", port)
	}
}

func TestIsPortBusyOnOccupiedTCPPort(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	if !NewProbe().IsPortBusy(port) {
		t.Errorf("IsPortBusy(%d) = false with a live TCP listener", port)
	}
}

func TestIsPortBusyOnOccupiedUDPPort(t *testing.T) {
	c, err := net.ListenPacket("udp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	port := c.LocalAddr().(*net.UDPAddr).Port

	if !NewProbe().IsPortBusy(port) {
		t.Errorf("IsPortBusy(%d) = false with a live UDP socket", port)
	}
}

func TestPrivateIPReturnsParseableAddress(t *testing.T) {
	ip := NewResolver().PrivateIP()
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		t.Errorf("PrivateIP() = %q, not a valid IPv4 address", ip)
	}
}

func TestPublicIP(t *testing.T) {
	t.Run("respuesta correcta", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(" 203.0.113.7\n"))
		}))
		defer srv.Close()

		r := &Resolver{EchoURL: srv.URL}
		if got := r.PublicIP(time.Second); got != "203.0.113.7" {
			t.Errorf("PublicIP = %q, want trimmed ip", got)
		}
	})

	t.Run("respuesta no-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		r := &Resolver{EchoURL: srv.URL}
		if got := r.PublicIP(time.Second); got != ports.PublicIPUnknown {
			t.Errorf("PublicIP on 503 = %q, want %q", got, ports.PublicIPUnknown)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		r := &Resolver{EchoURL: srv.URL}
		if got := r.PublicIP(50 * time.Millisecond); got != ports.PublicIPUnknown {
			t.Errorf("PublicIP on timeout = %q, want %q", got, ports.PublicIPUnknown)
		}
	})

	t.Run("red inalcanzable", func(t *testing.T) {
		r := &Resolver{EchoURL: "http://127.0.0.1:1/ip"}
		if got := r.PublicIP(200 * time.Millisecond); got != ports.PublicIPUnknown {
			t.Errorf("PublicIP on refused connection = %q, want %q", got, ports.PublicIPUnknown)
		}
	})
}
