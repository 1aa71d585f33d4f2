package ports

import "time"

// PublicIPUnknown es el valor centinela cuando la IP pública no se pudo
// resolver. La resolución pública nunca bloquea ni falla un arranque.
const PublicIPUnknown = "Unknown"

// NetworkInfo resuelve las direcciones del host.
type NetworkInfo interface {
	// PrivateIP devuelve la IPv4 no-loopback del host, o la loopback si
	// no hay otra.
	PrivateIP() string

	// PublicIP consulta un servicio externo de eco de IP con el timeout
	// dado. Devuelve PublicIPUnknown ante cualquier fallo.
	PublicIP(timeout time.Duration) string
}

// PortProbe comprueba la disponibilidad de un puerto local. El resultado
// es solo orientativo: un puerto libre puede ocuparse microsegundos
// después.
type PortProbe interface {
	IsPortBusy(port int) bool
}
