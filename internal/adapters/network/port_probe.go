package network

import (
	"fmt"
	"net"
)

// Probe implementa ports.PortProbe intentando ligar el puerto en la
// dirección comodín, en TCP y en UDP. Es una pista, nunca una garantía:
// el puerto puede ocuparse justo después de liberarlo aquí.
type Probe struct{}

func NewProbe() Probe {
	return Probe{}
}

func (Probe) IsPortBusy(port int) bool {
	addr := fmt.Sprintf(":%d", port)

	busyTCP := false
	if l, err := net.Listen("tcp", addr); err != nil {
		busyTCP = true
	} else {
		l.Close()
	}

	busyUDP := false
	if c, err := net.ListenPacket("udp", addr); err != nil {
		busyUDP = true
	} else {
		c.Close()
	}

	return busyTCP || busyUDP
}
