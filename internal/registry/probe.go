package registry

import (
	"net"
	"strconv"
	"time"
)

// PortResponding attempts a TCP connection to the port on loopback. Any
// failure is a negative probe result, never an error: a dev server that is
// not listening yet is an answer, not a fault.
func PortResponding(port int, timeout time.Duration) bool {
	if port <= 0 || port > 65535 {
		return false
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
