package verify

import (
	"net"
	"strconv"
)

// ProbePort reports whether port is occupied on the loopback interface. It
// binds a throwaway listener and closes it at once when the bind succeeds.
// Bind errors other than "address in use" are returned with occupied false.
func ProbePort(port int) (bool, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err == nil {
		_ = ln.Close()
		return false, nil
	}
	if addrInUse(err) {
		return true, nil
	}
	return false, err
}
