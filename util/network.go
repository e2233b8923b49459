package util

import (
	"fmt"
	"net"
	"strconv"
)

// ResolveTCPAddr resolves host and port into a TCP endpoint.  With
// noDNS only literal IP addresses are accepted.
func ResolveTCPAddr(host string, port uint16, noDNS bool) (*net.TCPAddr, error) {
	if noDNS && net.ParseIP(host) == nil {
		return nil, fmt.Errorf("cannot parse %q as an IP address (DNS disabled)", host)
	}
	return net.ResolveTCPAddr("tcp", FormatAddr(host, int(port)))
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
