package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const addressScheme = "tcp://"

var ErrBadAddress = errors.New("transport: bad address")

// Address locates a station endpoint.
type Address struct {
	Host string
	Port int
}

func NewAddress(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// ParseAddress accepts tcp://host:port endpoints and nothing else.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, addressScheme) {
		return Address{}, fmt.Errorf("%w: %q is not a tcp:// endpoint", ErrBadAddress, raw)
	}
	host, portRaw, err := net.SplitHostPort(strings.TrimPrefix(raw, addressScheme))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrBadAddress, raw, err)
	}
	if host == "" {
		return Address{}, fmt.Errorf("%w: %q missing host", ErrBadAddress, raw)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q invalid port", ErrBadAddress, raw)
	}
	addr := Address{Host: host, Port: port}
	if err := addr.Validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (a Address) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("%w: missing host", ErrBadAddress)
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrBadAddress, a.Port)
	}
	return nil
}

func (a Address) String() string {
	return addressScheme + a.HostPort()
}

// HostPort renders the host:port form dialers expect.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
