package engine

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// bindListen creates, binds, and listens on an IPv4 TCP socket, returning
// its file descriptor. This happens once at startup via plain blocking
// syscalls — only the per-connection accept/recv/send/close traffic runs
// through io_uring.
func bindListen(addr string, backlog int) (int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, fmt.Errorf("engine: parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, fmt.Errorf("engine: parse listen port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return -1, fmt.Errorf("engine: listen address must be IPv4, got %q", addr)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("engine: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("engine: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("engine: bind: %w", err)
	}
	if backlog <= 0 {
		backlog = 32
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("engine: listen: %w", err)
	}
	return fd, nil
}

// sockaddrToHost converts a kernel-filled accept address (network byte
// order throughout, per the sockaddr_in ABI) into host-byte-order values,
// matching session.Row's documented field convention.
func sockaddrToHost(addr unix.RawSockaddrInet4) (ip uint32, port uint16) {
	ip = binary.BigEndian.Uint32(addr.Addr[:])
	portBytes := (*[2]byte)(unsafe.Pointer(&addr.Port))
	port = binary.BigEndian.Uint16(portBytes[:])
	return ip, port
}
