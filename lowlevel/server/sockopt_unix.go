//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket sets SO_REUSEADDR so a restarted server can rebind while old
// connections linger in TIME_WAIT.
func controlSocket(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
