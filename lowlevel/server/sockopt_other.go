//go:build !unix

package server

import "syscall"

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
