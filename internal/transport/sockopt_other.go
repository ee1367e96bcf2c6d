//go:build !unix

package transport

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error { return nil }
