//go:build !linux
// +build !linux

package sameuser

import "net"

// CanAccept returns true when the connection can be accepted. The same-user
// check is only implemented on linux, everywhere else local connections are
// always accepted.
func CanAccept(listenAddr, localAddr, remoteAddr net.Addr) bool {
	return true
}
