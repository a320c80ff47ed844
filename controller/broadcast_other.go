//go:build !unix

package controller

import "net"

// enableBroadcast is a no-op where raw socket options are unavailable; the
// platform default is relied upon.
func enableBroadcast(_ *net.UDPConn) error {
	return nil
}
