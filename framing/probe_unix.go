//go:build unix

package framing

import (
	"crypto/tls"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// PeerAlive is a non-blocking liveness probe. It peeks the socket without
// consuming data and reports false once the peer has half-closed (a pending
// zero-byte read) or the socket is otherwise unusable.
//
// For TLS connections the probe inspects the underlying TCP socket; a raw
// peek never disturbs the record layer because no bytes are consumed.
func PeerAlive(conn net.Conn) bool {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return true
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}
	alive := true
	ctrlErr := raw.Control(func(fd uintptr) {
		var buf [1]byte
		n, _, err := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case n > 0:
			alive = true
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			// No data pending; the connection is idle but open.
			alive = true
		case n == 0 && err == nil:
			// Zero-byte read with no error: orderly shutdown from the peer.
			alive = false
		default:
			alive = false
		}
	})
	if ctrlErr != nil {
		return false
	}
	return alive
}
