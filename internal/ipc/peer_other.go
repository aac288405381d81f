//go:build !linux

package ipc

import "net"

func peerUID(net.Conn) (uint32, error) {
	return 0, errPeerUnsupported
}
