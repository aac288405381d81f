package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrForeignPeer rejects commands from a different user than the owner.
	ErrForeignPeer = errors.New("ipc peer belongs to another user")

	errPeerUnsupported = errors.New("peer credentials unsupported on this platform")
)

// authorizePeer admits only clients running as the owner's user.
// Platforms without peer credentials fall back to the socket's file permissions.
func authorizePeer(conn net.Conn) error {
	uid, err := peerUID(conn)
	if err != nil {
		if errors.Is(err, errPeerUnsupported) {
			return nil
		}
		return err
	}
	if int(uid) != os.Getuid() {
		return fmt.Errorf("%w: uid %d", ErrForeignPeer, uid)
	}
	return nil
}
