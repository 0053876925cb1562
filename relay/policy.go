// Package relay decides which mail may be forwarded to remote domains and
// moves accepted mail through the spool.
package relay

import "net"

// Rules determines whether a message for a destination address may be
// relayed. Implementations must be stateless: the decision is re-evaluated
// for every recipient of every connection.
type Rules interface {
	WillRelay(destination string, peer net.Addr, authed bool) bool
}

// LocalOriginRules is the default rule set: relay for authenticated senders
// and for connections arriving over a unix socket or from the IPv4 loopback
// host.
type LocalOriginRules struct{}

// WillRelay implements Rules.
func (LocalOriginRules) WillRelay(destination string, peer net.Addr, authed bool) bool {
	if authed {
		return true
	}
	switch addr := peer.(type) {
	case *net.UnixAddr:
		return true
	case *net.TCPAddr:
		return addr.IP.String() == "127.0.0.1"
	case nil:
		return false
	}
	host, _, err := net.SplitHostPort(peer.String())
	return err == nil && host == "127.0.0.1"
}
