// Package transport establishes the single socket a tawqa run talks
// over: an outbound connection, or an inbound one accepted on a
// listening socket.  What happens over the connection is the
// capability layer's job.
//
// Only IPv4 is supported.
package transport

import (
	"net"
)

// Kind is the transport protocol of a socket.
type Kind int

const (
	TCP Kind = iota
	UDP
)

func (k Kind) String() string {
	if k == UDP {
		return "udp"
	}
	return "tcp"
}

// network returns the IPv4-only network name for the net package.
func (k Kind) network() string {
	return k.String() + "4"
}

// KindOf reports the transport of addr.
func KindOf(addr net.Addr) Kind {
	if _, ok := addr.(*net.UDPAddr); ok {
		return UDP
	}
	return TCP
}

// Direction tells who initiated a connection.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}
