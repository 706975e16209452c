// Package icmpkt assembles and sends ICMPv4/ICMPv6 echo packets over a raw
// socket, with a hand-rolled RFC 1071 checksum and monotonic sequence
// counter. It backs the ICMPv6 "pingxel" transport (transport.Pingxel),
// whose wire format hides a pixel write inside the destination address
// rather than the ICMP payload.
//
// The packet-reuse and manual-checksum design is grounded directly on
// kleinesfilmroellchen/hyperflut's own src/painter/icmp.rs: the packet is a
// mutable byte buffer rewritten on every send rather than rebuilt from a
// library's immutable message value, which is why this package encodes
// bytes by hand instead of building golang.org/x/net/icmp.Message values.
// Socket creation and DSCP marking, however, do go through
// golang.org/x/net/icmp, golang.org/x/net/ipv4 and golang.org/x/net/ipv6,
// the same stack netraw's packet builder uses for its own raw sockets.
package icmpkt

import (
	"fmt"
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// HeaderSize is the size in bytes of the fixed ICMP echo header: type,
// code, checksum, identifier, sequence.
const HeaderSize = 8

// Echo type/code values for the four v4/v6 request/reply combinations.
const (
	EchoRequestV4 = 8
	EchoReplyV4   = 0
	EchoRequestV6 = 128
	EchoReplyV6   = 129
)

// Direction distinguishes an echo request from an echo reply.
type Direction int

const (
	Request Direction = iota
	Reply
)

// Family selects the IP version a Packet and Socket operate over.
type Family int

const (
	V4 Family = iota
	V6
)

// dscpLowPriority is DSCP class selector 1 (low priority), shifted into
// the TOS/traffic-class byte position shared by IPv4 and IPv6. Pixelflut
// traffic must not starve interactive traffic sharing the link.
const dscpLowPriority = 8 << 2

// Socket is a raw ICMP socket for one IP family, with low-priority DSCP
// already applied. Implementations may pool one Socket per painter rather
// than opening one per packet, trading the reference design's simplicity
// for fewer syscalls on the hot path.
type Socket struct {
	conn   *icmp.PacketConn
	family Family
}

// NewSocket opens a raw ICMP socket for family and marks it DSCP low
// priority. Opening a raw socket requires elevated privilege; a
// permission error here is fatal to the calling painter (see
// SPEC_FULL.md §7, "Configuration error").
func NewSocket(family Family) (*Socket, error) {
	network := "ip4:icmp"
	if family == V6 {
		network = "ip6:ipv6-icmp"
	}
	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return nil, fmt.Errorf("open raw icmp socket: %w", err)
	}
	if family == V4 {
		if err := conn.IPv4PacketConn().SetTOS(dscpLowPriority); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set ipv4 TOS: %w", err)
		}
	} else {
		if err := conn.IPv6PacketConn().SetTrafficClass(dscpLowPriority); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set ipv6 traffic class: %w", err)
		}
	}
	return &Socket{conn: conn, family: family}, nil
}

// Close closes the underlying raw socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Packet is a mutable ICMP echo packet. Its backing buffer is reused
// across sends: Send rewrites the checksum and sequence bytes in place
// rather than allocating a fresh packet every time.
type Packet struct {
	direction  Direction
	family     Family
	identifier uint16
	sequence   uint16
	buf        []byte // header (8 bytes) followed by payload
	payloadLen int
}

// NewPacket creates an echo packet with the given identifier, direction,
// and IP family. The sequence number starts at 0.
func NewPacket(identifier uint16, direction Direction, family Family) *Packet {
	return &Packet{
		direction:  direction,
		family:     family,
		identifier: identifier,
		buf:        make([]byte, HeaderSize),
	}
}

// SetPayload sets the packet's non-standard payload, replacing any
// previous payload.
func (p *Packet) SetPayload(payload []byte) {
	p.buf = append(p.buf[:HeaderSize], payload...)
	p.payloadLen = len(payload)
}

// Sequence returns the sequence number that will be used on the next Send.
func (p *Packet) Sequence() uint16 {
	return p.sequence
}

// echoType returns the ICMP type byte for this packet's family and
// direction.
func (p *Packet) echoType() byte {
	switch {
	case p.family == V4 && p.direction == Request:
		return EchoRequestV4
	case p.family == V4 && p.direction == Reply:
		return EchoReplyV4
	case p.family == V6 && p.direction == Request:
		return EchoRequestV6
	default:
		return EchoReplyV6
	}
}

// encode rewrites the header in place for the current sequence number and
// recomputes the checksum, returning the full packet bytes.
func (p *Packet) encode() []byte {
	p.buf[0] = p.echoType()
	p.buf[1] = 0 // code
	p.buf[2] = 0 // checksum, zeroed before computing
	p.buf[3] = 0
	p.buf[4] = byte(p.identifier >> 8)
	p.buf[5] = byte(p.identifier)
	p.buf[6] = byte(p.sequence >> 8)
	p.buf[7] = byte(p.sequence)

	sum := Checksum(p.buf)
	p.buf[2] = byte(sum >> 8)
	p.buf[3] = byte(sum)
	return p.buf
}

// Send encodes and transmits the packet to target over sock, then
// increments the sequence number (wrapping at 2^16) for the next call.
func (p *Packet) Send(sock *Socket, target net.IP) error {
	packet := p.encode()
	var addr net.Addr = &net.IPAddr{IP: target}
	if _, err := sock.conn.WriteTo(packet, addr); err != nil {
		return fmt.Errorf("send icmp echo: %w", err)
	}
	p.sequence++
	return nil
}

// Checksum computes the RFC 1071 Internet checksum over b: a 16-bit one's
// complement sum of all 16-bit words (padding a trailing odd byte with a
// zero low byte), folded until it fits in 16 bits, then inverted.
func Checksum(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 > 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
