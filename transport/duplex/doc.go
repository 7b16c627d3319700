// Package duplex is a reference transport for the sync engines over any
// net.Conn: it frames the five wire messages with pkg/wire, fans server
// broadcasts out to every connected client, and drives a client engine
// from a connection's read loop.
//
// The engines themselves never import this package (they are sans-I/O);
// hosts with their own transport - WebSockets, QUIC, a message bus - can
// ignore it entirely and speak pkg/wire directly.
package duplex
