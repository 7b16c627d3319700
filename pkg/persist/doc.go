// Package persist stores a server's welcome snapshot durably in an
// embedded BoltDB database, so a restarted host can rebuild its
// authoritative Store at the version it last saved rather than forcing
// every client through a from-zero bootstrap.
package persist
