// Package server implements the chat server: the per-connection session
// state machine, the broadcast router shared by all sessions, and the TCP and
// WebSocket transports that feed it.
//
// A connection starts awaiting a username. Once a LogInUsername request is
// accepted the session registers its mailbox with the Router and announces
// itself; from then on it relays valid SendMessage requests to every other
// session and writes whatever arrives in its mailbox back to the peer. When the
// peer goes away the session deregisters and announces the disconnection.
package server
