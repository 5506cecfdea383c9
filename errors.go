package socketio

import "errors"

// ErrSocketClosed is returned by emit paths once a namespace Socket has
// been torn down (explicit Close, server disconnect, or a terminal engine
// close cascading down), per spec.md §3's "back-reference... valid only
// while registered."
var ErrSocketClosed = errors.New("socketio: socket closed")

// ErrAlreadyConnecting is a sentinel describing the idempotent-connect
// no-op. No function in this package returns it: Client.Connect simply
// returns nil when a connection is already connecting, connected, or
// reconnecting (spec.md §4.G).
var ErrAlreadyConnecting = errors.New("socketio: already connecting")
