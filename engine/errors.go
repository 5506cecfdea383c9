package engine

import "errors"

var (
	// ErrInvalidFrame indicates a transport frame could not be interpreted
	// as a valid Engine.IO frame.
	ErrInvalidFrame = errors.New("engine: invalid frame")
	// ErrHandshakeFailed indicates the first frame of the handshake was not
	// an OPEN frame.
	ErrHandshakeFailed = errors.New("engine: handshake failed")
	// ErrClosed is returned by Send when the engine has no live transport
	// (not connected, or closed). Close itself always returns nil.
	ErrClosed = errors.New("engine: connection closed")
	// ErrNoSID indicates the server's OPEN frame omitted the session id.
	ErrNoSID = errors.New("engine: handshake missing sid")
)

// ErrorKind classifies a failure surfaced to the fail listener (spec.md §7).
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorTimeout
	ErrorNetworkFailure
	ErrorProtocolError
	ErrorAuthenticationFailed
	ErrorTransportOpenFailed
	ErrorSSL
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTimeout:
		return "timeout"
	case ErrorNetworkFailure:
		return "network_failure"
	case ErrorProtocolError:
		return "protocol_error"
	case ErrorAuthenticationFailed:
		return "authentication_failed"
	case ErrorTransportOpenFailed:
		return "transport_open_failed"
	case ErrorSSL:
		return "ssl_error"
	default:
		return "unknown"
	}
}

// DisconnectReason classifies why the engine reached the disconnected state
// for good (no further reconnection), per spec.md §4.D.
type DisconnectReason int

const (
	ReasonClientDisconnect DisconnectReason = iota
	ReasonServerDisconnect
	ReasonTransportError
	ReasonPingTimeout
	ReasonMaxReconnectAttempts
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonClientDisconnect:
		return "client_disconnect"
	case ReasonServerDisconnect:
		return "server_disconnect"
	case ReasonTransportError:
		return "transport_error"
	case ReasonPingTimeout:
		return "ping_timeout"
	case ReasonMaxReconnectAttempts:
		return "max_reconnect_attempts"
	default:
		return "unknown"
	}
}
