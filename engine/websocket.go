package engine

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ProxyConfig describes an HTTP proxy with optional basic auth, applied to
// the websocket dial per spec.md §6's proxy.{uri,user,password} option.
type ProxyConfig struct {
	URI      string
	Username string
	Password string
}

// WebsocketDialer is the sole transport Dialer this client implements: it
// opens a single WebSocket connection to a Socket.IO server, grounded on
// the teacher's transport_ws.go/engine/websocket.go wsTransport, narrowed
// from that file's NextWriter/NextReader streaming API (needed there to
// support both polling and websocket with a shared Conn abstraction) to a
// plain WriteMessage/ReadMessage pair, since long polling is excluded
// (spec.md §1 Non-goals) and every frame here fits in memory anyway.
type WebsocketDialer struct {
	TLSClientConfig  *tls.Config
	Proxy            *ProxyConfig
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(rawurl string, header http.Header) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.handshakeTimeout(),
		TLSClientConfig:  d.TLSClientConfig,
	}
	if d.Proxy != nil && d.Proxy.URI != "" {
		proxyURL, err := url.Parse(d.Proxy.URI)
		if err != nil {
			return nil, err
		}
		if d.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(d.Proxy.Username, d.Proxy.Password)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}
	conn, _, err := dialer.Dial(rawurl, header)
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

func (d *WebsocketDialer) handshakeTimeout() time.Duration {
	if d.HandshakeTimeout > 0 {
		return d.HandshakeTimeout
	}
	return 10 * time.Second
}

type websocketConn struct {
	conn *websocket.Conn
}

// LocalAddr returns the local network address.
func (w *websocketConn) LocalAddr() net.Addr { return w.conn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (w *websocketConn) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

func (w *websocketConn) Close() error { return w.conn.Close() }

func (w *websocketConn) SetReadDeadline(t time.Time) error  { return w.conn.SetReadDeadline(t) }
func (w *websocketConn) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }

// WritePacket writes p as a single WebSocket frame. Text frames (p.ftype
// open/close/ping/pong/message/upgrade/noop) are prefixed with the ASCII
// frame digit per spec.md §6; binary frames carry only the attachment
// bytes with no prefix — an EIO v4/WS-only client never needs a frame-type
// byte on a binary frame, since a binary WS frame is unambiguously an
// attachment continuation (spec.md §4.B), unlike the teacher's protocol
// revision, which prefixed every frame (including binary ones) with a raw
// packet-type byte to support its polling transport's framing too.
func (w *websocketConn) WritePacket(p *Packet) error {
	if p.msgType == MessageTypeBinary {
		return w.conn.WriteMessage(websocket.BinaryMessage, p.data)
	}
	buf := make([]byte, 0, len(p.data)+1)
	buf = append(buf, byte(p.ftype)+'0')
	buf = append(buf, p.data...)
	return w.conn.WriteMessage(websocket.TextMessage, buf)
}

// ReadPacket reads the next WebSocket frame and interprets it as an
// Engine.IO frame: a text frame's first byte is the ASCII frame digit; a
// binary frame is always an attachment continuation (FrameTypeMessage)
// carrying raw bytes.
func (w *websocketConn) ReadPacket() (*Packet, error) {
	wsType, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	switch wsType {
	case websocket.TextMessage:
		if len(data) == 0 {
			return nil, ErrInvalidFrame
		}
		ftype := FrameType(data[0] - '0')
		if !ftype.valid() {
			return nil, ErrInvalidFrame
		}
		return &Packet{msgType: MessageTypeString, ftype: ftype, data: data[1:]}, nil
	case websocket.BinaryMessage:
		return &Packet{msgType: MessageTypeBinary, ftype: FrameTypeMessage, data: data}, nil
	default:
		return nil, ErrInvalidFrame
	}
}
