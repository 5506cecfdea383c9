package engine

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultPath is the server resource path used when Options.Path is unset.
const DefaultPath = "/socket.io/"

// BuildURL composes the Engine.IO handshake/reconnect URL per spec.md §6:
//
//	ws://host[:port]/socket.io/?EIO=4&transport=websocket[&sid=…]&t=<epoch>[&userkey=val…]
//
// IPv6 literal hosts are bracketed by net/url automatically when present in
// rawurl. User query values are percent-encoded per percentEncode.
func BuildURL(rawurl, path, sid string, query map[string]string, nowUnix int64, forceTLS bool) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if forceTLS && u.Scheme == "ws" {
		u.Scheme = "wss"
	}
	if path == "" {
		path = DefaultPath
	}
	u.Path = path

	var b strings.Builder
	b.WriteString(queryEIO)
	b.WriteByte('=')
	b.WriteString(Version)
	b.WriteByte('&')
	b.WriteString(queryTransport)
	b.WriteString("=websocket")
	if sid != "" {
		b.WriteByte('&')
		b.WriteString(querySession)
		b.WriteByte('=')
		b.WriteString(percentEncode(sid))
	}
	b.WriteByte('&')
	b.WriteString(queryTimestamp)
	b.WriteByte('=')
	fmt.Fprintf(&b, "%d", nowUnix)

	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte('&')
			b.WriteString(percentEncode(k))
			b.WriteByte('=')
			b.WriteString(percentEncode(query[k]))
		}
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

// percentEncode encodes every byte except [A-Za-z0-9] as %HH (uppercase
// hex), per spec.md §6. Written against the spec's exact grammar rather
// than reused from net/url.QueryEscape, whose table leaves '-', '_', '.',
// '~' unescaped and escapes space as '+' — neither matches the "all but
// alphanumeric" rule the wire format requires.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
