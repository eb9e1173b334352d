package http

import (
	"strings"
	"time"
)

// Method constants for HTTP requests.
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodPatch   = "PATCH"
)

// Common HTTP status codes.
const (
	StatusContinue            = 100
	StatusSwitchingProtocols  = 101
	StatusOK                  = 200
	StatusCreated             = 201
	StatusAccepted            = 202
	StatusNoContent           = 204
	StatusMovedPermanently    = 301
	StatusFound               = 302
	StatusSeeOther            = 303
	StatusNotModified         = 304
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTimeout      = 408
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
	StatusBadGateway          = 502
	StatusServiceUnavailable  = 503
)

// Protocol versions.
const (
	ProtocolHTTP10 = "HTTP/1.0"
	ProtocolHTTP11 = "HTTP/1.1"
	ProtocolHTTP2  = "HTTP/2"
)

// Default timeout values.
const (
	DefaultClientTimeout     = 30 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 0 // No timeout by default
	DefaultIdleTimeout       = 90 * time.Second
)

// Header names (canonicalized).
const (
	HeaderAccept             = "Accept"
	HeaderAcceptEncoding     = "Accept-Encoding"
	HeaderAllow              = "Allow"
	HeaderAuthorization      = "Authorization"
	HeaderCacheControl       = "Cache-Control"
	HeaderConnection         = "Connection"
	HeaderContentEncoding    = "Content-Encoding"
	HeaderContentLength      = "Content-Length"
	HeaderContentType        = "Content-Type"
	HeaderCookie             = "Cookie"
	HeaderDate               = "Date"
	HeaderHost               = "Host"
	HeaderIfModifiedSince    = "If-Modified-Since"
	HeaderIfNoneMatch        = "If-None-Match"
	HeaderKeepAlive          = "Keep-Alive"
	HeaderLocation           = "Location"
	HeaderProxyAuthenticate  = "Proxy-Authenticate"
	HeaderProxyAuthorization = "Proxy-Authorization"
	HeaderRange              = "Range"
	HeaderReferer            = "Referer"
	HeaderServer             = "Server"
	HeaderSetCookie          = "Set-Cookie"
	HeaderTransferEncoding   = "Transfer-Encoding"
	HeaderUpgrade            = "Upgrade"
	HeaderUserAgent          = "User-Agent"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderXForwardedFor      = "X-Forwarded-For"
	HeaderXRealIP            = "X-Real-IP"
)

// Transfer encoding constants. Chunked transfer encoding is not decoded by
// this package (see the cache parser's body rules); the constant remains
// for callers inspecting the raw header.
const (
	TransferEncodingChunked = "chunked"
	TransferEncodingGzip    = "gzip"
	TransferEncodingDeflate = "deflate"
	TransferEncodingBr      = "br"
)

// mimeTypes maps a lowercased file extension (including the dot) to its
// Content-Type value, used by file-serving handlers and MakeOkResponse's
// callers.
var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
	".woff": "font/woff",
	".woff2": "font/woff2",
}

// MimeType returns the Content-Type associated with ext (a dotted
// extension, e.g. ".json"), or "application/octet-stream" if unknown.
func MimeType(ext string) string {
	if ct, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Cookie attribute names, per RFC 6265, used by SetCookie.
const (
	CookieAttrExpires  = "Expires"
	CookieAttrMaxAge   = "Max-Age"
	CookieAttrDomain   = "Domain"
	CookieAttrPath     = "Path"
	CookieAttrSecure   = "Secure"
	CookieAttrHTTPOnly = "HttpOnly"
	CookieAttrSameSite = "SameSite"
)

// Connection options.
const (
	ConnectionKeepAlive = "keep-alive"
	ConnectionClose     = "close"
	ConnectionUpgrade   = "Upgrade"
)

// headerField is one (name, value) pair inside a Header, in wire order.
type headerField struct {
	Name  string
	Value string
}

// Header is an ordered list of (name, value) pairs. Unlike a map, the
// order fields were Set/Added in is preserved across Get/Clone/Encode, so
// re-encoding a parsed message reproduces the header order it arrived in.
type Header []headerField

// Get returns the first value for the given key, case-insensitive.
// Returns empty string if key not found.
func (h Header) Get(key string) string {
	canonical := CanonicalHeaderKey(key)
	for _, f := range h {
		if f.Name == canonical {
			return f.Value
		}
	}
	return ""
}

// Set replaces any existing values for key with value, keeping the
// position of the first existing occurrence (or appending if key is new).
func (h *Header) Set(key, value string) {
	canonical := CanonicalHeaderKey(key)
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if f.Name == canonical {
			if !replaced {
				out = append(out, headerField{canonical, value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, headerField{canonical, value})
	}
	*h = out
}

// Add appends a new value for key without disturbing any existing ones.
func (h *Header) Add(key, value string) {
	*h = append(*h, headerField{CanonicalHeaderKey(key), value})
}

// Del removes all values for the given key.
func (h *Header) Del(key string) {
	canonical := CanonicalHeaderKey(key)
	out := (*h)[:0]
	for _, f := range *h {
		if f.Name != canonical {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns an independent copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	clone := make(Header, len(h))
	copy(clone, h)
	return clone
}

// CanonicalHeaderKey returns the canonical format of the header key.
// The first character and any character following a hyphen are uppercased;
// the rest are lowercased. Examples: "content-type" -> "Content-Type".
func CanonicalHeaderKey(s string) string {
	if s == "" {
		return s
	}
	result := make([]byte, len(s))
	upperNext := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if upperNext && c >= 'a' && c <= 'z' {
			result[i] = c - 'a' + 'A'
		} else if !upperNext && c >= 'A' && c <= 'Z' {
			result[i] = c - 'A' + 'a'
		} else {
			result[i] = c
		}
		upperNext = (c == '-')
	}
	return string(result)
}

// ProtocolError represents an HTTP protocol error.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// isTokenChar returns true if the byte is a valid token character.
func isTokenChar(c byte) bool {
	return c < 0x80 && tokenChars[c]
}

// tokenChars is a lookup table for valid HTTP token characters.
var tokenChars = [256]bool{
	'!': true, '#': true, '$': true, '%': true, '&': true,
	'\'': true, '*': true, '+': true, '-': true, '.': true,
	'^': true, '_': true, '`': true, '|': true, '~': true,
	'0': true, '1': true, '2': true, '3': true, '4': true,
	'5': true, '6': true, '7': true, '8': true, '9': true,
	'A': true, 'B': true, 'C': true, 'D': true, 'E': true,
	'F': true, 'G': true, 'H': true, 'I': true, 'J': true,
	'K': true, 'L': true, 'M': true, 'N': true, 'O': true,
	'P': true, 'Q': true, 'R': true, 'S': true, 'T': true,
	'U': true, 'V': true, 'W': true, 'X': true, 'Y': true,
	'Z': true, 'a': true, 'b': true, 'c': true, 'd': true,
	'e': true, 'f': true, 'g': true, 'h': true, 'i': true,
	'j': true, 'k': true, 'l': true, 'm': true, 'n': true,
	'o': true, 'p': true, 'q': true, 'r': true, 's': true,
	't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,
}

// isValidMethod checks if the method is a valid HTTP method.
func isValidMethod(method string) bool {
	if method == "" {
		return false
	}
	for _, c := range []byte(method) {
		if !isTokenChar(c) {
			return false
		}
	}
	return true
}
