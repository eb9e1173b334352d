package http

import "strings"

// Cookie is a cookie and its attributes, set on a response via SetCookie.
// Cookies parsed from a request's Cookie header are CookiePair values.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// String renders a response-side Set-Cookie header value.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Path != "" {
		b.WriteString("; " + CookieAttrPath + "=" + c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; " + CookieAttrDomain + "=" + c.Domain)
	}
	if c.MaxAge != 0 {
		b.WriteString("; " + CookieAttrMaxAge + "=" + itoa(c.MaxAge))
	}
	if c.Secure {
		b.WriteString("; " + CookieAttrSecure)
	}
	if c.HTTPOnly {
		b.WriteString("; " + CookieAttrHTTPOnly)
	}
	if c.SameSite != "" {
		b.WriteString("; " + CookieAttrSameSite + "=" + c.SameSite)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// CookiePair is a single name/value pair parsed from a request's Cookie
// header, in the order it appeared on the wire.
type CookiePair struct {
	Name  string
	Value string
}

// cookieParseState is the mini state machine parseCookieHeader drives
// across a raw "name=value; name2=value2" Cookie header, per RFC 6265
// section 4.2.1's grammar: name and value are each a run of non-separator
// characters, pairs are split on ';', name/value on the first '='.
type cookieParseState int

const (
	cookieStart cookieParseState = iota
	cookieInName
	cookieEqSeen
	cookieInValue
	cookieSepSeen
)

// parseCookieHeader splits a Cookie header into an ordered list of
// name/value pairs, preserving the order they appeared in raw. It never
// returns an error: malformed segments (a bare name with no '=', doubled
// separators, trailing whitespace) are skipped rather than rejected, since
// RFC 6265 recommends lenient parsing of an already-established header.
func parseCookieHeader(raw string) []CookiePair {
	var out []CookiePair
	state := cookieStart
	nameStart, valueStart := 0, 0
	var name string

	flush := func(end int) {
		if name != "" {
			out = append(out, CookiePair{Name: name, Value: strings.TrimSpace(raw[valueStart:end])})
		}
		name = ""
	}

	for i := 0; i <= len(raw); i++ {
		var c byte
		atEnd := i == len(raw)
		if !atEnd {
			c = raw[i]
		}
		switch state {
		case cookieStart, cookieSepSeen:
			if atEnd {
				continue
			}
			if c == ' ' || c == ';' {
				continue
			}
			nameStart = i
			state = cookieInName
		case cookieInName:
			if atEnd {
				// trailing name with no value: ignored like the ';' case below
				continue
			}
			if c == '=' {
				name = strings.TrimSpace(raw[nameStart:i])
				state = cookieEqSeen
			} else if c == ';' {
				// name with no value: ignored per the lenient policy above
				name = ""
				state = cookieSepSeen
			}
		case cookieEqSeen:
			valueStart = i
			state = cookieInValue
			if atEnd {
				flush(i)
			} else if c == ';' {
				flush(i)
				state = cookieSepSeen
			}
		case cookieInValue:
			if atEnd {
				flush(i)
				continue
			}
			if c == ';' {
				flush(i)
				state = cookieSepSeen
			}
		}
	}
	return out
}
