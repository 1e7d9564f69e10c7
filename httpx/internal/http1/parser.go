package http1

import (
	"bytes"
	"strconv"
	"strings"

	"dqx0.com/go/evhttp/internal/obs"
)

// DefaultMaxLineBytes bounds a single status or header line.
const DefaultMaxLineBytes = 8 << 10

// Phase is the position of a ResponseParser within one response.
type Phase int

const (
	PhaseStatusLine Phase = iota
	PhaseHeaders
	PhaseBody
)

func (p Phase) String() string {
	switch p {
	case PhaseStatusLine:
		return "status-line"
	case PhaseHeaders:
		return "headers"
	case PhaseBody:
		return "body"
	default:
		return "unknown"
	}
}

// Handler receives response events in wire order. The slice passed to
// OnBody aliases the fed chunk and is only valid for the duration of the
// call.
type Handler interface {
	OnStatus(code int, reason string)
	OnHeader(name, value string)
	OnBody(p []byte)
}

// ResponseParser is a push parser for a single HTTP/1.1 response. Chunks
// may split lines anywhere; an unterminated line is carried over to the
// next Feed. It never buffers body bytes.
//
// Malformed status or header lines produce no event and parsing carries
// on with the next line. Transfer-Encoding is not decoded.
//
// A ResponseParser is not safe for concurrent use.
type ResponseParser struct {
	Handler      Handler
	MaxLineBytes int
	Logger       obs.Logger

	phase     Phase
	line      []byte // partial line carried across Feed calls
	overflow  bool   // discarding the rest of an over-long line
	length    int64  // declared Content-Length, -1 if none
	read      int64  // body bytes delivered
	discarded int64  // body bytes past the declared length
}

// NewResponseParser returns a parser ready for the first response.
func NewResponseParser(h Handler, maxLine int) *ResponseParser {
	p := &ResponseParser{Handler: h, MaxLineBytes: maxLine}
	p.Reset()
	return p
}

// Reset prepares the parser for a new response, dropping any partial line
// and body accounting left over from the previous one.
func (p *ResponseParser) Reset() {
	p.phase = PhaseStatusLine
	p.line = p.line[:0]
	p.overflow = false
	p.length = -1
	p.read = 0
	p.discarded = 0
}

// Phase reports the current parse phase.
func (p *ResponseParser) Phase() Phase { return p.phase }

// ContentLength returns the declared body length, or -1 if the response
// has not declared one (yet).
func (p *ResponseParser) ContentLength() int64 { return p.length }

// BodyRead returns the number of body bytes delivered so far.
func (p *ResponseParser) BodyRead() int64 { return p.read }

// Discarded returns the number of bytes received after the declared
// body length was satisfied.
func (p *ResponseParser) Discarded() int64 { return p.discarded }

// Complete reports whether the header block has ended and the declared
// body length has been delivered. Responses without Content-Length are
// never complete; they end when the connection closes.
func (p *ResponseParser) Complete() bool {
	return p.phase == PhaseBody && p.length >= 0 && p.read == p.length
}

// Feed consumes one chunk, emitting as many events as its content allows.
func (p *ResponseParser) Feed(data []byte) {
	off := 0
	for off < len(data) {
		if p.phase == PhaseBody {
			p.body(data[off:])
			return
		}
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			p.carry(data[off:])
			return
		}
		seg := data[off : off+i]
		off += i + 1

		if p.overflow {
			p.overflow = false
			p.dropLine()
			continue
		}
		line := seg
		if len(p.line) > 0 {
			p.line = append(p.line, seg...)
			line = p.line
		}
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) > p.maxLine() {
			p.dropLine()
			continue
		}
		p.processLine(line)
		p.line = p.line[:0]
	}
}

// carry keeps an unterminated tail for the next Feed. The extra byte of
// allowance covers a CR whose LF has not arrived yet.
func (p *ResponseParser) carry(b []byte) {
	if p.overflow {
		return
	}
	if len(p.line)+len(b) > p.maxLine()+1 {
		p.line = p.line[:0]
		p.overflow = true
		return
	}
	p.line = append(p.line, b...)
}

// dropLine discards an over-long line. A dropped status line still ends
// the status phase, like any other unusable status line.
func (p *ResponseParser) dropLine() {
	p.line = p.line[:0]
	p.logf(obs.Warn, "http1: dropped %s line longer than %d bytes", p.phase, p.maxLine())
	if p.phase == PhaseStatusLine {
		p.phase = PhaseHeaders
	}
}

func (p *ResponseParser) processLine(line []byte) {
	switch p.phase {
	case PhaseStatusLine:
		p.statusLine(line)
		p.phase = PhaseHeaders
	case PhaseHeaders:
		if len(line) == 0 {
			p.phase = PhaseBody
			return
		}
		p.headerLine(line)
	}
}

// statusLine splits "VERSION SP CODE SP REASON". The reason is everything
// after the second space and may itself contain spaces or be absent.
func (p *ResponseParser) statusLine(line []byte) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		p.logf(obs.Debug, "http1: malformed status line %q", line)
		return
	}
	rest := line[sp1+1:]
	codeBytes, reason := rest, []byte(nil)
	if sp2 := bytes.IndexByte(rest, ' '); sp2 >= 0 {
		codeBytes, reason = rest[:sp2], rest[sp2+1:]
	}
	code, err := strconv.ParseUint(string(codeBytes), 10, 16)
	if err != nil {
		p.logf(obs.Debug, "http1: invalid status code %q", codeBytes)
		return
	}
	if p.Handler != nil {
		p.Handler.OnStatus(int(code), string(reason))
	}
}

func (p *ResponseParser) headerLine(line []byte) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		p.logf(obs.Debug, "http1: skipped malformed header line %q", line)
		return
	}
	name := string(line[:colon])
	value := line[colon+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	v := string(value)
	if strings.EqualFold(name, "Content-Length") {
		// Last valid declaration wins.
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			p.length = n
		} else {
			p.logf(obs.Debug, "http1: ignored invalid Content-Length %q", v)
		}
	}
	if p.Handler != nil {
		p.Handler.OnHeader(name, v)
	}
}

func (p *ResponseParser) body(b []byte) {
	if p.length >= 0 {
		if left := p.length - p.read; int64(len(b)) > left {
			p.discarded += int64(len(b)) - left
			b = b[:left]
		}
	}
	if len(b) == 0 {
		return
	}
	p.read += int64(len(b))
	if p.Handler != nil {
		p.Handler.OnBody(b)
	}
}

func (p *ResponseParser) maxLine() int {
	if p.MaxLineBytes > 0 {
		return p.MaxLineBytes
	}
	return DefaultMaxLineBytes
}

func (p *ResponseParser) logf(level obs.Level, format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Logf(level, format, args...)
	}
}
