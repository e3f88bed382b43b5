package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the client.
const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSend        = "SEND"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdDisconnect  = "DISCONNECT"
	cmdMessage     = "MESSAGE"
	cmdReceipt     = "RECEIPT"
	cmdError       = "ERROR"
)

var ErrMalformedFrame = errors.New("malformed frame")

type headerField struct {
	name, value string
}

// Header keeps insertion order; the first occurrence of a name wins, as
// STOMP 1.2 requires.
type Header []headerField

func (h *Header) Add(name, value string) {
	*h = append(*h, headerField{name, value})
}

func (h Header) Get(name string) string {
	for _, f := range h {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

// Frame is one STOMP frame. A nil *Frame from ParseFrame is a heartbeat.
type Frame struct {
	Command string
	Header  Header
	Body    []byte
}

var (
	headerEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

// escapes reports whether header values are escaped for cmd; CONNECT and
// CONNECTED are exempt.
func escapes(cmd string) bool {
	return cmd != cmdConnect && cmd != cmdConnected
}

func (f *Frame) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(f.Command)
	b.WriteByte('\n')

	esc := escapes(f.Command)
	for _, h := range f.Header {
		name, value := h.name, h.value
		if esc {
			name, value = headerEscaper.Replace(name), headerEscaper.Replace(value)
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	if len(f.Body) > 0 && f.Header.Get("content-length") == "" {
		fmt.Fprintf(&b, "content-length:%d\n", len(f.Body))
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// ParseFrame decodes a single frame. Data that holds only end-of-line
// bytes is a heartbeat and yields a nil frame.
func ParseFrame(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, nil
	}

	headEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headEnd < 0 || crlf < headEnd) {
		headEnd, sepLen = crlf, 4
	}
	if headEnd < 0 {
		return nil, fmt.Errorf("%w: no header terminator", ErrMalformedFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headEnd]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0]}
	if f.Command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrMalformedFrame)
	}

	esc := escapes(f.Command)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		if esc {
			name, value = headerUnescaper.Replace(name), headerUnescaper.Replace(value)
		}
		f.Header.Add(name, value)
	}

	body := data[headEnd+sepLen:]
	if cl := f.Header.Get("content-length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		body = body[:n]
	} else if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	f.Body = append([]byte(nil), body...)
	return f, nil
}

// parseHeartbeat parses a "cx,cy" heart-beat header value in milliseconds.
func parseHeartbeat(v string) (int, int) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || x < 0 || y < 0 {
		return 0, 0
	}
	return x, y
}
