package ami

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field is a single key/value pair of an AMI message, in wire order.
type Field struct {
	Key   string
	Value string
}

// Message is an ordered sequence of key/value fields, the in-memory
// representation of one AMI request, response, or event. Field order is
// preserved verbatim across round-trips; key lookup is case-insensitive,
// serialization preserves the original case.
type Message struct {
	Fields    []Field
	CreatedAt time.Time
}

// NewMessage builds a Message from the given fields, auto-assigning an
// ActionID if the caller didn't supply one.
func NewMessage(fields ...Field) Message {
	m := Message{
		Fields:    append([]Field(nil), fields...),
		CreatedAt: time.Now(),
	}
	if _, ok := m.Get("ActionID"); !ok {
		m.Set("ActionID", uuid.NewString())
	}
	return m
}

// Get returns the value of the first field matching key, case-insensitively.
func (m Message) Get(key string) (string, bool) {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the first field matching key, case-insensitively, or
// appends a new field if none match.
func (m *Message) Set(key, value string) {
	for i := range m.Fields {
		if strings.EqualFold(m.Fields[i].Key, key) {
			m.Fields[i].Value = value
			return
		}
	}
	m.Fields = append(m.Fields, Field{Key: key, Value: value})
}

// ActionID returns the message's ActionID field, if present.
func (m Message) ActionID() (string, bool) {
	return m.Get("ActionID")
}

// FirstKey returns the key of the message's first field, the one used by
// the correlation rule to tell a Response from an Event.
func (m Message) FirstKey() (string, bool) {
	if len(m.Fields) == 0 {
		return "", false
	}
	return m.Fields[0].Key, true
}

// FromBytes parses a single wire message: a run of "Key: Value\r\n" lines
// terminated by a bare "\r\n". The terminator must be included in b.
func FromBytes(b []byte) (Message, error) {
	m := Message{CreatedAt: time.Now()}

	lines := splitLines(b)
	terminated := false
	for i, line := range lines {
		if len(line) == 0 {
			terminated = true
			break
		}

		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return Message{}, &MalformedError{Reason: fmt.Sprintf("malformed field on line %d", i+1)}
		}

		key := string(line[:idx])
		value := line[idx+1:]
		value = bytes.TrimPrefix(value, []byte(" "))
		m.Fields = append(m.Fields, Field{Key: key, Value: string(value)})
	}

	if !terminated {
		return Message{}, &MalformedError{Reason: "unterminated message"}
	}

	return m, nil
}

// splitLines splits b on CRLF boundaries, stripping the CRLF from each
// returned line. A trailing empty line (the message terminator) is
// preserved as an empty slice.
func splitLines(b []byte) [][]byte {
	var lines [][]byte
	for len(b) > 0 {
		idx := bytes.Index(b, []byte("\r\n"))
		if idx < 0 {
			lines = append(lines, b)
			break
		}
		lines = append(lines, b[:idx])
		b = b[idx+2:]
	}
	return lines
}

// ToBytes serializes the message back to wire form: each field as
// "Key: Value\r\n", followed by a trailing "\r\n".
func (m Message) ToBytes() []byte {
	var buf bytes.Buffer
	for _, f := range m.Fields {
		buf.WriteString(f.Key)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// String renders the message for logging; it is not the wire format.
func (m Message) String() string {
	var sb strings.Builder
	for i, f := range m.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Key)
		sb.WriteString("=")
		sb.WriteString(f.Value)
	}
	return sb.String()
}
