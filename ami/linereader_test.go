package ami

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderSplitsOnCRLF(t *testing.T) {
	lr := NewLineReader(bytes.NewReader([]byte("Action: Ping\r\nActionID: X\r\n\r\n")))

	l1, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "Action: Ping\r\n", string(l1))

	l2, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "ActionID: X\r\n", string(l2))

	l3, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "\r\n", string(l3))

	_, err = lr.NextLine()
	assert.ErrorIs(t, err, io.EOF)
}

// chunkedReader dribbles out bytes a few at a time, to exercise the
// buffering-across-reads path.
type chunkedReader struct {
	data []byte
	pos  int
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := c.size
	if n > len(p) {
		n = len(p)
	}
	remaining := len(c.data) - c.pos
	if n > remaining {
		n = remaining
	}
	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n
	return n, nil
}

func TestLineReaderBuffersPartialReads(t *testing.T) {
	lr := NewLineReader(&chunkedReader{data: []byte("Hello: World\r\n\r\n"), size: 3})

	l1, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "Hello: World\r\n", string(l1))

	l2, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "\r\n", string(l2))
}

func TestLineReaderMidFrameEOF(t *testing.T) {
	lr := NewLineReader(bytes.NewReader([]byte("Key: Value\r\nPartial")))

	_, err := lr.NextLine()
	require.NoError(t, err)

	_, err = lr.NextLine()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type transientThenEOFReader struct {
	calls int
	data  []byte
}

func (r *transientThenEOFReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls == 1 {
		return 0, &timeoutError{}
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestLineReaderRetriesTransientError(t *testing.T) {
	lr := NewLineReader(&transientThenEOFReader{data: []byte("A: B\r\n\r\n")})

	line, err := lr.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "A: B\r\n", string(line))
}
