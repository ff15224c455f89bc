// Package framing reads and writes length-prefixed message records over a
// duplex byte stream. The frame boundary is the sole synchronization point:
// a 4-byte big-endian length prefix followed by the JSON-encoded envelope.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spokewise/spokewise-go/wire"
)

var (
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrMalformed marks a frame whose body failed to decode. The stream
	// itself remains synchronized because the declared body was consumed.
	ErrMalformed = errors.New("malformed frame")
)

// DefaultMaxFrameBytes is the recommended maximum size for a single frame.
//
// Do not call ReadFrame with maxLen<=0 on untrusted inputs, because it
// disables size checks and may lead to large allocations (memory DoS).
const DefaultMaxFrameBytes = 1 << 20

const headerLen = 4

// WriteFrame writes one length-prefixed message record. The prefix and body
// are issued as a single Write so a short write surfaces as an error; callers
// MUST treat any error as a broken connection and close it, since a
// half-framed record may remain on the wire.
func WriteFrame(w io.Writer, m *wire.Message) error {
	body, err := m.Marshal()
	if err != nil {
		return err
	}
	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf[:headerLen], uint32(len(body)))
	copy(buf[headerLen:], body)
	_, err = w.Write(buf)
	return err
}

// ReadFrame reads one complete message record, blocking until the prefix and
// declared body are both in hand or the peer closes.
//
// io.EOF is returned only when the stream ends cleanly on a frame boundary; a
// stream cut mid-record surfaces as io.ErrUnexpectedEOF. A decode failure is
// reported as ErrMalformed without desynchronizing the stream.
func ReadFrame(r io.Reader, maxLen int) (*wire.Message, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if n < 0 {
		return nil, ErrFrameTooLarge
	}
	if maxLen > 0 && n > maxLen {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	m, err := wire.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}
