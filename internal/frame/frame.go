// Package frame implements the length-prefixed message framing used by
// every TCP channel in the system: a big-endian uint32 length followed by
// that many body bytes. Frame bodies are bounded to keep a single bad
// actor from forcing unbounded buffer growth.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxBodySize is the largest body a single frame may carry.
const MaxBodySize = 65536

// ErrEmptyBody is returned when a send is attempted with a zero-length body.
var ErrEmptyBody = errors.New("frame: body must not be empty")

// ErrBodyTooLarge is returned when a send or receive would exceed MaxBodySize.
var ErrBodyTooLarge = fmt.Errorf("frame: body exceeds %d bytes", MaxBodySize)

// Send writes one frame to w: a 4-byte big-endian length followed by body.
// It loops until the full frame is written or an unrecoverable error occurs.
func Send(w io.Writer, body []byte) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if len(body) > MaxBodySize {
		return ErrBodyTooLarge
	}

	header := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(header[:4], uint32(len(body)))
	copy(header[4:], body)

	if _, err := writeAll(w, header); err != nil {
		return fmt.Errorf("frame: send: %w", err)
	}
	return nil
}

// Recv reads one frame from r and returns its body. It blocks until a full
// frame has arrived, the peer closes the connection, or an I/O error occurs.
func Recv(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("frame: recv header: %w", err)
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > MaxBodySize {
		return nil, fmt.Errorf("frame: recv: invalid length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("frame: recv body: %w", err)
	}
	return body, nil
}

// writeAll loops a Write call until every byte of buf has been written,
// mirroring the original implementation's send_all retry-on-short-write
// discipline (Go's io.Writer contract already forbids silent short writes
// without an error, but callers across the codebase rely on this helper
// rather than assuming that of arbitrary io.Writer implementations).
func writeAll(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
