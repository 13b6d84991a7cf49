// Package framing implements the length-prefixed frame protocol named
// in spec.md §1 as an external collaborator of the allocator core: a
// 4-byte little-endian length header followed by a body of up to
// MaxBody bytes. It is pure scaffolding — the canonical usage pattern
// is alloc -> write(header) -> write(body) -> dispose, holding zero
// bytes live longer than one frame (spec.md §6).
package framing

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sneller-labs/memhighway/highway"
)

// HeaderSize is the width of the length prefix.
const HeaderSize = 4

// MaxBody is the largest body this protocol accepts in one frame.
const MaxBody = 32 * 1024

// EncodeHeader writes the little-endian length prefix for a body of
// the given size into hdr, which must be at least HeaderSize bytes.
func EncodeHeader(hdr []byte, bodyLen int) {
	binary.LittleEndian.PutUint32(hdr, uint32(bodyLen))
}

// DecodeHeader reads a body length out of a HeaderSize-byte header and
// validates it against MaxBody.
func DecodeHeader(hdr []byte) (int, error) {
	n := binary.LittleEndian.Uint32(hdr)
	if n > MaxBody {
		return 0, fmt.Errorf("framing: body size %d exceeds MaxBody %d", n, MaxBody)
	}
	return int(n), nil
}

// CopyBody is the "stream copy utility" spec.md §1 names as an
// out-of-scope collaborator: it reads arbitrary-size chunks from src
// into dst starting at off, until n bytes have been copied or src
// errors. It never retains a reference to dst past the call.
func CopyBody(dst *highway.Fragment, off int, n int, src io.Reader) error {
	buf := make([]byte, 4096)
	remaining := n
	pos := off
	for remaining > 0 {
		chunk := len(buf)
		if chunk > remaining {
			chunk = remaining
		}
		got, err := io.ReadFull(src, buf[:chunk])
		if got > 0 {
			if werr := dst.Write(pos, buf[:got]); werr != nil {
				return werr
			}
			pos += got
			remaining -= got
		}
		if err != nil {
			if err == io.EOF && remaining == 0 {
				break
			}
			return fmt.Errorf("framing: copy body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r, allocating its
// body fragment from hw, and returns it. The caller owns the returned
// Fragment and must Dispose it.
func ReadFrame(r io.Reader, hw *highway.Highway) (*highway.Fragment, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	bodyLen, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if bodyLen == 0 {
		return nil, nil
	}
	frag, err := hw.Alloc(bodyLen)
	if err != nil {
		return nil, fmt.Errorf("framing: alloc body fragment: %w", err)
	}
	if err := CopyBody(frag, 0, bodyLen, r); err != nil {
		frag.Dispose()
		return nil, err
	}
	return frag, nil
}

// WriteFrame writes frag's full contents to w as one length-prefixed
// frame.
func WriteFrame(w io.Writer, frag *highway.Fragment) error {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], frag.Len())
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	body, err := frag.Span()
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
