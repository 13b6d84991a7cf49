package framing

import (
	"bytes"
	"testing"

	"github.com/sneller-labs/memhighway/highway"
)

// TestFrameCopyViaBackend is spec.md §8 scenario 6: header = 4 LE
// bytes, body up to 32 KiB, copied in arbitrary-size chunks via
// Fragment.Write, then read back byte-for-byte.
func TestFrameCopyViaBackend(t *testing.T) {
	hw, err := highway.NewHeapHighway(highway.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Dispose()

	body := bytes.Repeat([]byte("frame-body-content-"), 1000) // ~19KB
	if len(body) > MaxBody {
		body = body[:MaxBody]
	}

	frag, err := hw.Alloc(len(body))
	if err != nil {
		t.Fatal(err)
	}
	defer frag.Dispose()

	// copy in arbitrary, uneven chunk sizes
	chunkSizes := []int{1, 7, 4096, 13}
	pos := 0
	ci := 0
	for pos < len(body) {
		n := chunkSizes[ci%len(chunkSizes)]
		if pos+n > len(body) {
			n = len(body) - pos
		}
		if err := frag.Write(pos, body[pos:pos+n]); err != nil {
			t.Fatalf("write at %d: %s", pos, err)
		}
		pos += n
		ci++
	}

	got, err := frag.Span()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("round trip mismatch: %d bytes in, %d bytes out, equal=%v", len(body), len(got), bytes.Equal(got, body))
	}
}

func TestReadWriteFrameRoundTrip(t *testing.T) {
	hw, err := highway.NewHeapHighway(highway.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Dispose()

	body := []byte("hello, highway")
	src, err := hw.Alloc(len(body))
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Write(0, body); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, src); err != nil {
		t.Fatal(err)
	}
	src.Dispose()

	got, err := ReadFrame(&buf, hw)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Dispose()
	span, err := got.Span()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(span, body) {
		t.Fatalf("frame round trip mismatch: got %q want %q", span, body)
	}
}
