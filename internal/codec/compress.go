package codec

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/strata-go/strata/internal/types"
)

// Compression algorithm names accepted in configuration.
const (
	CompressionNone = "none"
	CompressionS2   = "s2"
	CompressionZstd = "zstd"
)

// Algorithm tag bytes prepended to every unencrypted frame. The tag
// travels with the payload, so a reader never depends on the writer's
// configuration to pick the right decompressor.
const (
	tagRaw  byte = 0x00
	tagS2   byte = 0x01
	tagZstd byte = 0x02
)

// compressor wraps payloads in tagged frames. Compression only applies
// to payloads at or above the threshold, and only when it actually
// shrinks them. Decompression always honors the frame's tag regardless
// of the configured algorithm, so frames written under an older
// configuration stay readable.
type compressor struct {
	zenc      *zstd.Encoder
	zdec      *zstd.Decoder
	algo      string
	threshold int
}

func newCompressor(algo string, threshold int) (*compressor, error) {
	c := &compressor{algo: algo, threshold: threshold}

	switch algo {
	case "", CompressionNone:
		c.algo = CompressionNone
	case CompressionS2:
	case CompressionZstd:
		zenc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		c.zenc = zenc
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", algo)
	}

	// The zstd decoder is always constructed: frames written by a
	// zstd-configured peer must stay readable after a config change.
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		if c.zenc != nil {
			_ = c.zenc.Close()
		}
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	c.zdec = zdec

	return c, nil
}

// compress returns the tagged frame for data and whether the body was
// compressed. A threshold of zero disables compression.
func (c *compressor) compress(data []byte) ([]byte, bool) {
	if c.algo == CompressionNone || c.threshold <= 0 || len(data) < c.threshold {
		return rawFrame(data), false
	}

	var tag byte
	var body []byte
	switch c.algo {
	case CompressionS2:
		tag, body = tagS2, s2.Encode(nil, data)
	case CompressionZstd:
		tag, body = tagZstd, c.zenc.EncodeAll(data, make([]byte, 0, len(data)))
	default:
		return rawFrame(data), false
	}

	// Incompressible payloads are stored raw rather than inflated.
	if len(body) >= len(data) {
		return rawFrame(data), false
	}

	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, tag)
	frame = append(frame, body...)
	return frame, true
}

// decompress unwraps a tagged frame back into the original bytes.
func (c *compressor) decompress(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", types.ErrSerialization)
	}

	tag, body := frame[0], frame[1:]
	switch tag {
	case tagRaw:
		return body, nil
	case tagS2:
		out, err := s2.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("%w: s2 decode: %v", types.ErrSerialization, err)
		}
		return out, nil
	case tagZstd:
		out, err := c.zdec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decode: %v", types.ErrSerialization, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression tag 0x%02x", types.ErrSerialization, tag)
	}
}

func (c *compressor) close() {
	if c.zenc != nil {
		_ = c.zenc.Close()
	}
	if c.zdec != nil {
		c.zdec.Close()
	}
}

func rawFrame(data []byte) []byte {
	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, tagRaw)
	frame = append(frame, data...)
	return frame
}
