// Package codec encodes cache values for storage. The pipeline is JSON
// serialization, optional compression with an in-band algorithm tag, and
// optional authenticated encryption. Both tiers store the encoded frame,
// so a payload read from the remote tier can be copied into the local
// tier byte for byte.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/types"
)

// Codec implements types.Codec. Encode runs serialize, compress, then
// encrypt; Decode runs the inverse. Safe for concurrent use.
type Codec struct {
	serializer types.Serializer
	compressor *compressor
	encryptor  *encryptor // nil when encryption is disabled
}

// New creates a codec from configuration. A nil serializer defaults to
// JSON.
func New(cfg config.CodecConfig, serializer types.Serializer) (*Codec, error) {
	if serializer == nil {
		serializer = NewJSONSerializer()
	}

	comp, err := newCompressor(cfg.Compression, cfg.CompressionThreshold)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}

	c := &Codec{
		serializer: serializer,
		compressor: comp,
	}

	if cfg.Encryption.Enabled {
		enc, err := newEncryptor(cfg.Encryption.Key.Value())
		if err != nil {
			comp.close()
			return nil, fmt.Errorf("codec: %w", err)
		}
		c.encryptor = enc
	}

	return c, nil
}

// Encode converts a value into a storable frame and reports which
// transformations were applied to it.
func (c *Codec) Encode(value any) ([]byte, types.CodecFlags, error) {
	var flags types.CodecFlags

	data, err := c.serializer.Marshal(value)
	if err != nil {
		return nil, flags, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}

	frame, compressed := c.compressor.compress(data)
	flags.Compressed = compressed

	if c.encryptor != nil {
		sealed, err := c.encryptor.seal(frame)
		if err != nil {
			return nil, flags, fmt.Errorf("%w: %v", types.ErrSerialization, err)
		}
		frame = sealed
		flags.Encrypted = true
	}

	return frame, flags, nil
}

// Decode reverses Encode into dest. Decryption and authentication
// failures return ErrIntegrity; malformed frames and JSON failures
// return ErrSerialization.
func (c *Codec) Decode(payload []byte, dest any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", types.ErrSerialization)
	}

	frame := payload
	if c.encryptor != nil {
		opened, err := c.encryptor.open(frame)
		if err != nil {
			return err
		}
		frame = opened
	}

	data, err := c.compressor.decompress(frame)
	if err != nil {
		return err
	}

	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return nil
}

// Close releases compression resources. The codec must not be used
// afterwards.
func (c *Codec) Close() {
	c.compressor.close()
}

var _ types.Codec = (*Codec)(nil)

// JSONSerializer implements types.Serializer using encoding/json. It is
// the default serializer for the codec pipeline.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal serializes a value to JSON bytes.
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into the destination.
func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

var _ types.Serializer = (*JSONSerializer)(nil)
