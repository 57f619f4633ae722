package session

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Frame tags written as the first byte of every encoded value.
const (
	tagPlain byte = 'g'
	tagZstd  byte = 'z'
)

// Codec gob-encodes snapshot parts and optionally compresses them with zstd.
// Decoding honours the tag of the stored value, so a store written with
// compression on can still be read with it off.
type Codec struct {
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewCodec creates a codec.
func NewCodec(compress bool) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{compress: compress, encoder: enc, decoder: dec}, nil
}

// Encode serializes v.
func (c *Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tagPlain)
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if !c.compress {
		return buf.Bytes(), nil
	}

	out := make([]byte, 1, buf.Len()/4+1)
	out[0] = tagZstd
	return c.encoder.EncodeAll(buf.Bytes()[1:], out), nil
}

// Decode deserializes data into v.
func (c *Codec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("failed to decode snapshot: empty value")
	}

	payload := data[1:]
	switch data[0] {
	case tagPlain:
	case tagZstd:
		raw, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		payload = raw
	default:
		return fmt.Errorf("failed to decode snapshot: unknown tag %q", data[0])
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return nil
}

// Close releases the zstd encoder and decoder.
func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
