package format

import (
	"github.com/klauspost/compress/zstd"
)

// Compressor is the opaque stream transform the page bytes are run
// through when compression is enabled. The core never inspects the
// compressed form; it only needs a matching Compress/Decompress pair.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// CompressionLevel maps to a zstd encoder level; None disables compression
// (the Codec's Compressor field should be nil in that case, not this type).
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota
	CompressionVeryLow
	CompressionLow
	CompressionMedium
	CompressionHigh
)

// NewCompressor returns a Compressor for level, or nil for CompressionNone.
func NewCompressor(level CompressionLevel) (Compressor, error) {
	if level == CompressionNone {
		return nil, nil
	}
	var el zstd.EncoderLevel
	switch level {
	case CompressionVeryLow:
		el = zstd.SpeedFastest
	case CompressionLow:
		el = zstd.SpeedDefault
	case CompressionMedium:
		el = zstd.SpeedBetterCompression
	case CompressionHigh:
		el = zstd.SpeedBestCompression
	default:
		el = zstd.SpeedDefault
	}
	return &zstdCompressor{level: el}, nil
}

type zstdCompressor struct {
	level zstd.EncoderLevel
}

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(z.level))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func (z *zstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(src, dst)
}
