// Package compression packs benchmark reports before they leave the
// process, for object-storage upload or archival.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type identifies the codec used for a report payload.
type Type uint8

const (
	// TypeGzip is widely decodable and is the default for uploads.
	TypeGzip Type = 0
	// TypeZstd trades compatibility for speed and ratio.
	TypeZstd Type = 1
	// TypeNone stores the report uncompressed.
	TypeNone Type = 255
)

// ParseType maps a configuration string to a codec type.
func ParseType(name string) (Type, error) {
	switch name {
	case "gzip", "":
		return TypeGzip, nil
	case "zstd":
		return TypeZstd, nil
	case "none":
		return TypeNone, nil
	default:
		return TypeGzip, fmt.Errorf("unsupported compression codec: %s", name)
	}
}

func (t Type) String() string {
	switch t {
	case TypeZstd:
		return "zstd"
	case TypeNone:
		return "none"
	default:
		return "gzip"
	}
}

// Extension returns the object-key suffix for the codec.
func (t Type) Extension() string {
	switch t {
	case TypeZstd:
		return ".zst"
	case TypeNone:
		return ""
	default:
		return ".gz"
	}
}

// Level trades speed against ratio. Report payloads are small JSON blobs,
// so the default level is rarely worth changing.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBest    Level = 9
)

// Compressor encodes and decodes report payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() Type
}

// New creates a compressor by type and level.
func New(t Type, level Level) (Compressor, error) {
	switch t {
	case TypeZstd:
		return NewZstdCompressor(level)
	case TypeGzip:
		return NewGzipCompressor(level), nil
	case TypeNone:
		return NoOpCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

// GzipCompressor implements Compressor using the standard gzip format.
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a gzip compressor at the given level.
func NewGzipCompressor(level Level) *GzipCompressor {
	return &GzipCompressor{level: gzipLevel(level)}
}

func gzipLevel(l Level) int {
	switch l {
	case LevelFastest:
		return gzip.BestSpeed
	case LevelBest:
		return gzip.BestCompression
	}
	return gzip.DefaultCompression
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (g *GzipCompressor) Type() Type {
	return TypeGzip
}

// ZstdCompressor implements Compressor using zstd. It is reusable and
// safe for concurrent Compress calls.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a zstd compressor at the given level.
func NewZstdCompressor(level Level) (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func zstdLevel(l Level) zstd.EncoderLevel {
	switch l {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	}
	return zstd.SpeedDefault
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

func (z *ZstdCompressor) Type() Type {
	return TypeZstd
}

// Close releases the encoder and decoder.
func (z *ZstdCompressor) Close() {
	if z.encoder != nil {
		z.encoder.Close()
	}
	if z.decoder != nil {
		z.decoder.Close()
	}
}

// NoOpCompressor stores payloads unchanged.
type NoOpCompressor struct{}

func (NoOpCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoOpCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (NoOpCompressor) Type() Type                             { return TypeNone }

// zstd frames start with this magic number.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// DetectType reads the codec from a payload's magic bytes. Reports saved
// before the codec became configurable are all gzip, so that is the
// fallback.
func DetectType(data []byte) Type {
	if bytes.HasPrefix(data, zstdMagic) {
		return TypeZstd
	}
	return TypeGzip
}

// AutoDecompress detects the codec from the payload and decompresses it.
// It lets archived reports be read back regardless of the codec the run
// that wrote them was configured with.
func AutoDecompress(data []byte) ([]byte, error) {
	if DetectType(data) == TypeZstd {
		comp, err := NewZstdCompressor(LevelDefault)
		if err != nil {
			return nil, err
		}
		defer comp.Close()
		return comp.Decompress(data)
	}
	return NewGzipCompressor(LevelDefault).Decompress(data)
}

// Closeable is implemented by compressors that hold resources.
type Closeable interface {
	Close()
}

// Close closes a compressor if it implements Closeable.
func Close(c Compressor) {
	if closer, ok := c.(Closeable); ok {
		closer.Close()
	}
}
