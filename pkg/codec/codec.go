// Package codec maps the producer's wire-level codec enum onto concrete
// compression implementations.
//
// The producer core never compresses or decompresses a payload itself —
// spec.md treats codec as an opaque field carried from Send through to the
// wire request, not a core responsibility. This package exists for the
// broker (which does have to put bytes on the wire) and for tests that want
// to assert a payload round-trips under a given codec.
package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/IBM/sarama"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm by name, the same enum the core
// carries on ProduceRequest/Payload.
type Codec string

const (
	None   Codec = "none"
	Gzip   Codec = "gzip"
	Snappy Codec = "snappy"
	LZ4    Codec = "lz4"
	Zstd   Codec = "zstd"
)

// SaramaCode maps a Codec onto the corresponding sarama wire-compression
// constant.
func (c Codec) SaramaCode() (sarama.CompressionCodec, error) {
	switch c {
	case None, "":
		return sarama.CompressionNone, nil
	case Gzip:
		return sarama.CompressionGZIP, nil
	case Snappy:
		return sarama.CompressionSnappy, nil
	case LZ4:
		return sarama.CompressionLZ4, nil
	case Zstd:
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("codec: unknown codec %q", c)
	}
}

// Valid reports whether c is one of the known codec names.
func (c Codec) Valid() bool {
	switch c {
	case None, "", Gzip, Snappy, LZ4, Zstd:
		return true
	default:
		return false
	}
}

// Encode compresses data under the named codec. The broker's send path
// uses it to compress each message value of a payload; the producer core
// never calls it.
func Encode(c Codec, data []byte) ([]byte, error) {
	switch c {
	case None, "":
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("codec: gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("codec: gzip close: %w", err)
		}
		return buf.Bytes(), nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("codec: lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("codec: lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", c)
	}
}

// Decode reverses Encode.
func Decode(c Codec, data []byte) ([]byte, error) {
	switch c {
	case None, "":
		return data, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("codec: gzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("codec: gzip read: %w", err)
		}
		return out, nil
	case Snappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("codec: snappy decode: %w", err)
		}
		return out, nil
	case LZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 read: %w", err)
		}
		return out, nil
	case Zstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("codec: zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", c)
	}
}
