package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a FileStore compresses the encoded snapshot.
type Compression string

const (
	CompressNone Compression = ""
	CompressZstd Compression = "zstd"
	CompressLZ4  Compression = "lz4"
)

// ParseCompression accepts "", "none", "zstd" and "lz4".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressNone, nil
	case "zstd":
		return CompressZstd, nil
	case "lz4":
		return CompressLZ4, nil
	default:
		return CompressNone, fmt.Errorf("%w: %q (supported: none, zstd, lz4)", ErrUnknownCompression, name)
	}
}

// Ext is the file suffix added for the compression, including the dot.
func (c Compression) Ext() string {
	switch c {
	case CompressZstd:
		return ".zst"
	case CompressLZ4:
		return ".lz4"
	default:
		return ""
	}
}

func (c Compression) compress(data []byte) ([]byte, error) {
	switch c {
	case CompressNone:
		return data, nil
	case CompressZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CompressLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, string(c))
	}
}

func (c Compression) decompress(data []byte) ([]byte, error) {
	switch c {
	case CompressNone:
		return data, nil
	case CompressZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case CompressLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, string(c))
	}
}
