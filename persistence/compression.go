package persistence

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm of a blob payload.
type CompressionType uint8

const (
	// CompressionNone stores the payload as is; codes can be read zero-copy.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast to decode).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD (better ratio, slower).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionType(%d)", uint8(c))
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRawSize))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the compressed payload and the compression actually used.
// Payloads that do not shrink below 90% of their size are stored uncompressed.
func compress(data []byte, ct CompressionType) ([]byte, CompressionType, error) {
	if ct == CompressionNone || len(data) == 0 {
		return data, CompressionNone, nil
	}

	var compressed []byte
	switch ct {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	default:
		return nil, 0, fmt.Errorf("unknown compression %v", ct)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		return data, CompressionNone, nil
	}
	return compressed, ct, nil
}

// MaxRawSize bounds the uncompressed payload a header may declare.
const MaxRawSize = 1 << 34

// lz4 cannot expand a block by more than 255x.
const lz4MaxRatio = 255

// decompress inflates payload into rawSize bytes. rawSize comes from an
// unchecksummed header and is validated before anything is allocated.
func decompress(payload []byte, ct CompressionType, rawSize uint64) ([]byte, error) {
	if rawSize > MaxRawSize {
		return nil, fmt.Errorf("%w: raw size %d exceeds %d", ErrCorrupt, rawSize, uint64(MaxRawSize))
	}
	switch ct {
	case CompressionNone:
		if uint64(len(payload)) != rawSize {
			return nil, fmt.Errorf("%w: payload has %d bytes, want %d", ErrCorrupt, len(payload), rawSize)
		}
		return payload, nil
	case CompressionLZ4:
		if rawSize > uint64(len(payload))*lz4MaxRatio {
			return nil, fmt.Errorf("%w: raw size %d too large for %d lz4 bytes", ErrCorrupt, rawSize, len(payload))
		}
		result := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if uint64(n) != rawSize {
			return nil, fmt.Errorf("%w: lz4 inflated to %d bytes, want %d", ErrCorrupt, n, rawSize)
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		// The frame itself bounds the output; only the initial buffer uses rawSize.
		hint := min(rawSize, uint64(len(payload))*lz4MaxRatio)
		decoded, err := dec.DecodeAll(payload, make([]byte, 0, hint))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if uint64(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: zstd inflated to %d bytes, want %d", ErrCorrupt, len(decoded), rawSize)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, uint8(ct))
	}
}
