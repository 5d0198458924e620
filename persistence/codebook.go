package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/motionvq/codec"
	"github.com/hupe1980/motionvq/fragment"
	ihash "github.com/hupe1980/motionvq/internal/hash"
	"github.com/hupe1980/motionvq/quantization"
)

// Options configures codebook encoding.
type Options struct {
	Compression CompressionType
	// Codec encodes the metric descriptor. Readers select the codec by the
	// name stored in the payload.
	Codec codec.Codec
}

// DefaultOptions returns uncompressed blobs with the default codec.
func DefaultOptions() Options {
	return Options{Compression: CompressionNone, Codec: codec.Default}
}

// Encoded is a codebook payload that can be written under any metric
// version. The checksum is known before the version is chosen.
type Encoded struct {
	name     string
	payload  []byte
	ct       CompressionType
	rawSize  uint64
	checksum uint32
}

// Encode serializes and compresses cb.
func Encode(cb *fragment.Codebook, opts Options) (*Encoded, error) {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	raw, err := encodePayload(cb, opts.Codec)
	if err != nil {
		return nil, err
	}
	payload, ct, err := compress(raw, opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", cb.Name(), err)
	}
	return &Encoded{
		name:     cb.Name(),
		payload:  payload,
		ct:       ct,
		rawSize:  uint64(len(raw)),
		checksum: ihash.CRC32C(raw),
	}, nil
}

// Checksum returns the CRC32C of the uncompressed payload.
func (e *Encoded) Checksum() uint32 { return e.checksum }

// Compression returns the compression actually applied.
func (e *Encoded) Compression() CompressionType { return e.ct }

// Size returns the blob size in bytes.
func (e *Encoded) Size() int64 { return HeaderSize + int64(len(e.payload)) }

// WriteTo writes the blob with the given metric version.
func (e *Encoded) WriteTo(w io.Writer, version uint32) (Header, error) {
	h := Header{
		Magic:         MagicNumber,
		FormatVersion: FormatVersion,
		MetricVersion: version,
		Compression:   e.ct,
		RawSize:       e.rawSize,
		PayloadSize:   uint64(len(e.payload)),
		Checksum:      e.checksum,
	}
	hdr, _ := h.MarshalBinary()
	if _, err := w.Write(hdr); err != nil {
		return Header{}, fmt.Errorf("write %s header: %w", e.name, err)
	}

	cw := NewChecksumWriter(w)
	if _, err := cw.Write(e.payload); err != nil {
		return Header{}, fmt.Errorf("write %s payload: %w", e.name, err)
	}
	if cw.Written() != int64(len(e.payload)) {
		return Header{}, fmt.Errorf("write %s payload: %w", e.name, io.ErrShortWrite)
	}
	// An uncompressed payload is exactly the checksummed bytes.
	if e.ct == CompressionNone && cw.Sum() != e.checksum {
		return Header{}, fmt.Errorf("write %s payload: %w", e.name,
			&ChecksumMismatchError{Expected: e.checksum, Actual: cw.Sum()})
	}
	return h, nil
}

// WriteCodebook writes cb as a blob with the given metric version and returns its header.
func WriteCodebook(w io.Writer, cb *fragment.Codebook, version uint32, opts Options) (Header, error) {
	e, err := Encode(cb, opts)
	if err != nil {
		return Header{}, err
	}
	return e.WriteTo(w, version)
}

// MarshalCodebook returns the blob bytes of cb.
func MarshalCodebook(cb *fragment.Codebook, version uint32, opts Options) ([]byte, Header, error) {
	var buf bytes.Buffer
	h, err := WriteCodebook(&buf, cb, version, opts)
	if err != nil {
		return nil, Header{}, err
	}
	return buf.Bytes(), h, nil
}

// ReadCodebook decodes a blob. When the payload is uncompressed the returned
// codebook's code array aliases data, which must then stay valid and
// unmodified for the codebook's lifetime.
func ReadCodebook(data []byte) (*fragment.Codebook, Header, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	if avail := uint64(len(data) - HeaderSize); h.PayloadSize > avail {
		return nil, h, fmt.Errorf("%w: truncated payload (%d of %d bytes)", ErrCorrupt, avail, h.PayloadSize)
	}
	raw, err := decompress(data[HeaderSize:HeaderSize+int(h.PayloadSize)], h.Compression, h.RawSize)
	if err != nil {
		return nil, h, err
	}
	if err := Verify(raw, h.Checksum); err != nil {
		return nil, h, err
	}
	cb, err := decodePayload(raw)
	if err != nil {
		return nil, h, err
	}
	return cb.WithVersion(h.MetricVersion), h, nil
}

func encodePayload(cb *fragment.Codebook, c codec.Codec) ([]byte, error) {
	desc, err := c.Marshal(cb.Metric())
	if err != nil {
		return nil, fmt.Errorf("encode metric %s: %w", cb.Name(), err)
	}
	q := cb.Quantizer()
	norm := cb.Normalization()
	intervals := cb.Intervals()
	codes := cb.Codes()

	size := 2 + len(c.Name()) + 4 + len(desc) + 16 +
		4*(len(q.Centroids())+2*cb.Dimension()) + 24*len(intervals) + len(codes)
	buf := make([]byte, 0, size)

	le := binary.LittleEndian
	buf = le.AppendUint16(buf, uint16(len(c.Name())))
	buf = append(buf, c.Name()...)
	buf = le.AppendUint32(buf, uint32(len(desc)))
	buf = append(buf, desc...)

	buf = le.AppendUint32(buf, uint32(cb.Dimension()))
	buf = le.AppendUint32(buf, uint32(cb.CodeSize()))
	buf = le.AppendUint32(buf, uint32(len(intervals)))
	buf = le.AppendUint32(buf, uint32(cb.NumRows()))

	buf = appendFloats(buf, q.Centroids())
	buf = appendFloats(buf, norm.Mean)
	buf = appendFloats(buf, norm.Scale)
	for _, e := range intervals {
		buf = le.AppendUint64(buf, uint64(int64(e.ID)))
		buf = le.AppendUint64(buf, uint64(int64(e.FirstFrame)))
		buf = le.AppendUint64(buf, uint64(int64(e.NumFrames)))
	}
	buf = append(buf, codes...)
	return buf, nil
}

func appendFloats(buf []byte, values []float32) []byte {
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func decodePayload(raw []byte) (*fragment.Codebook, error) {
	r := &payloadReader{buf: raw}

	codecName := string(r.next(int(r.u16())))
	desc := r.next(int(r.u32()))
	if r.err != nil {
		return nil, r.err
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, codecName)
	}
	var metric fragment.Metric
	if err := c.Unmarshal(desc, &metric); err != nil {
		return nil, fmt.Errorf("%w: metric descriptor: %v", ErrCorrupt, err)
	}

	d := int(r.u32())
	m := int(r.u32())
	numIntervals := int(r.u32())
	numRows := int(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	if d <= 0 || m <= 0 || d%m != 0 {
		return nil, fmt.Errorf("%w: shape d=%d M=%d", ErrCorrupt, d, m)
	}

	centroids := r.floats(m * quantization.NumCentroids * (d / m))
	mean := r.floats(d)
	scale := r.floats(d)

	intervals := make([]fragment.IntervalEntry, 0, min(numIntervals, len(raw)/24))
	row := 0
	for i := 0; i < numIntervals && r.err == nil; i++ {
		e := fragment.IntervalEntry{
			ID:         int(int64(r.u64())),
			FirstFrame: int(int64(r.u64())),
			NumFrames:  int(int64(r.u64())),
			Row:        row,
		}
		row += e.NumFrames
		intervals = append(intervals, e)
	}
	if r.err == nil && row != numRows {
		return nil, fmt.Errorf("%w: intervals cover %d rows, header says %d", ErrCorrupt, row, numRows)
	}
	codes := r.next(numRows * m)
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(raw)-r.off)
	}

	q, err := quantization.FromCentroids(d, m, centroids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	norm := fragment.Normalization{Mean: mean, Scale: scale}
	return fragment.NewCodebook(metric, norm, q, intervals, codes[:len(codes):len(codes)])
}

// payloadReader decodes little-endian values and records the first error.
type payloadReader struct {
	buf []byte
	off int
	err error
}

func (r *payloadReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.off {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorrupt, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *payloadReader) u16() uint16 {
	if b := r.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *payloadReader) u32() uint32 {
	if b := r.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *payloadReader) u64() uint64 {
	if b := r.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *payloadReader) floats(n int) []float32 {
	b := r.next(4 * n)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
