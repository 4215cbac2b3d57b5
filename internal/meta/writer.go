package meta

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"pc-texprep/internal/histogram"
)

// Writer builds a TLV record stream. The zero value is not usable; create
// one with NewWriter. A nil logger discards diagnostics.
type Writer struct {
	buf    []byte
	logger *log.Logger
}

// NewWriter returns an empty record stream writer.
func NewWriter(logger *log.Logger) *Writer {
	return &Writer{logger: logger}
}

// Bytes returns the encoded stream. The returned slice aliases the
// writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// AddHistogram appends the histogram transform as the record type matching
// its channel count, quantized as requested.
func (w *Writer) AddHistogram(res histogram.Result, q Quantization) error {
	if !res.Success {
		return fmt.Errorf("meta: refusing to serialize failed analysis")
	}
	if len(res.Scale) != len(res.Offset) {
		return fmt.Errorf("meta: scale/offset length mismatch: %d vs %d", len(res.Scale), len(res.Offset))
	}

	var t RecordType
	switch len(res.Scale) {
	case 1:
		t = RecordHistScalar
	case 3:
		t = RecordHistPerChannel3
	case 4:
		t = RecordHistPerChannel4
	default:
		return fmt.Errorf("meta: unsupported channel count %d", len(res.Scale))
	}

	payload, clamped := appendPairs(nil, res.Scale, res.Offset, q)
	if clamped && w.logger != nil {
		w.logger.Printf("meta: scale/offset outside [0,1] clamped by packed quantization")
	}
	w.buf = appendRecord(w.buf, t, byte(q)&quantMask, payload)
	return nil
}

// AddHistogramParams appends the analyzer's percentile parameters for
// diagnostics. Always stored as float32.
func (w *Writer) AddHistogramParams(s histogram.Settings) {
	var payload []byte
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(float32(s.PercentileLow)))
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(float32(s.PercentileHigh)))
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(float32(s.KneeWidth)))
	w.buf = appendRecord(w.buf, RecordHistParams, byte(QuantFloat32), payload)
}

// NormalLayout flag bits.
const (
	NormalInRG byte = 1 << 2 // two-channel (RG) normal reconstruction
	NormalInAG byte = 1 << 3 // swizzled AG layout (DXT5nm style)
)

// AddNormalLayout appends a flags-only record identifying which channels
// carry a compressed normal encoding.
func (w *Writer) AddNormalLayout(layout byte) {
	w.buf = appendRecord(w.buf, RecordNormalLayout, layout, nil)
}

// AddChannelSwizzle appends a 4-byte channel remap table. Each entry is
// the source channel index (0-3) feeding that output slot.
func (w *Writer) AddChannelSwizzle(swizzle [4]byte) {
	w.buf = appendRecord(w.buf, RecordChannelSwizzle, 0, swizzle[:])
}

// HistTransform is a decoded histogram record.
type HistTransform struct {
	Scale  []float32
	Offset []float32
}

// DecodeHistogram decodes any of the three histogram record types.
func DecodeHistogram(r Record) (HistTransform, error) {
	var n int
	switch r.Type {
	case RecordHistScalar:
		n = 1
	case RecordHistPerChannel3:
		n = 3
	case RecordHistPerChannel4:
		n = 4
	default:
		return HistTransform{}, fmt.Errorf("meta: record type %d is not a histogram record", r.Type)
	}
	scales, offsets, err := decodePairs(r.Payload, n, r.Quantization())
	if err != nil {
		return HistTransform{}, err
	}
	return HistTransform{Scale: scales, Offset: offsets}, nil
}

// HistParams is a decoded diagnostics record.
type HistParams struct {
	PercentileLow  float32
	PercentileHigh float32
	KneeWidth      float32
}

// DecodeHistParams decodes a RecordHistParams payload.
func DecodeHistParams(r Record) (HistParams, error) {
	if r.Type != RecordHistParams {
		return HistParams{}, fmt.Errorf("meta: record type %d is not a params record", r.Type)
	}
	if len(r.Payload) < 12 {
		return HistParams{}, fmt.Errorf("meta: params payload too short: %d bytes", len(r.Payload))
	}
	return HistParams{
		PercentileLow:  math.Float32frombits(binary.LittleEndian.Uint32(r.Payload)),
		PercentileHigh: math.Float32frombits(binary.LittleEndian.Uint32(r.Payload[4:])),
		KneeWidth:      math.Float32frombits(binary.LittleEndian.Uint32(r.Payload[8:])),
	}, nil
}
