// Package meta serializes analysis results into the compact tagged binary
// records stored inside an encoded texture container. A runtime parses the
// record stream back to recover the per-channel (scale, offset) transform
// and invert it at sample time.
package meta

import (
	"encoding/binary"
	"fmt"
	"math"

	"pc-texprep/internal/f16"
)

// Key is the single container key the record stream is stored under.
const Key = "pc.meta"

// RecordType tags one TLV record.
type RecordType byte

const (
	// RecordHistScalar carries one (scale, offset) pair.
	RecordHistScalar RecordType = 1
	// RecordHistPerChannel3 carries three pairs (RGB).
	RecordHistPerChannel3 RecordType = 2
	// RecordHistPerChannel4 carries four pairs (RGBA).
	RecordHistPerChannel4 RecordType = 3
	// RecordHistParams carries percentile-low, percentile-high and
	// knee-width as float32, for diagnostics.
	RecordHistParams RecordType = 4
	// RecordNormalLayout is flags-only; the flags identify which channels
	// carry a compressed normal encoding.
	RecordNormalLayout RecordType = 5
	// RecordChannelSwizzle carries a 4-byte channel remap table.
	RecordChannelSwizzle RecordType = 6
)

// Quantization selects how numeric payloads are stored. It occupies the
// low two bits of the record flags.
type Quantization byte

const (
	// QuantHalf16 stores each value as a 16-bit half (default).
	QuantHalf16 Quantization = 0
	// QuantFloat32 stores each value losslessly.
	QuantFloat32 Quantization = 1
	// QuantPackedUint32 packs a (scale, offset) pair as two 16-bit
	// unsigned-normalized values in one word. Only valid when both lie in
	// [0,1]; out-of-range values are clamped, a lossy-by-design limit.
	QuantPackedUint32 Quantization = 2
)

const quantMask = 0x03

// Record is one decoded TLV record.
type Record struct {
	Type    RecordType
	Flags   byte
	Payload []byte
}

// Quantization extracts the payload quantization from the flags.
func (r Record) Quantization() Quantization {
	return Quantization(r.Flags & quantMask)
}

// headerSize is the fixed prefix: type, flags, little-endian length.
const headerSize = 4

// appendRecord appends one encoded record, zero-padded to 4-byte alignment.
func appendRecord(b []byte, t RecordType, flags byte, payload []byte) []byte {
	b = append(b, byte(t), flags)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(payload)))
	b = append(b, payload...)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// Parse decodes a record stream. Trailing padding shorter than a record
// header is tolerated.
func Parse(data []byte) ([]Record, error) {
	var recs []Record
	for len(data) >= headerSize {
		t := RecordType(data[0])
		flags := data[1]
		n := int(binary.LittleEndian.Uint16(data[2:4]))
		if headerSize+n > len(data) {
			return nil, fmt.Errorf("meta: record type %d: payload length %d exceeds stream", t, n)
		}
		recs = append(recs, Record{
			Type:    t,
			Flags:   flags,
			Payload: append([]byte(nil), data[4:4+n]...),
		})
		adv := headerSize + n
		if rem := adv % 4; rem != 0 {
			adv += 4 - rem
		}
		if adv > len(data) {
			adv = len(data)
		}
		data = data[adv:]
	}
	for _, b := range data {
		if b != 0 {
			return nil, fmt.Errorf("meta: %d trailing bytes are not padding", len(data))
		}
	}
	return recs, nil
}

// PackScaleOffset packs a (scale, offset) pair into one 32-bit word as two
// unsigned-normalized 16-bit values, scale in the low half. Values outside
// [0,1] are clamped, not wrapped.
func PackScaleOffset(scale, offset float32) uint32 {
	return uint32(unorm16(scale)) | uint32(unorm16(offset))<<16
}

// UnpackScaleOffset is the inverse of PackScaleOffset.
func UnpackScaleOffset(v uint32) (scale, offset float32) {
	return float32(v&0xFFFF) / 65535, float32(v>>16) / 65535
}

func unorm16(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(v*65535 + 0.5)
}

// appendPairs encodes (scale, offset) pairs under the given quantization.
// It reports whether any packed value had to be clamped.
func appendPairs(b []byte, scales, offsets []float32, q Quantization) ([]byte, bool) {
	clamped := false
	for i := range scales {
		switch q {
		case QuantFloat32:
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(scales[i]))
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(offsets[i]))
		case QuantPackedUint32:
			if scales[i] < 0 || scales[i] > 1 || offsets[i] < 0 || offsets[i] > 1 {
				clamped = true
			}
			b = binary.LittleEndian.AppendUint32(b, PackScaleOffset(scales[i], offsets[i]))
		default:
			b = f16.AppendFloatsLE(b, scales[i], offsets[i])
		}
	}
	return b, clamped
}

// decodePairs decodes n (scale, offset) pairs from a record payload.
func decodePairs(payload []byte, n int, q Quantization) (scales, offsets []float32, err error) {
	var per int
	switch q {
	case QuantFloat32:
		per = 8
	case QuantPackedUint32:
		per = 4
	default:
		per = 4 // two halves
	}
	if len(payload) < n*per {
		return nil, nil, fmt.Errorf("meta: payload %d bytes, need %d for %d pairs", len(payload), n*per, n)
	}
	scales = make([]float32, n)
	offsets = make([]float32, n)
	for i := 0; i < n; i++ {
		p := payload[i*per:]
		switch q {
		case QuantFloat32:
			scales[i] = math.Float32frombits(binary.LittleEndian.Uint32(p))
			offsets[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
		case QuantPackedUint32:
			scales[i], offsets[i] = UnpackScaleOffset(binary.LittleEndian.Uint32(p))
		default:
			scales[i] = f16.ToFloat32(f16.ReadLE(p))
			offsets[i] = f16.ToFloat32(f16.ReadLE(p[2:]))
		}
	}
	return scales, offsets, nil
}
