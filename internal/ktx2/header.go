// Package ktx2 edits KTX2 texture containers. It parses the fixed header
// and level index into a structured model, mutates through typed methods,
// and re-serializes — every absolute offset in the file is touched through
// one reviewed code path.
package ktx2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Identifier is the 12-byte KTX2 magic.
var Identifier = [12]byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x32, 0x30, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}

// Supercompression schemes.
const (
	SupercompressionNone    uint32 = 0
	SupercompressionBasisLZ uint32 = 1
	SupercompressionZstd    uint32 = 2
	SupercompressionZLIB    uint32 = 3
)

// HeaderSize is the fixed binary size of the header, excluding the level
// index that follows it.
const HeaderSize = 80

// LevelEntrySize is the binary size of one level index entry.
const LevelEntrySize = 24

// Header is the fixed KTX2 file header. All offsets are absolute byte
// offsets into the file.
type Header struct {
	VkFormat               uint32
	TypeSize               uint32
	PixelWidth             uint32
	PixelHeight            uint32
	PixelDepth             uint32
	LayerCount             uint32
	FaceCount              uint32
	LevelCount             uint32
	SupercompressionScheme uint32

	DFDByteOffset uint32
	DFDByteLength uint32
	KVDByteOffset uint32
	KVDByteLength uint32
	SGDByteOffset uint64
	SGDByteLength uint64
}

// LevelEntry is one level index entry.
type LevelEntry struct {
	ByteOffset             uint64
	ByteLength             uint64
	UncompressedByteLength uint64
}

// indexLevels returns the number of level index entries the file carries.
// A levelCount of 0 (no mip levels specified) still has one entry.
func (h *Header) indexLevels() int {
	if h.LevelCount == 0 {
		return 1
	}
	return int(h.LevelCount)
}

// decodeHeader reads the header from the start of data. Fails closed on a
// bad magic signature.
func decodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("ktx2: file too short for header: %d bytes", len(data))
	}
	if !bytes.Equal(data[:12], Identifier[:]) {
		return h, fmt.Errorf("ktx2: bad magic signature")
	}
	le := binary.LittleEndian
	h.VkFormat = le.Uint32(data[12:])
	h.TypeSize = le.Uint32(data[16:])
	h.PixelWidth = le.Uint32(data[20:])
	h.PixelHeight = le.Uint32(data[24:])
	h.PixelDepth = le.Uint32(data[28:])
	h.LayerCount = le.Uint32(data[32:])
	h.FaceCount = le.Uint32(data[36:])
	h.LevelCount = le.Uint32(data[40:])
	h.SupercompressionScheme = le.Uint32(data[44:])
	h.DFDByteOffset = le.Uint32(data[48:])
	h.DFDByteLength = le.Uint32(data[52:])
	h.KVDByteOffset = le.Uint32(data[56:])
	h.KVDByteLength = le.Uint32(data[60:])
	h.SGDByteOffset = le.Uint64(data[64:])
	h.SGDByteLength = le.Uint64(data[72:])
	return h, nil
}

// encodeHeader writes the header into the first HeaderSize bytes of data.
func (h *Header) encodeHeader(data []byte) {
	le := binary.LittleEndian
	copy(data[:12], Identifier[:])
	le.PutUint32(data[12:], h.VkFormat)
	le.PutUint32(data[16:], h.TypeSize)
	le.PutUint32(data[20:], h.PixelWidth)
	le.PutUint32(data[24:], h.PixelHeight)
	le.PutUint32(data[28:], h.PixelDepth)
	le.PutUint32(data[32:], h.LayerCount)
	le.PutUint32(data[36:], h.FaceCount)
	le.PutUint32(data[40:], h.LevelCount)
	le.PutUint32(data[44:], h.SupercompressionScheme)
	le.PutUint32(data[48:], h.DFDByteOffset)
	le.PutUint32(data[52:], h.DFDByteLength)
	le.PutUint32(data[56:], h.KVDByteOffset)
	le.PutUint32(data[60:], h.KVDByteLength)
	le.PutUint64(data[64:], h.SGDByteOffset)
	le.PutUint64(data[72:], h.SGDByteLength)
}

func decodeLevelIndex(data []byte, n int) ([]LevelEntry, error) {
	need := HeaderSize + n*LevelEntrySize
	if len(data) < need {
		return nil, fmt.Errorf("ktx2: file too short for %d level index entries: %d bytes", n, len(data))
	}
	le := binary.LittleEndian
	levels := make([]LevelEntry, n)
	for i := range levels {
		off := HeaderSize + i*LevelEntrySize
		levels[i] = LevelEntry{
			ByteOffset:             le.Uint64(data[off:]),
			ByteLength:             le.Uint64(data[off+8:]),
			UncompressedByteLength: le.Uint64(data[off+16:]),
		}
	}
	return levels, nil
}

func encodeLevelIndex(data []byte, levels []LevelEntry) {
	le := binary.LittleEndian
	for i, lv := range levels {
		off := HeaderSize + i*LevelEntrySize
		le.PutUint64(data[off:], lv.ByteOffset)
		le.PutUint64(data[off+8:], lv.ByteLength)
		le.PutUint64(data[off+16:], lv.UncompressedByteLength)
	}
}
