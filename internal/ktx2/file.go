package ktx2

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// File is a parsed container held fully in memory. Data is the complete
// file image; Header and Levels mirror its header region and are written
// back on Serialize.
type File struct {
	Header Header
	Levels []LevelEntry
	Data   []byte
}

// Parse decodes a container from its raw bytes. The data slice is copied;
// later mutation of the input does not affect the file.
func Parse(data []byte) (*File, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	levels, err := decodeLevelIndex(data, h.indexLevels())
	if err != nil {
		return nil, err
	}
	return &File{
		Header: h,
		Levels: levels,
		Data:   append([]byte(nil), data...),
	}, nil
}

// Serialize re-encodes the header and level index into the file image and
// returns it. This is the single write path for every offset field.
func (f *File) Serialize() []byte {
	f.Header.encodeHeader(f.Data)
	encodeLevelIndex(f.Data, f.Levels)
	return f.Data
}

// levelIndexEnd is the first byte after the level index array.
func (f *File) levelIndexEnd() uint32 {
	return uint32(HeaderSize + len(f.Levels)*LevelEntrySize)
}

// InsertKeyValue splices a new key/value entry into the key/value data
// section, creating the section after the DFD when none exists, and
// re-points every absolute offset at or after the insertion point.
func (f *File) InsertKeyValue(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("ktx2: empty key")
	}

	entry := encodeKeyValue(key, value)

	// Insertion point: end of the existing KVD, or directly after the DFD
	// (after the level index if the file has no DFD either).
	var ip uint32
	switch {
	case f.Header.KVDByteLength > 0:
		ip = f.Header.KVDByteOffset + f.Header.KVDByteLength
	case f.Header.DFDByteLength > 0:
		ip = f.Header.DFDByteOffset + f.Header.DFDByteLength
		f.Header.KVDByteOffset = ip
	default:
		ip = f.levelIndexEnd()
		f.Header.KVDByteOffset = ip
	}
	if int(ip) > len(f.Data) {
		return fmt.Errorf("ktx2: insertion point %d beyond file size %d", ip, len(f.Data))
	}

	shift := uint64(len(entry))
	spliced := make([]byte, 0, len(f.Data)+len(entry))
	spliced = append(spliced, f.Data[:ip]...)
	spliced = append(spliced, entry...)
	spliced = append(spliced, f.Data[ip:]...)
	f.Data = spliced

	// Every offset at or after the insertion point moves by the inserted
	// size; everything before it stays untouched. A one-entry miss here
	// corrupts every mip level a GPU loader reads.
	if f.Header.DFDByteLength > 0 && f.Header.DFDByteOffset >= ip {
		f.Header.DFDByteOffset += uint32(shift)
	}
	if f.Header.SGDByteLength > 0 && f.Header.SGDByteOffset >= uint64(ip) {
		f.Header.SGDByteOffset += shift
	}
	for i := range f.Levels {
		if f.Levels[i].ByteOffset >= uint64(ip) {
			f.Levels[i].ByteOffset += shift
		}
	}
	f.Header.KVDByteLength += uint32(shift)

	f.Serialize()
	return nil
}

// encodeKeyValue builds one KVD entry: a little-endian length prefix over
// key + NUL + value, then the bytes, zero-padded to 4-byte alignment.
func encodeKeyValue(key string, value []byte) []byte {
	kvLen := uint32(len(key) + 1 + len(value))
	entry := make([]byte, 0, 4+kvLen+3)
	entry = binary.LittleEndian.AppendUint32(entry, kvLen)
	entry = append(entry, key...)
	entry = append(entry, 0)
	entry = append(entry, value...)
	for len(entry)%4 != 0 {
		entry = append(entry, 0)
	}
	return entry
}

// KeyValues parses the key/value data section. Returns an empty map when
// the file has none.
func (f *File) KeyValues() (map[string][]byte, error) {
	out := make(map[string][]byte)
	if f.Header.KVDByteLength == 0 {
		return out, nil
	}
	start := int(f.Header.KVDByteOffset)
	end := start + int(f.Header.KVDByteLength)
	if start < 0 || end > len(f.Data) {
		return nil, fmt.Errorf("ktx2: key/value section [%d,%d) outside file", start, end)
	}
	data := f.Data[start:end]
	for len(data) >= 4 {
		kvLen := int(binary.LittleEndian.Uint32(data))
		if kvLen == 0 || 4+kvLen > len(data) {
			return nil, fmt.Errorf("ktx2: malformed key/value entry of %d bytes", kvLen)
		}
		kv := data[4 : 4+kvLen]
		nul := -1
		for i, b := range kv {
			if b == 0 {
				nul = i
				break
			}
		}
		if nul < 0 {
			return nil, fmt.Errorf("ktx2: key/value entry without NUL terminator")
		}
		out[string(kv[:nul])] = append([]byte(nil), kv[nul+1:]...)

		adv := 4 + kvLen
		if rem := adv % 4; rem != 0 {
			adv += 4 - rem
		}
		if adv > len(data) {
			break
		}
		data = data[adv:]
	}
	return out, nil
}

// VerifyLevels checks that every level index entry lies inside the file
// and, for Zstandard-supercompressed files, that each level decompresses
// to its recorded uncompressed length.
func (f *File) VerifyLevels() error {
	var dec *zstd.Decoder
	if f.Header.SupercompressionScheme == SupercompressionZstd {
		var err error
		dec, err = zstd.NewReader(nil)
		if err != nil {
			return fmt.Errorf("ktx2: zstd init: %w", err)
		}
		defer dec.Close()
	}

	for i, lv := range f.Levels {
		end := lv.ByteOffset + lv.ByteLength
		if end > uint64(len(f.Data)) {
			return fmt.Errorf("ktx2: level %d [%d,%d) outside file of %d bytes", i, lv.ByteOffset, end, len(f.Data))
		}
		if dec == nil {
			continue
		}
		raw, err := dec.DecodeAll(f.Data[lv.ByteOffset:end], nil)
		if err != nil {
			return fmt.Errorf("ktx2: level %d: zstd: %w", i, err)
		}
		if uint64(len(raw)) != lv.UncompressedByteLength {
			return fmt.Errorf("ktx2: level %d decompresses to %d bytes, index says %d",
				i, len(raw), lv.UncompressedByteLength)
		}
	}
	return nil
}
