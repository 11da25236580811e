package hashindex

import "encoding/binary"

// Slot metadata tags.  defines only Free(0)/Occupied(1); per
// DESIGN.md's resolution of open question 2, slabkv adds a third
// Tombstone state so linear probing remains correct across
// delete-then-reinsert without changing the on-disk slot width (still
// one tag byte).
const (
	metaFree      byte = 0
	metaOccupied  byte = 1
	metaTombstone byte = 2
)

// DataInfo is the hash-index value: a 12-byte little-endian record of
// {data_id, data_len}.
type DataInfo struct {
	DataID  uint64
	DataLen uint32
}

const dataInfoSize = 12

func encodeDataInfo(d DataInfo) []byte {
	buf := make([]byte, dataInfoSize)
	binary.LittleEndian.PutUint64(buf[0:8], d.DataID)
	binary.LittleEndian.PutUint32(buf[8:12], d.DataLen)
	return buf
}

func decodeDataInfo(buf []byte) DataInfo {
	return DataInfo{
		DataID:  binary.LittleEndian.Uint64(buf[0:8]),
		DataLen: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// slotCodec knows the fixed width of a slot for a given key size and
// encodes/decodes the three fields: meta(1) | key(key_size) | DataInfo(12).
type slotCodec struct {
	keySize int
}

func (c slotCodec) width() int { return 1 + c.keySize + dataInfoSize }

func (c slotCodec) encode(meta byte, key []byte, info DataInfo) []byte {
	buf := make([]byte, c.width())
	buf[0] = meta
	copy(buf[1:1+c.keySize], key)
	copy(buf[1+c.keySize:], encodeDataInfo(info))
	return buf
}

func (c slotCodec) decodeMeta(buf []byte) byte { return buf[0] }

func (c slotCodec) decodeKey(buf []byte) []byte {
	return buf[1 : 1+c.keySize]
}

func (c slotCodec) decodeInfo(buf []byte) DataInfo {
	return decodeDataInfo(buf[1+c.keySize:])
}
