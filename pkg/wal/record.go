package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// On-disk record framing: [u32 length][length bytes of body], where
// body is [compressed payload][u32 crc32 of the compressed payload].
// The CRC32 trailer guards against bit-rot within an otherwise
// length-complete record.
func encodeRecord(codec *payloadCodec, rawPayload []byte) []byte {
	compressed := codec.compress(rawPayload)
	crc := crc32.ChecksumIEEE(compressed)

	body := make([]byte, len(compressed)+4)
	copy(body, compressed)
	binary.LittleEndian.PutUint32(body[len(compressed):], crc)

	rec := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(len(body)))
	copy(rec[4:], body)
	return rec
}

// readRecord reads one record from r, returning the decompressed
// payload. It returns io.EOF when r is exhausted at a record boundary,
// ErrTruncated when the length prefix promises bytes the file does not
// have, and ErrCorrupted when the CRC32 trailer does not match (bit-rot
// within an otherwise complete record). Both truncation and corruption
// are recoverable conditions: callers treat them as the end of a WAL
// file's valid records rather than a hard failure.
func readRecord(r io.Reader, codec *payloadCodec) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}

	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if bodyLen < 4 {
		return nil, ErrCorrupted
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, ErrTruncated
	}

	compressed := body[:len(body)-4]
	storedCRC := binary.LittleEndian.Uint32(body[len(body)-4:])
	if crc32.ChecksumIEEE(compressed) != storedCRC {
		return nil, ErrCorrupted
	}

	raw, err := codec.decompress(compressed)
	if err != nil {
		return nil, ErrCorrupted
	}
	return raw, nil
}
