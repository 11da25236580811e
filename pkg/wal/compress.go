package wal

import "github.com/klauspost/compress/zstd"

// payloadCodec applies the symmetric payload transform at the WAL
// boundary: zstd on write, matching decompress on read. Both
// the encoder and decoder are safe for concurrent use via their
// stateless EncodeAll/DecodeAll entry points, so one codec is shared by
// every Append/Replay call on a WAL.
type payloadCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newPayloadCodec() (*payloadCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &payloadCodec{enc: enc, dec: dec}, nil
}

func (c *payloadCodec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, nil)
}

func (c *payloadCodec) decompress(compressed []byte) ([]byte, error) {
	return c.dec.DecodeAll(compressed, nil)
}

func (c *payloadCodec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
