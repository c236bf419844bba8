package peer

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("peer: zstd encoder init: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("peer: zstd decoder init: %v", err))
	}
}

// encodeEnvelope marshals payload to JSON and wraps it in an Envelope,
// applying zstd compression to the JSON body when requested.
func encodeEnvelope(kind string, payload any, compression Compression) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("peer: marshal %s payload: %w", kind, err)
	}
	if compression == CompressionZstd {
		body = zstdEncoder.EncodeAll(body, make([]byte, 0, len(body)))
	}
	return Envelope{
		Version:     ProtocolVersion,
		Compression: compression,
		Kind:        kind,
		Payload:     body,
	}, nil
}

// decodeEnvelope reverses encodeEnvelope into out.
func decodeEnvelope(env Envelope, out any) error {
	body := env.Payload
	if env.Compression == CompressionZstd {
		decoded, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("peer: zstd decode %s payload: %w", env.Kind, err)
		}
		body = decoded
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("peer: unmarshal %s payload: %w", env.Kind, err)
	}
	return nil
}
