// Package rpc carries the internal request/response messages between the
// gateway and the authentication service over gRPC.
//
// Messages are plain Go structs from internal/model encoded with a JSON
// codec, so no generated protobuf code is involved. Clients must select the
// codec per call with grpc.CallContentSubtype(CodecName); the health service
// keeps using protobuf on the same connection.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the JSON codec.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
