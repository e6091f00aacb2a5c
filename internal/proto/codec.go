// Package proto defines the draftkeeper gRPC contract: request and response
// messages, the service descriptor, and the client stub.
//
// Messages travel as JSON through a codec registered with grpc's encoding
// registry under the "json" content-subtype; timestamps use the well-known
// protobuf Timestamp type.
package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype used by every call of the service.
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
