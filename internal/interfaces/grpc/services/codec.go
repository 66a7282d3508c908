package services

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of the JSON codec.
const CodecName = "json"

// JSONCodec carries the public wire types as JSON over gRPC, so clients
// need no generated stubs.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                               { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

//Personal.AI order the ending
