package grpcio

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec lets this package exercise google.golang.org/grpc without
// fabricating protoc-generated message types: grpc-go's encoding.Codec
// is a first-class, pluggable wire format, and gob already serializes
// every raft.Message payload struct with no schema of its own to
// maintain.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return "gob" }
