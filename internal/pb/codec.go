package pb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// wireMessage is implemented by every message type in this package. grpc's
// default codec name is "proto"; registering under that name here means the
// standard transport (including content-type negotiation) works unchanged
// even though encoding/proto and a real .pb.go are absent.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("pb: %T does not implement wireMessage", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("pb: %T does not implement wireMessage", v)
	}
	return m.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(codec{})
}
