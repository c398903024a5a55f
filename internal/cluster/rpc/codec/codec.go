// Package codec registers a JSON grpc.Codec so the cluster coordination
// service (internal/cluster/rpc) can run over google.golang.org/grpc
// without a protoc-generated protobuf marshaler. Raft's own RPCs never
// use this codec: hashicorp/raft's TCPTransport carries AppendEntries/
// RequestVote/InstallSnapshot natively; this codec only backs
// ClusterCoordination's own four RPCs (DistributeConfig, StartTest,
// StopTest, HealthCheck).
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const Name = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return Name }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
