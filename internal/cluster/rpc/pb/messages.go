// Package pb holds the wire messages and service descriptor for the
// ClusterCoordination gRPC service. In a
// normal build these would be protoc-gen-go/protoc-gen-go-grpc output;
// since the toolchain cannot be invoked here, they are hand-authored as
// plain JSON-tagged structs carried by the internal/cluster/rpc/codec
// JSON grpc.Codec instead of protobuf wire encoding (see DESIGN.md for
// why protobuf's generated-descriptor machinery was not faked by hand).
package pb

// DistributeConfigRequest proxies a SetConfig write to the Raft leader.
type DistributeConfigRequest struct {
	YAMLContent   string `json:"yaml_content"`
	ConfigVersion string `json:"config_version"`
}

// DistributeConfigResponse reports whether the write was committed, and
// if not, which peer the caller should redirect to.
type DistributeConfigResponse struct {
	Accepted   bool   `json:"accepted"`
	LeaderHint string `json:"leader_hint,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StartTestRequest and StopTestRequest are reserved
// ("may be unimplemented in first release"): the wire shape is fixed so
// future releases can implement them without breaking compatibility.
type StartTestRequest struct{}
type StartTestResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type StopTestRequest struct{}
type StopTestResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// HealthCheckRequest carries no fields; health is always reported for
// the responding node.
type HealthCheckRequest struct{}

// HealthCheckResponse is the payload the RPC health check returns. The
// GET /health/cluster HTTP endpoint serves discovery.HealthResponse
// instead.
type HealthCheckResponse struct {
	NodeID      string `json:"node_id"`
	State       string `json:"state"`
	Region      string `json:"region"`
	ClusterReady bool   `json:"cluster_ready"`
	PeerCount   int    `json:"peer_count"`
}
