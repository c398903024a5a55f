package rpc

import (
	"context"

	"github.com/sayl/loadgen/internal/cluster/raftfsm"
	"github.com/sayl/loadgen/internal/cluster/rpc/pb"
)

// Server implements pb.ClusterCoordinationServer against one node's Raft
// instance and state tracker.
type Server struct {
	pb.UnimplementedClusterCoordinationServer

	NodeID  string
	Region  string
	Node    *raftfsm.Node
	State   *StateTracker
	PeerCount func() int
}

// DistributeConfig proxies a SetConfig write to Raft. Non-leaders report the current leader
// address as a hint so the caller can redirect.
func (s *Server) DistributeConfig(ctx context.Context, req *pb.DistributeConfigRequest) (*pb.DistributeConfigResponse, error) {
	if err := s.Node.ApplySetConfig(req.YAMLContent, req.ConfigVersion); err != nil {
		if err == raftfsm.ErrNotLeader {
			return &pb.DistributeConfigResponse{Accepted: false, LeaderHint: s.Node.LeaderAddr()}, nil
		}
		return &pb.DistributeConfigResponse{Accepted: false, Error: err.Error()}, nil
	}
	return &pb.DistributeConfigResponse{Accepted: true}, nil
}

// StartTest and StopTest are reserved.
func (s *Server) StartTest(ctx context.Context, req *pb.StartTestRequest) (*pb.StartTestResponse, error) {
	return &pb.StartTestResponse{Accepted: false, Error: "not implemented"}, nil
}

func (s *Server) StopTest(ctx context.Context, req *pb.StopTestRequest) (*pb.StopTestResponse, error) {
	return &pb.StopTestResponse{Accepted: false, Error: "not implemented"}, nil
}

// HealthCheck reports this node's state-model view.
func (s *Server) HealthCheck(ctx context.Context, req *pb.HealthCheckRequest) (*pb.HealthCheckResponse, error) {
	peers := 0
	if s.PeerCount != nil {
		peers = s.PeerCount()
	}
	return &pb.HealthCheckResponse{
		NodeID:       s.NodeID,
		State:        s.State.Get().String(),
		Region:       s.Region,
		ClusterReady: s.State.ClusterReady(),
		PeerCount:    peers,
	}, nil
}
