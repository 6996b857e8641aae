// Package camundatest provides an in-memory job client for handler tests.
package camundatest

import (
	"context"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

// Call is one command received by the gateway, with the state of the
// context it was sent on.
type Call struct {
	Kind       string
	JobKey     int64
	Variables  string
	ErrorCode  string
	Retries    int32
	ContextErr error
}

// Gateway records complete, fail and throw-error commands. Any other
// gateway RPC panics on the nil embedded client.
type Gateway struct {
	pb.GatewayClient

	mu    sync.Mutex
	calls []Call
}

func (g *Gateway) add(c Call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
}

// Calls returns a copy of the recorded commands.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

func (g *Gateway) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.add(Call{Kind: "complete", JobKey: in.GetJobKey(), Variables: in.GetVariables(), ContextErr: ctx.Err()})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pb.CompleteJobResponse{}, nil
}

func (g *Gateway) FailJob(ctx context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.add(Call{Kind: "fail", JobKey: in.GetJobKey(), Variables: in.GetVariables(), Retries: in.GetRetries(), ContextErr: ctx.Err()})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pb.FailJobResponse{}, nil
}

func (g *Gateway) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.add(Call{Kind: "throw", JobKey: in.GetJobKey(), Variables: in.GetVariables(), ErrorCode: in.GetErrorCode(), ContextErr: ctx.Err()})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pb.ThrowErrorResponse{}, nil
}

func noRetry(context.Context, error) bool { return false }

// JobClient satisfies worker.JobClient on top of a Gateway.
type JobClient struct {
	Gateway *Gateway
}

func NewJobClient() *JobClient {
	return &JobClient{Gateway: &Gateway{}}
}

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.Gateway, noRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.Gateway, noRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.Gateway, noRetry)
}

// NewJob builds an activated job carrying the given variables.
func NewJob(key int64, variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       key,
		Type:      "test",
		Retries:   3,
		Variables: variables,
	}}
}
