package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) GetBatchStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	batchID := in.GetFields()["batchId"].GetStringValue()
	if batchID == "" {
		return nil, status.Error(codes.InvalidArgument, "batchId is required")
	}

	resp, err := s.batches.BatchStatus(ctx, userID, batchID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		s.logger.Error(ctx, "batch status failed", "batch_id", batchID, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	out, err := toStruct(resp)
	if err != nil {
		s.logger.Error(ctx, "batch status encoding failed", "batch_id", batchID, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// toStruct converts v through its JSON form so that field names match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
