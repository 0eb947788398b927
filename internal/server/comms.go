package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/order-assistant/pkg/toolserver"
)

// invokeReply is the COMMS reply envelope. Exactly one of Result or Detail is set.
type invokeReply struct {
	Ok     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// subscribeInvoke answers tool invocations on subject with the same router as POST /mcp/invoke.
func (s *Server) subscribeInvoke(ctx context.Context, subject string) (*comms.Subscription, error) {
	sub, err := s.nc.Subscribe(subject, func(msg *comms.Msg) {
		data, err := json.Marshal(s.invoke(ctx, msg.Data))
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", logPrefix, err))
			return
		}
		msg.Respond(data)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	return sub, nil
}

func (s *Server) invoke(ctx context.Context, data []byte) *invokeReply {
	var req toolserver.InvokeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Tool == "" {
		return &invokeReply{Status: 400, Detail: "invalid request body"}
	}
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, terr := s.router.Dispatch(reqCtx, &req)
	if terr != nil {
		return &invokeReply{Status: terr.Status, Detail: terr.Detail}
	}
	return &invokeReply{Ok: true, Result: result}
}
