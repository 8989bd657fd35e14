// Package transport carries JSON-RPC messages between MCP clients and the
// shared method table.
//
// Two transports are offered. Line serves one newline-delimited stream, the
// way a local stdio client talks. Sessions serves long-lived SSE streams with
// POSTed messages for remote clients. Both resolve the caller once, when the
// connection opens, and hand that identity to every request through the
// context.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/auth"
)

// MessageHandler dispatches one JSON-RPC message. *server.MCPServer
// implements it. A nil reply means the message was a notification.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage
}

// identify resolves creds and stores the outcome in ctx. A failed resolution
// does not close the connection: initialize and tools/list still work, and
// tool calls report the error.
func identify(ctx context.Context, resolver auth.Resolver, creds auth.Credentials) (context.Context, auth.Identity, error) {
	ident, err := resolver.Resolve(ctx, creds)
	if err != nil {
		return auth.WithError(ctx, err), auth.Identity{}, err
	}
	return auth.WithIdentity(ctx, ident), ident, nil
}

// ─── Line transport ──────────────────────────────────────────────────────────

// Line serves newline-delimited JSON-RPC over a pair of streams.
type Line struct {
	handler  MessageHandler
	resolver auth.Resolver
	creds    auth.Credentials
	log      *zap.Logger
}

// NewLine creates a Line transport. creds are resolved once per Serve.
func NewLine(handler MessageHandler, resolver auth.Resolver, creds auth.Credentials, log *zap.Logger) *Line {
	if log == nil {
		log = zap.NewNop()
	}
	return &Line{handler: handler, resolver: resolver, creds: creds, log: log}
}

type readResult struct {
	line []byte
	err  error
}

// Serve reads requests from in and writes replies to out until in reaches
// EOF or ctx is cancelled; both end the connection cleanly. Lines are
// handled one at a time, in order.
func (l *Line) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, ident, err := identify(ctx, l.resolver, l.creds)
	if err != nil {
		l.log.Warn("identity resolution failed; tool calls will be rejected", zap.Error(err))
	} else {
		l.log.Info("line transport open",
			zap.String("user_id", ident.UserID),
			zap.Bool("encrypted", ident.EncryptionEnabled),
		)
	}

	reads := make(chan readResult)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			select {
			case reads <- readResult{line: line, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("line transport closed", zap.String("reason", "context cancelled"))
			return nil
		case r := <-reads:
			if msg := bytes.TrimSpace(r.line); len(msg) > 0 {
				if err := l.handle(ctx, msg, out); err != nil {
					return err
				}
			}
			if r.err == io.EOF {
				l.log.Info("line transport closed", zap.String("reason", "end of input"))
				return nil
			}
			if r.err != nil {
				return fmt.Errorf("transport: read: %w", r.err)
			}
		}
	}
}

func (l *Line) handle(ctx context.Context, msg []byte, out io.Writer) error {
	reply := l.handler.HandleMessage(ctx, json.RawMessage(msg))
	if reply == nil {
		return nil
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("transport: encode reply: %w", err)
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}
