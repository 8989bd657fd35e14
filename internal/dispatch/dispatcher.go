// Package dispatch maps a named tool call onto one load, mutate and store
// cycle against the caller's blob.
//
// A call decodes and validates its arguments first, so malformed calls never
// touch storage. Read-only tools load the blob and never write. Mutating
// tools run inside store.Blobs.UpdateBlob, which serializes cycles per user.
// Once a cycle has started it completes even if the caller goes away.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/codec"
	"github.com/HendryAvila/compass/internal/graph"
	"github.com/HendryAvila/compass/internal/metrics"
	"github.com/HendryAvila/compass/internal/store"
	"github.com/HendryAvila/compass/internal/vault"
)

// Tool names. These are the wire contract.
const (
	ToolGetGraph          = "get_graph"
	ToolReplaceGraph      = "replace_graph"
	ToolAddObjective      = "add_objective"
	ToolAddDeliverable    = "add_deliverable"
	ToolUpdateObjective   = "update_objective"
	ToolUpdateDeliverable = "update_deliverable"
	ToolDeleteItem        = "delete_item"
	ToolLinkItems         = "link_items"
	ToolUnlinkItems       = "unlink_items"
)

// Result is the transport-neutral outcome of a successful call.
type Result struct {
	Tool string
	// Graph is the graph after the call.
	Graph *graph.Graph
	// Entity is the created or updated objective/deliverable, if any.
	Entity any
}

// ReplaceInput is the argument object of replace_graph.
type ReplaceInput struct {
	Data json.RawMessage `json:"data" validate:"required"`
}

// DeleteInput is the argument object of delete_item.
type DeleteInput struct {
	ID string `json:"id" validate:"required"`
}

// UnlinkInput is the argument object of unlink_items.
type UnlinkInput struct {
	ObjectiveID   string `json:"objectiveId" validate:"required"`
	DeliverableID string `json:"deliverableId" validate:"required"`
}

// mutation edits a loaded graph and returns the graph to store plus the
// entity to echo back.
type mutation func(g *graph.Graph) (*graph.Graph, any, error)

// prepare decodes a tool's arguments. A nil mutation marks a read-only tool.
type prepare func(args map[string]any) (mutation, error)

var catalog = map[string]prepare{
	ToolGetGraph: func(map[string]any) (mutation, error) {
		return nil, nil
	},
	ToolReplaceGraph: func(args map[string]any) (mutation, error) {
		var in ReplaceInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			return graph.Replace(g, in.Data), nil, nil
		}, nil
	},
	ToolAddObjective: func(args map[string]any) (mutation, error) {
		var in graph.ObjectiveInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			return g, graph.AddObjective(g, in), nil
		}, nil
	},
	ToolAddDeliverable: func(args map[string]any) (mutation, error) {
		var in graph.DeliverableInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			return g, graph.AddDeliverable(g, in), nil
		}, nil
	},
	ToolUpdateObjective: func(args map[string]any) (mutation, error) {
		var in graph.ObjectivePatch
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			o, err := graph.UpdateObjective(g, in)
			if err != nil {
				return nil, nil, err
			}
			return g, o, nil
		}, nil
	},
	ToolUpdateDeliverable: func(args map[string]any) (mutation, error) {
		var in graph.DeliverablePatch
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			d, err := graph.UpdateDeliverable(g, in)
			if err != nil {
				return nil, nil, err
			}
			return g, d, nil
		}, nil
	},
	ToolDeleteItem: func(args map[string]any) (mutation, error) {
		var in DeleteInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			graph.Delete(g, in.ID)
			return g, nil, nil
		}, nil
	},
	ToolLinkItems: func(args map[string]any) (mutation, error) {
		var in graph.LinkInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			if err := graph.Link(g, in); err != nil {
				return nil, nil, err
			}
			return g, nil, nil
		}, nil
	},
	ToolUnlinkItems: func(args map[string]any) (mutation, error) {
		var in UnlinkInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return func(g *graph.Graph) (*graph.Graph, any, error) {
			if err := graph.Unlink(g, in.ObjectiveID, in.DeliverableID); err != nil {
				return nil, nil, err
			}
			return g, nil, nil
		}, nil
	},
}

// Known reports whether name is in the tool catalog.
func Known(name string) bool {
	_, ok := catalog[name]
	return ok
}

// ─── Dispatcher ──────────────────────────────────────────────────────────────

// Dispatcher runs tool calls against a blob store.
type Dispatcher struct {
	blobs   store.Blobs
	log     *zap.Logger
	metrics *metrics.Collector
}

// New creates a Dispatcher. log and m may be nil.
func New(blobs store.Blobs, log *zap.Logger, m *metrics.Collector) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{blobs: blobs, log: log, metrics: m}
}

// Call runs tool with args on behalf of ident.
func (d *Dispatcher) Call(ctx context.Context, tool string, args map[string]any, ident auth.Identity) (res *Result, err error) {
	start := time.Now()
	defer func() { d.observe(tool, ident, start, err) }()

	build, ok := catalog[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	mutate, err := build(args)
	if err != nil {
		return nil, err
	}
	if mutate == nil {
		g, err := d.load(ctx, ident)
		if err != nil {
			return nil, err
		}
		return &Result{Tool: tool, Graph: g}, nil
	}

	var (
		out    *graph.Graph
		entity any
	)
	cycle := func(current string) (string, error) {
		g, err := codec.Load(current, ident.EncryptionEnabled, ident.Passphrase)
		if err != nil {
			return "", err
		}
		next, ent, err := mutate(g)
		if err != nil {
			return "", err
		}
		raw, err := codec.Store(next, ident.EncryptionEnabled, ident.Passphrase)
		if err != nil {
			return "", err
		}
		out, entity = next, ent
		return raw, nil
	}
	if err := d.blobs.UpdateBlob(context.WithoutCancel(ctx), ident.UserID, cycle); err != nil {
		return nil, err
	}
	return &Result{Tool: tool, Graph: out, Entity: entity}, nil
}

// Graph loads the caller's graph without going through the tool catalog.
func (d *Dispatcher) Graph(ctx context.Context, ident auth.Identity) (*graph.Graph, error) {
	return d.load(ctx, ident)
}

func (d *Dispatcher) load(ctx context.Context, ident auth.Identity) (*graph.Graph, error) {
	raw, _, err := d.blobs.GetBlob(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	return codec.Load(raw, ident.EncryptionEnabled, ident.Passphrase)
}

func (d *Dispatcher) observe(tool string, ident auth.Identity, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		info := Classify(err)
		outcome = info.Code
		fields := []zap.Field{
			zap.String("tool", tool),
			zap.String("user_id", ident.UserID),
			zap.String("code", info.Code),
			zap.Error(err),
		}
		switch {
		case errors.Is(err, vault.ErrDecryptionFailed) && ident.Verified:
			// The verifier accepted this passphrase, so the blob itself is
			// damaged or was sealed under a different key.
			d.log.Error("blob failed to decrypt under a verified passphrase", fields...)
		case info.Code == CodeInternal:
			d.log.Error("tool call failed", fields...)
		default:
			d.log.Debug("tool call rejected", fields...)
		}
	}
	if !Known(tool) {
		tool = "unknown"
	}
	d.metrics.ObserveToolCall(tool, outcome, elapsed)
}
