package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/notes"
	"github.com/hpungsan/murmur/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *notes.Store
	cfg   *config.Config
	log   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *notes.Store, cfg *config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, cfg: cfg, log: logging.OrDiscard(logger)}
}

// CreateRequest represents the arguments for note_create.
type CreateRequest struct {
	Content string `json:"content"`
}

// ListRequest represents the arguments for note_list.
type ListRequest struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// IDRequest represents the arguments for note_fetch and note_delete.
type IDRequest struct {
	ID string `json:"id"`
}

// PathRequest represents the arguments for note_export and note_import.
type PathRequest struct {
	Path string `json:"path,omitempty"`
}

// HandleCreate handles the note_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Create(ctx, h.store, ops.CreateInput{Content: input.Content})
	if err != nil {
		return h.fail("note_create", err), nil
	}
	return successResult(result)
}

// HandleList handles the note_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(h.store, ops.ListInput{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return h.fail("note_list", err), nil
	}
	return successResult(result)
}

// HandleFetch handles the note_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(h.store, ops.FetchInput{ID: input.ID})
	if err != nil {
		return h.fail("note_fetch", err), nil
	}
	return successResult(result)
}

// HandleDelete handles the note_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.store, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return h.fail("note_delete", err), nil
	}
	return successResult(result)
}

// HandleExport handles the note_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return h.fail("note_export", err), nil
	}
	return successResult(result)
}

// HandleImport handles the note_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.store, h.cfg, ops.ImportInput{Path: input.Path})
	if err != nil {
		return h.fail("note_import", err), nil
	}
	return successResult(result)
}

// fail logs server-side failures and converts err to a tool error result.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if me, ok := errors.As(err); !ok || me.Status >= 500 {
		h.log.Error("tool failed", slog.String("tool", tool), slog.Any("error", err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if me, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    me.Code,
			"message": me.Message,
			"status":  me.Status,
		}
		// Internal errors may carry file paths or SQL text
		if me.Code != errors.ErrInternal && me.Details != nil {
			errorObj["details"] = me.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
