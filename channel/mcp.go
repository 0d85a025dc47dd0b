package channel

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ytscribe/kit"
	"github.com/hazyhaar/ytscribe/transcript"
)

// RegisterMCP registers the transcript tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerExtractTool(srv)
	s.registerListTabsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- transcript_extract ---

type extractToolRequest struct {
	URL   string `json:"url,omitempty"`
	TabID string `json:"tab_id,omitempty"`
}

func (s *Server) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "transcript_extract",
		Description: "Extract the transcript of a YouTube video by opening its transcript panel. Opens url in a new tab if given, otherwise uses tab_id or the active tab.",
		InputSchema: inputSchema(map[string]any{
			"url":    map[string]any{"type": "string", "description": "Watch page URL to open first"},
			"tab_id": map[string]any{"type": "string", "description": "Existing tab ID (default: active tab)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractToolRequest)
		tabID := r.TabID
		if r.URL != "" {
			info, err := s.openTab(ctx, r.URL)
			if err != nil {
				return nil, err
			}
			tabID = info.ID
		}
		out, err := s.extract(ctx, &extractCall{TabID: tabID, Request: transcript.ExtractRequest()})
		if err != nil {
			return nil, err
		}
		resp := out.(transcript.Response)
		if _, ok := resp.Text(); !ok {
			if resp.Error == "" {
				return nil, errors.New(transcript.MsgNoSegments)
			}
			return nil, errors.New(resp.Error)
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r extractToolRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- transcript_tabs ---

func (s *Server) registerListTabsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "transcript_tabs",
		Description: "List the browser tabs the transcript daemon has open.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.tabs.List(ctx), nil
	}

	decode := func(*mcp.CallToolRequest) (any, error) {
		return nil, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
