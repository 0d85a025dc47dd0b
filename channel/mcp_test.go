package channel

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ytscribe/tabs"
	"github.com/hazyhaar/ytscribe/transcript"
)

var testImpl = &mcp.Implementation{Name: "ytscribe-test", Version: "0.1.0"}

// mcpSession registers the tools on a fresh server and returns a connected
// client session.
func mcpSession(t *testing.T) (*tabs.Registry, *mcp.ClientSession) {
	t.Helper()
	s, reg := testServer(t)

	srv := mcp.NewServer(testImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return reg, session
}

// callTool invokes a tool and returns the result.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("no content")
	}
	tc, ok := r.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", r.Content[0])
	}
	return tc.Text
}

func TestMCP_ExtractOpensURL(t *testing.T) {
	reg, session := mcpSession(t)

	res := callTool(t, session, "transcript_extract", map[string]any{"url": videoURL})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var resp transcript.Response
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatal(err)
	}
	if text, ok := resp.Text(); !ok || text != "hello world" {
		t.Errorf("got %+v", resp)
	}
	if n := len(reg.List(context.Background())); n != 1 {
		t.Errorf("tabs after url extract: %d", n)
	}
}

func TestMCP_ExtractActiveTab(t *testing.T) {
	reg, session := mcpSession(t)
	reg.Open(context.Background(), videoURL)

	res := callTool(t, session, "transcript_extract", map[string]any{})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "hello world") {
		t.Errorf("got %s", resultText(t, res))
	}
}

func TestMCP_ExtractFailureIsToolError(t *testing.T) {
	reg, session := mcpSession(t)
	info, _ := reg.Open(context.Background(), otherURL)

	res := callTool(t, session, "transcript_extract", map[string]any{"tab_id": info.ID})
	if !res.IsError {
		t.Fatalf("expected tool error, got %s", resultText(t, res))
	}
	if got := resultText(t, res); got != transcript.MsgNotVideoPage {
		t.Errorf("message: got %q", got)
	}

	res = callTool(t, session, "transcript_extract", map[string]any{"tab_id": "missing"})
	if !res.IsError {
		t.Error("unknown tab should be a tool error")
	}
}

func TestMCP_ExtractRefusesLocalURL(t *testing.T) {
	reg, session := mcpSession(t)

	res := callTool(t, session, "transcript_extract", map[string]any{"url": "http://localhost:8765/tabs"})
	if !res.IsError {
		t.Fatalf("expected tool error, got %s", resultText(t, res))
	}
	if n := len(reg.List(context.Background())); n != 0 {
		t.Errorf("refused URL opened %d tabs", n)
	}
}

func TestMCP_ListTabs(t *testing.T) {
	reg, session := mcpSession(t)
	reg.Open(context.Background(), videoURL)
	reg.Open(context.Background(), otherURL)

	res := callTool(t, session, "transcript_tabs", map[string]any{})
	var list []tabs.Info
	if err := json.Unmarshal([]byte(resultText(t, res)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].URL != otherURL || !list[1].Active {
		t.Errorf("got %+v", list)
	}
}
