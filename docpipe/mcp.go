package docpipe

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/larder/kit"
)

// RegisterMCP registers docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerParseTool(srv)
	p.registerDetectTool(srv)
	p.registerFormatsTool(srv)
}

// InputSchema builds a JSON object schema for MCP tool arguments.
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- parse ---

type parseReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerParseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_parse",
		Description: "Parse a price list (xlsx, csv, pdf) or recipe file (md, html) without storing it. Returns the normalized prices or recipes.",
		InputSchema: InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to parse"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*parseReq)
		return p.ParseFile(ctx, r.Path)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[parseReq])
}

// --- detect ---

type detectReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_detect",
		Description: "Detect the format of a file from its extension and tell whether it holds prices or recipes.",
		InputSchema: InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to detect"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		format, err := p.Detect(r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"format": string(format), "kind": string(format.Kind())}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[detectReq])
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_formats",
		Description: "List all supported file extensions.",
		InputSchema: InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
