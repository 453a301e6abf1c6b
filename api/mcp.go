package api

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/larder/docpipe"
	"github.com/hazyhaar/larder/kit"
)

// RegisterMCP registers the store tools and the docpipe parse tools on an
// MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.ing.Pipeline().RegisterMCP(srv)
	s.registerIngestTool(srv)
	s.registerRecipesTool(srv)
	s.registerPricesTool(srv)
	s.registerCostTool(srv)
	s.registerQueryTool(srv)
}

// --- ingest ---

type ingestReq struct {
	Path string `json:"path"`
}

func (s *Server) registerIngestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_ingest",
		Description: "Ingest a price list or recipe file into the store. Returns the import with the stored recipes and prices.",
		InputSchema: docpipe.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to ingest"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*ingestReq)
		return s.ing.IngestFile(ctx, r.Path)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[ingestReq])
}

// --- recipes ---

type recipesReq struct {
	Query string `json:"query"`
}

func (s *Server) registerRecipesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_recipes",
		Description: "List stored recipes. An optional query filters by recipe or ingredient name.",
		InputSchema: docpipe.InputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Case-insensitive filter"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*recipesReq)
		recipes := s.store.FindRecipes(r.Query)
		return map[string]any{"recipes": recipes, "count": len(recipes)}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[recipesReq])
}

// --- prices ---

func (s *Server) registerPricesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_prices",
		Description: "List the current per-kilogram prices by ingredient.",
		InputSchema: docpipe.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"prices": s.store.Prices()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- cost ---

type costReq struct {
	Date string `json:"date"`
}

func (s *Server) registerCostTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_cost",
		Description: "Cost every stored recipe in ARS and USD for a date (YYYY-MM-DD, default today).",
		InputSchema: docpipe.InputSchema(map[string]any{
			"date": map[string]any{"type": "string", "description": "Date as YYYY-MM-DD"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*costReq)
		return s.calc.Calculate(ctx, r.Date)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[costReq])
}

// --- query ---

type queryReq struct {
	Path string `json:"path"`
}

func (s *Server) registerQueryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "larder_query",
		Description: "Evaluate a gjson path against the store document, e.g. prices.tomate.price_per_kg or recipes.#.name.",
		InputSchema: docpipe.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "gjson path; empty returns the whole document"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*queryReq)
		raw, err := s.store.Query(r.Path)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[queryReq])
}
