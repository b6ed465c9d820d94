package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/docblade"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `DocBlade answers questions from an indexed PDF corpus, providing:

1. **Retrieval-Augmented Answers**: Questions are answered using only the indexed document excerpts
2. **Source Citations**: Every answer cites the documents it was grounded on
3. **External Coverage**: Documents linked from the corpus are indexed alongside it

Available operations:
- ask_documents: Answer a question from the indexed corpus
- list_sources: List the sources recorded in the index`

// Tools returns the tool definitions exposed by the MCP surface.
func Tools() []mcp.Tool {
	ask := mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the indexed document corpus, citing sources."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of document chunks to retrieve."),
		),
	)

	list := mcp.NewTool("list_sources",
		mcp.WithDescription("List the distinct document sources recorded in the index."),
		mcp.WithBoolean("external",
			mcp.Description("Only list externally fetched (http) sources."),
		),
	)

	return []mcp.Tool{ask, list}
}

func InitializeEndpoint(svc docblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "docblade",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc docblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc docblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc docblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		args, _ := params.Arguments.(map[string]any)

		switch params.Name {
		case "ask_documents":
			question, _ := args["question"].(string)

			k := 0
			if v, ok := args["k"].(float64); ok {
				k = int(v)
			}

			answer, err := svc.Ask(ctx, question, k)
			if err != nil {
				return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
			}

			text := answer.Text
			if len(answer.Sources) > 0 {
				text += "\n\nSources: " + strings.Join(answer.Sources, ", ")
			}

			return mcp.JSONRPCResponse{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      req.ID,
				Result:  mcp.NewToolResultText(text),
			}

		case "list_sources":
			sources, err := svc.Sources(ctx)
			if err != nil {
				return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
			}

			if external, ok := args["external"].(bool); ok && external {
				var filtered []string
				for _, source := range sources {
					if strings.HasPrefix(source, "http") {
						filtered = append(filtered, source)
					}
				}
				sources = filtered
			}

			return mcp.JSONRPCResponse{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      req.ID,
				Result:  mcp.NewToolResultText(strings.Join(sources, "\n")),
			}

		default:
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "unknown tool: "+params.Name)
		}
	}
}
