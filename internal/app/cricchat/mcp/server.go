// mcp 以无状态 streamable-HTTP MCP（JSON-RPC 2.0，只返回 JSON）提供工具与 widget 资源
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"cricchat.local/gee"
	"cricchat.local/internal/app/cricchat/tools"
	"cricchat.local/internal/platform/httpmiddleware"
	"github.com/google/uuid"
)

const maxBody = 1 << 20

type Info struct {
	Name          string
	Version       string
	Instructions  string
	PublicBaseURL string // 为空时按请求推断
}

type Server struct {
	tools *tools.Service
	info  Info
}

func NewServer(svc *tools.Service, info Info) *Server {
	return &Server{tools: svc, info: info}
}

// Handle POST /mcp
func (s *Server) Handle(ctx *gee.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Req.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, response{JSONRPC: jsonrpcVersion, ID: nullID, Error: errorf(CodeInvalidRequest, "request too large")})
			return
		}
		ctx.JSON(http.StatusBadRequest, response{JSONRPC: jsonrpcVersion, ID: nullID, Error: errorf(CodeParseError, "Parse error")})
		return
	}
	base := httpmiddleware.PublicBaseURL(ctx.Req, s.info.PublicBaseURL)
	rctx := tools.WithCaller(ctx.Req.Context(), httpmiddleware.ClientIP(ctx.Req))

	out, session := s.Process(rctx, base, body)
	if session != "" {
		ctx.SetHeader("Mcp-Session-Id", session)
	}
	if out == nil {
		// 只有通知
		ctx.Status(http.StatusAccepted)
		return
	}
	ctx.Data(http.StatusOK, "application/json", out)
}

// MethodNotAllowed GET/DELETE /mcp：无状态服务不提供 SSE 流，也没有会话可删
func (s *Server) MethodNotAllowed(ctx *gee.Context) {
	ctx.SetHeader("Allow", http.MethodPost)
	ctx.AbortWithError(http.StatusMethodNotAllowed, "method not allowed")
}

// Process 处理一个请求体（单个或批量），返回响应体；全部是通知时返回 nil。
// session 非空表示本次包含 initialize，需要下发 Mcp-Session-Id
func (s *Server) Process(ctx context.Context, base string, body []byte) (out []byte, session string) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return mustMarshal(response{JSONRPC: jsonrpcVersion, ID: nullID, Error: errorf(CodeParseError, "Parse error")}), ""
	}

	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
			return mustMarshal(response{JSONRPC: jsonrpcVersion, ID: nullID, Error: errorf(CodeInvalidRequest, "Invalid Request")}), ""
		}
		var resps []*response
		for _, raw := range batch {
			resp, init := s.handle(ctx, base, raw)
			if init {
				session = uuid.NewString()
			}
			if resp != nil {
				resps = append(resps, resp)
			}
		}
		if len(resps) == 0 {
			return nil, session
		}
		return mustMarshal(resps), session
	}

	resp, init := s.handle(ctx, base, body)
	if init {
		session = uuid.NewString()
	}
	if resp == nil {
		return nil, session
	}
	return mustMarshal(resp), session
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("mcp: marshal response failed", "err", err)
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Internal error"}}`)
	}
	return data
}

func (s *Server) handle(ctx context.Context, base string, raw json.RawMessage) (*response, bool) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil || req.JSONRPC != jsonrpcVersion || req.Method == "" {
		id := req.ID
		if len(id) == 0 {
			id = nullID
		}
		return &response{JSONRPC: jsonrpcVersion, ID: id, Error: errorf(CodeInvalidRequest, "Invalid Request")}, false
	}

	if req.notification() {
		slog.Debug("mcp notification", "method", req.Method)
		return nil, false
	}

	slog.Debug("mcp request", "method", req.Method)
	result, rerr := s.dispatch(ctx, base, req)
	resp := &response{JSONRPC: jsonrpcVersion, ID: req.ID}
	if rerr != nil {
		resp.Error = rerr
	} else {
		resp.Result = result
	}
	return resp, req.Method == "initialize" && rerr == nil
}

func params[T any](raw json.RawMessage, dst *T) *rpcError {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errorf(CodeInvalidParams, "Invalid params: "+err.Error())
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, base string, req request) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		var p initializeParams
		if err := params(req.Params, &p); err != nil {
			return nil, err
		}
		return s.initialize(p), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return map[string]any{"tools": s.listTools()}, nil
	case "tools/call":
		var p callParams
		if err := params(req.Params, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, errorf(CodeInvalidParams, "Invalid params: missing tool name")
		}
		return s.callTool(ctx, p), nil
	case "resources/list":
		return map[string]any{"resources": s.listResources()}, nil
	case "resources/templates/list":
		return map[string]any{"resourceTemplates": s.listTemplates()}, nil
	case "resources/read":
		var p readParams
		if err := params(req.Params, &p); err != nil {
			return nil, err
		}
		if p.URI == "" {
			return nil, errorf(CodeInvalidParams, "Invalid params: missing uri")
		}
		return s.readResource(base, p.URI), nil
	}
	return nil, errorf(CodeMethodNotFound, "Method not found: "+req.Method)
}

func (s *Server) initialize(p initializeParams) map[string]any {
	version := protocolVersions[0]
	if slices.Contains(protocolVersions, p.ProtocolVersion) {
		version = p.ProtocolVersion
	}
	slog.Info("mcp initialize", "client", p.ClientInfo.Name, "client_version", p.ClientInfo.Version, "protocol", version)
	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    s.info.Name,
			"version": s.info.Version,
		},
		"instructions": s.info.Instructions,
	}
}

func (s *Server) listTools() []toolJSON {
	list := s.tools.List()
	out := make([]toolJSON, 0, len(list))
	for _, t := range list {
		tj := toolJSON{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema, Meta: t.Meta()}
		if t.Widget != nil {
			tj.Title = t.Widget.Title
		}
		out = append(out, tj)
	}
	return out
}

func (s *Server) callTool(ctx context.Context, p callParams) callResult {
	res := s.tools.Call(ctx, p.Name, p.Arguments)
	return callResult{
		Content:           []textContent{{Type: "text", Text: res.Text}},
		StructuredContent: res.Structured,
		IsError:           res.IsError,
		Meta:              res.Meta,
	}
}

func (s *Server) listResources() []resourceJSON {
	ws := s.tools.Catalog().All()
	out := make([]resourceJSON, 0, len(ws))
	for _, w := range ws {
		out = append(out, resourceJSON{
			Name:        w.Title,
			Title:       w.Title,
			URI:         w.TemplateURI,
			Description: w.ResourceDescription(),
			MIMEType:    tools.MIMEType,
			Meta:        w.Meta(),
		})
	}
	return out
}

func (s *Server) listTemplates() []resourceTemplateJSON {
	ws := s.tools.Catalog().All()
	out := make([]resourceTemplateJSON, 0, len(ws))
	for _, w := range ws {
		out = append(out, resourceTemplateJSON{
			Name:        w.Title,
			Title:       w.Title,
			URITemplate: w.TemplateURI,
			Description: w.ResourceDescription(),
			MIMEType:    tools.MIMEType,
			Meta:        w.Meta(),
		})
	}
	return out
}

// readResource 未知 URI 不是协议错误：返回空 contents 并在 _meta 里说明
func (s *Server) readResource(base, uri string) readResult {
	w, ok := s.tools.Catalog().ByURI(uri)
	if !ok {
		slog.Warn("unknown resource", "uri", uri)
		return readResult{Contents: []resourceContents{}, Meta: map[string]any{"error": "Unknown resource: " + uri}}
	}
	return readResult{Contents: []resourceContents{{
		URI:      w.TemplateURI,
		MIMEType: tools.MIMEType,
		Text:     w.HTML(base),
		Meta:     w.Meta(),
	}}}
}
