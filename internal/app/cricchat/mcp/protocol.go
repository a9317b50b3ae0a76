package mcp

import "encoding/json"

const (
	jsonrpcVersion = "2.0"

	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// 支持的协议版本，第一个为默认
var protocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// notification 没有 id，不需要响应
func (r *request) notification() bool {
	return len(r.ID) == 0
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

func errorf(code int, message string) *rpcError {
	return &rpcError{Code: code, Message: message}
}

var nullID = json.RawMessage("null")

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type readParams struct {
	URI string `json:"uri"`
}

type toolJSON struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content           []textContent  `json:"content"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
	Meta              map[string]any `json:"_meta,omitempty"`
}

type resourceJSON struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	URI         string         `json:"uri"`
	Description string         `json:"description"`
	MIMEType    string         `json:"mimeType"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

type resourceTemplateJSON struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	URITemplate string         `json:"uriTemplate"`
	Description string         `json:"description"`
	MIMEType    string         `json:"mimeType"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

type resourceContents struct {
	URI      string         `json:"uri"`
	MIMEType string         `json:"mimeType"`
	Text     string         `json:"text"`
	Meta     map[string]any `json:"_meta,omitempty"`
}

type readResult struct {
	Contents []resourceContents `json:"contents"`
	Meta     map[string]any     `json:"_meta,omitempty"`
}
