package tools

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed shell.js
var shellJS string

type shellConfig struct {
	Root   string `json:"root"`
	Widget string `json:"widget"`
	Base   string `json:"base"`
}

// HTML 资源内容：挂载点加外壳脚本。外壳只负责把 toolOutput 发给服务端并替换 innerHTML
func (w Widget) HTML(baseURL string) string {
	// json.Marshal 会转义 <>&，可以直接放进 <script>
	cfg, _ := json.Marshal(shellConfig{Root: w.RootID, Widget: w.View, Base: strings.TrimRight(baseURL, "/")})
	var b strings.Builder
	b.WriteString(`<div id="`)
	b.WriteString(w.RootID)
	b.WriteString("\"></div>\n<script type=\"module\">\n")
	b.WriteString(strings.Replace(shellJS, "__CONFIG__", string(cfg), 1))
	b.WriteString("</script>")
	return b.String()
}
