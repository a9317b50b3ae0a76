package view

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("widgets").ParseFS(templateFS, "templates/*.tmpl"))
