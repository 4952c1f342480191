package handler

import (
	"embed"
	"encoding/base64"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type printPage struct {
	Filename string
	Header   string
	Source   template.URL
}

type messagePage struct {
	Title   string
	Message string
}

// pdfDataURL inlines a PDF so the page can print it without a second request.
func pdfDataURL(data []byte) template.URL {
	return template.URL("data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data))
}
