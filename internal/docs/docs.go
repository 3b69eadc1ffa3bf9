// Package docs serves the OpenAPI description of the API and a Swagger UI
// page that renders it.
//
//	GET /api/schema       the document as YAML
//	GET /api/schema.json  the same document as JSON
//	GET /api/docs         Swagger UI (assets from a CDN)
//
// EMBEDDING:
// //go:embed copies openapi.yaml into the binary at build time, so the
// server needs no files on disk to describe itself.
package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// Handler serves the schema and the documentation page.
type Handler struct {
	yaml   []byte
	json   []byte
	ui     *template.Template
	logger *slog.Logger
}

// New converts the embedded document to JSON once up front. An error
// here means openapi.yaml itself is broken.
func New(logger *slog.Logger) (*Handler, error) {
	asJSON, err := yamlToJSON(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("docs: converting openapi.yaml: %w", err)
	}

	ui, err := template.New("swagger").Parse(swaggerUITemplate)
	if err != nil {
		return nil, fmt.Errorf("docs: parsing swagger template: %w", err)
	}

	return &Handler{yaml: openapiYAML, json: asJSON, ui: ui, logger: logger}, nil
}

// yamlToJSON re-encodes a YAML document as JSON. yaml.v3 decodes mappings
// with string keys into map[string]any, which encoding/json accepts, so
// every key in the document (status codes included) must be a string.
func yamlToJSON(doc []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// HandleSchemaYAML serves openapi.yaml as written.
func (h *Handler) HandleSchemaYAML(w http.ResponseWriter, _ *http.Request) {
	h.write(w, "application/yaml", h.yaml)
}

// HandleSchemaJSON serves the JSON rendering of the same document.
func (h *Handler) HandleSchemaJSON(w http.ResponseWriter, _ *http.Request) {
	h.write(w, "application/json", h.json)
}

// HandleUI serves the Swagger UI page pointed at /api/schema.
func (h *Handler) HandleUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.ui.Execute(w, map[string]string{"SchemaURL": "/api/schema"}); err != nil {
		h.logger.Error("rendering swagger ui", slog.String("error", err.Error()))
	}
}

func (h *Handler) write(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("writing schema", slog.String("error", err.Error()))
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Code Snippets API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.17.14/swagger-ui.css">
  <style>body { margin: 0; }</style>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.17.14/swagger-ui-bundle.js" charset="UTF-8"></script>
<script>
window.onload = function () {
  window.ui = SwaggerUIBundle({
    url: "{{.SchemaURL}}",
    dom_id: "#swagger-ui",
    deepLinking: true,
    persistAuthorization: true
  });
};
</script>
</body>
</html>`
