package handlers

import (
	_ "embed"
	"strings"

	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/http_wrappers"
)

//go:embed openapi.yaml
var openAPISpec []byte

func (h *Handlers) HandleOpenAPI(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	// the document is only available as YAML
	contentType := "application/yaml"
	if strings.Contains(r.Header("Accept"), "text/plain") {
		contentType = "text/plain"
	}
	w.WriteDocument(contentType, openAPISpec)
}

func (h *Handlers) HandleDocs(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	html := `<!DOCTYPE html>
<html>
<head>
  <title>runctl API Documentation</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "` + ctx.BaseURL + `/openapi.yaml",
        dom_id: '#swagger-ui',
        deepLinking: true
      });
    };
  </script>
</body>
</html>`

	w.WriteDocument("text/html; charset=utf-8", []byte(html))
}
