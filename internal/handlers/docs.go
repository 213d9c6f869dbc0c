package handlers

import (
	_ "embed"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiSpec []byte

const docsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>pcbuild API Docs</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
      persistAuthorization: true,
      tryItOutEnabled: true,
    });
  </script>
</body>
</html>`

// stampVersion rewrites info.version of an OpenAPI document. The node tree is
// edited in place so key order and block scalars survive the round trip.
func stampVersion(doc []byte, version string) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return doc, nil
	}
	if info := mappingValue(root.Content[0], "info"); info != nil {
		if v := mappingValue(info, "version"); v != nil {
			v.Value = version
			v.Style = yaml.DoubleQuotedStyle
		}
	}
	return yaml.Marshal(&root)
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// OpenAPISpec returns the handler for GET /openapi.yaml. A non-empty version
// replaces info.version in the served document; if the embedded document
// cannot be rewritten it is served unchanged.
func OpenAPISpec(version string) http.HandlerFunc {
	body := openapiSpec
	if version != "" {
		stamped, err := stampVersion(openapiSpec, version)
		if err != nil {
			slog.Error("failed to stamp OpenAPI version", "error", err)
		} else {
			body = stamped
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(body)
	}
}

// Docs handles GET /docs with a Swagger UI page over /openapi.yaml.
func Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(docsHTML))
}
