package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// RegisterOpenAPI serves the API description at /openapi/json and
// /openapi/yaml.
func RegisterOpenAPI(r chi.Router, api huma.API) {
	r.Get("/openapi/json", func(w http.ResponseWriter, req *http.Request) {
		b, err := json.Marshal(api.OpenAPI())
		if err != nil {
			writeSpecError(w, req, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})

	r.Get("/openapi/yaml", func(w http.ResponseWriter, req *http.Request) {
		b, err := OpenAPIYAML(api.OpenAPI())
		if err != nil {
			writeSpecError(w, req, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(b)
	})
}

// OpenAPIYAML renders the description as block-style YAML. It goes through
// JSON so huma's own marshalling decides field names and order.
func OpenAPIYAML(oapi *huma.OpenAPI) ([]byte, error) {
	b, err := json.Marshal(oapi)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

// blockStyle clears the flow style YAML assigns to parsed JSON.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func writeSpecError(w http.ResponseWriter, req *http.Request, err error) {
	slog.ErrorContext(req.Context(), "rendering openapi description", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(newErrorResponse(http.StatusInternalServerError, internalMessage))
}
