package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/httpx"
)

// openAPIDoc is the subset of an OpenAPI document the registry understands.
type openAPIDoc struct {
	Paths map[string]map[string]openAPIOperation `json:"paths"`
}

type openAPIOperation struct {
	OperationID string `json:"operationId"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Parameters  []struct {
		Name     string `json:"name"`
		In       string `json:"in"`
		Required bool   `json:"required"`
		Schema   struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"schema"`
	} `json:"parameters"`
	RequestBody *struct {
		Content map[string]struct {
			Schema struct {
				Properties map[string]struct {
					Type        string `json:"type"`
					Description string `json:"description"`
				} `json:"properties"`
				Required []string `json:"required"`
			} `json:"schema"`
		} `json:"content"`
	} `json:"requestBody"`
}

// RegisterOpenAPI converts every operation of an OpenAPI-style document into
// a registered tool whose handler issues the HTTP call with bearer auth.
// Returns the number of tools registered.
func (r *Registry) RegisterOpenAPI(apiName string, specDoc []byte, baseURL, bearerToken string) (int, error) {
	var doc openAPIDoc
	if err := json.Unmarshal(specDoc, &doc); err != nil {
		return 0, fmt.Errorf("parse openapi spec for %s: %w", apiName, err)
	}
	if len(doc.Paths) == 0 {
		return 0, fmt.Errorf("openapi spec for %s declares no paths", apiName)
	}

	client := httpx.New(30*time.Second, 1, time.Second)
	base := strings.TrimSuffix(baseURL, "/")
	registered := 0
	for path, ops := range doc.Paths {
		for method, op := range ops {
			method = strings.ToUpper(method)
			switch method {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
			default:
				continue
			}
			name := op.OperationID
			if name == "" {
				name = apiName + "_" + strings.ToLower(method) + sanitizePath(path)
			}
			desc := op.Summary
			if desc == "" {
				desc = op.Description
			}
			spec := ToolSpec{
				Name:        name,
				Description: desc,
				Parameters:  openAPIParams(op),
				Handler:     openAPIHandler(client, method, base+path, bearerToken),
			}
			if err := r.Register(spec); err != nil {
				return registered, err
			}
			registered++
		}
	}
	return registered, nil
}

// RegisterOpenAPIFile reads an OpenAPI document from disk and registers its
// operations as tools.
func (r *Registry) RegisterOpenAPIFile(apiName, specPath, baseURL, bearerToken string) (int, error) {
	doc, err := os.ReadFile(specPath)
	if err != nil {
		return 0, fmt.Errorf("read openapi spec for %s: %w", apiName, err)
	}
	return r.RegisterOpenAPI(apiName, doc, baseURL, bearerToken)
}

func openAPIParams(op openAPIOperation) map[string]ParamSpec {
	params := make(map[string]ParamSpec)
	for _, p := range op.Parameters {
		params[p.Name] = ParamSpec{
			Type:        orString(p.Schema.Type),
			Description: p.Schema.Description,
			Required:    p.Required,
		}
	}
	if op.RequestBody != nil {
		for _, content := range op.RequestBody.Content {
			required := make(map[string]bool, len(content.Schema.Required))
			for _, name := range content.Schema.Required {
				required[name] = true
			}
			for name, prop := range content.Schema.Properties {
				params[name] = ParamSpec{
					Type:        orString(prop.Type),
					Description: prop.Description,
					Required:    required[name],
				}
			}
			break
		}
	}
	return params
}

func openAPIHandler(client *httpx.Client, method, endpoint, token string) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		headers := httpx.BearerHeader(token, nil)
		var out map[string]any
		if method == http.MethodGet || method == http.MethodDelete {
			qurl := endpoint
			if len(args) > 0 {
				q := url.Values{}
				for k, v := range args {
					q.Set(k, fmt.Sprintf("%v", v))
				}
				qurl += "?" + q.Encode()
			}
			if err := client.DoJSON(ctx, method, qurl, headers, nil, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
		if err := client.DoJSON(ctx, method, endpoint, headers, args, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func sanitizePath(path string) string {
	repl := strings.NewReplacer("/", "_", "{", "", "}", "", "-", "_")
	return repl.Replace(path)
}

func orString(t string) string {
	if t == "" {
		return "string"
	}
	return t
}
