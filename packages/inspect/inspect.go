// Package inspect extracts values from responses and validates JSON bodies
// against JSON schemas.
package inspect

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/multisync/packages/http"
)

// ErrNotJSON is returned when a body path is queried on a non-JSON body.
var ErrNotJSON = errors.New("response body is not JSON")

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

type Inspector struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func New(resp *http.Response) *Inspector {
	i := &Inspector{response: resp}
	if gjson.ValidBytes(resp.Body) {
		i.bodyJSON = gjson.ParseBytes(resp.Body)
		i.isJSON = true
	}
	return i
}

// Extract evaluates an expression against the response:
//
//	status            status code
//	duration          total duration in ms
//	header.<name>     header value
//	body              whole body (decoded if JSON)
//	body.<path>       JSON path, e.g. body.files[0].sha256
//
// A bare path is treated as body.<path>. The bool is false when the value
// does not exist.
func (i *Inspector) Extract(expr string) (any, bool, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "status":
		return i.response.StatusCode, true, nil
	case expr == "duration":
		return i.response.DurationMs(), true, nil
	case strings.HasPrefix(expr, "header."):
		value := i.response.Header(strings.TrimPrefix(expr, "header."))
		if value == "" {
			return nil, false, nil
		}
		return value, true, nil
	case expr == "body":
		if !i.isJSON {
			return i.response.BodyString(), true, nil
		}
		return i.bodyJSON.Value(), true, nil
	default:
		return i.Query(strings.TrimPrefix(expr, "body."))
	}
}

// Query looks up a JSON path in the body. Bracket indexes are accepted.
func (i *Inspector) Query(path string) (any, bool, error) {
	if !i.isJSON {
		return nil, false, ErrNotJSON
	}
	if path == "" {
		return i.bodyJSON.Value(), true, nil
	}

	result := i.bodyJSON.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// Query is shorthand for New(resp).Extract(expr).
func Query(resp *http.Response, expr string) (any, bool, error) {
	return New(resp).Extract(expr)
}

// convertBracketNotation converts "items[0].tags[1]" to "items.0.tags.1".
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// SchemaResult is the outcome of a schema validation.
type SchemaResult struct {
	Valid  bool
	Errors []string
}

func (r *SchemaResult) String() string {
	if r.Valid {
		return "valid"
	}
	return "schema validation failed: " + strings.Join(r.Errors, "; ")
}

// ValidateSchema validates document against schema. An error means the
// schema or document could not be loaded, not that validation failed.
func ValidateSchema(schema, document []byte) (*SchemaResult, error) {
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	out := &SchemaResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	return out, nil
}

// ValidateSchemaFile validates the response body against the schema at path.
func ValidateSchemaFile(resp *http.Response, path string) (*SchemaResult, error) {
	schema, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ValidateSchema(schema, resp.Body)
}
