// Package swagger serves the embedded OpenAPI document and a ReDoc viewer.
package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML specification.
//
//go:embed openapi.yaml
var OpenAPI []byte
