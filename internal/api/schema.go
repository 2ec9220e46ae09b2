package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const submitSchemaJSON = `{
  "type": "object",
  "properties": {
    "answers": {"type": "array", "items": {"type": "object"}}
  }
}`

const changeSchemaJSON = `{
  "type": "object",
  "required": ["model_name", "object_id", "change"],
  "properties": {
    "model_name": {"type": "string", "minLength": 1},
    "object_id": {"type": ["string", "integer"]},
    "change": {"type": "object"}
  }
}`

const ackSchemaJSON = `{
  "type": "object",
  "required": ["ids"],
  "properties": {
    "ids": {"type": "array", "items": {"type": "integer"}}
  }
}`

const deviceSchemaJSON = `{
  "type": "object",
  "properties": {
    "identifier": {"type": "string"},
    "label": {"type": "string"}
  }
}`

var (
	submitSchema = mustSchema(submitSchemaJSON)
	changeSchema = mustSchema(changeSchemaJSON)
	ackSchema    = mustSchema(ackSchemaJSON)
	deviceSchema = mustSchema(deviceSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// decodeBody reads the request body, validates it against schema and
// decodes it into out. Every failure wraps errBadRequest except an
// oversized body.
func decodeBody(r *http.Request, schema *gojsonschema.Schema, out any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: invalid JSON", errBadRequest)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", errBadRequest, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
