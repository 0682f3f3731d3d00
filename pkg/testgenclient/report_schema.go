package testgenclient

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchema describes the part of the report the controller relies on.
// Extra fields are allowed so the backend can evolve.
const reportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["run_id", "summary"],
  "properties": {
    "run_id": {"type": "string", "minLength": 1},
    "url": {"type": "string"},
    "timestamp": {"type": "string"},
    "summary": {
      "type": "object",
      "required": ["total", "passed", "failed"],
      "properties": {
        "total": {"type": "integer", "minimum": 0},
        "passed": {"type": "integer", "minimum": 0},
        "failed": {"type": "integer", "minimum": 0},
        "flaky": {"type": "integer", "minimum": 0}
      }
    },
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["testcase_id", "verdict"],
        "properties": {
          "testcase_id": {"type": "string"},
          "verdict": {"type": "string"},
          "reruns": {"type": "integer"},
          "reproducible": {"type": "boolean"}
        }
      }
    },
    "triage_notes": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

var (
	compiledReportSchema *gojsonschema.Schema
	compileReportOnce    sync.Once
	compileReportErr     error
)

func getReportSchema() (*gojsonschema.Schema, error) {
	compileReportOnce.Do(func() {
		compiledReportSchema, compileReportErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(reportSchema))
	})
	return compiledReportSchema, compileReportErr
}

func validateReport(body []byte) error {
	schema, err := getReportSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("invalid report: %s", strings.Join(details, "; "))
}
