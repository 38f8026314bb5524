package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lattice-compute/routectl/pkg/apierr"
)

// decideRequestSchema and feedbackRequestSchema bound the shape of the two
// external write paths before they ever reach contracts decoding. Struct
// decoding alone accepts any numeric range and silently zeroes unknown
// fields; these schemas reject an empty tenant, an empty candidate list, and
// a feedback request without a decision_id or outcome object at the door.
// Context fields such as resource hours are not range-checked here.
const decideRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tenant", "candidates"],
  "properties": {
    "tenant": {"type": "string", "minLength": 1},
    "context": {"type": "object"},
    "candidates": {"type": "array", "minItems": 1}
  }
}`

const feedbackRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["decision_id", "outcome"],
  "properties": {
    "decision_id": {"type": "string", "minLength": 1},
    "outcome": {"type": "object"}
  }
}`

// ingressValidator holds the compiled schemas for the router's HTTP surface.
// It is constructed once at Router startup; compilation failure is a
// programmer error, not a runtime condition, so New panics rather than
// threading an error return through every caller.
type ingressValidator struct {
	decide   *jsonschema.Schema
	feedback *jsonschema.Schema
}

func newIngressValidator() *ingressValidator {
	return &ingressValidator{
		decide:   mustCompileSchema("decide-request", decideRequestSchema),
		feedback: mustCompileSchema("feedback-request", feedbackRequestSchema),
	}
}

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://gpuroute.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("router: ingress schema %q failed to load: %v", name, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("router: ingress schema %q failed to compile: %v", name, err))
	}
	return compiled
}

// validateDecide checks raw request bytes against decideRequestSchema. It
// returns an apierr.KindInvalidInput error describing the first violation;
// callers should run this before json.Unmarshal into DecideRequest so
// shape errors surface as RFC 7807 problem details, not Go decode errors.
func (v *ingressValidator) validateDecide(body []byte) error {
	return validateAgainst(v.decide, body)
}

// validateFeedback checks raw request bytes against feedbackRequestSchema.
func (v *ingressValidator) validateFeedback(body []byte) error {
	return validateAgainst(v.feedback, body)
}

func validateAgainst(schema *jsonschema.Schema, body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return apierr.Wrap(apierr.KindInvalidInput, "invalid JSON body", err)
	}
	if err := schema.Validate(doc); err != nil {
		return apierr.Wrap(apierr.KindInvalidInput, "request failed ingress validation", err)
	}
	return nil
}
