package quality

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/glossary-agent/internal/llm"
)

// Evaluation is the parsed result of an evaluation-phase model response.
type Evaluation struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// evaluationSchema is the contract an evaluation response must satisfy.
// Validated before unmarshalling so malformed responses produce field-level
// errors rather than partial structs.
const evaluationSchema = `{
	"type": "object",
	"required": ["score", "feedback"],
	"properties": {
		"score": {"type": "integer", "minimum": 1, "maximum": 10},
		"feedback": {"type": "string"}
	}
}`

var compiledSchema *gojsonschema.Schema

func init() {
	var err error
	compiledSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(evaluationSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid evaluation schema: %v", err))
	}
}

// ParseEvaluation parses an evaluation-phase model response into a score and
// feedback. Any deviation from the contract (non-JSON, missing fields, score
// out of the 1-10 range) is a *ParseError: the response is malformed, not
// transient, so callers must not retry.
func ParseEvaluation(response string) (*Evaluation, error) {
	cleaned := llm.CleanJSONBlock(response)

	result, err := compiledSchema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, &ParseError{Response: response, Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if !result.Valid() {
		return nil, &ParseError{Response: response, Reason: schemaFailureReason(result)}
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(cleaned), &eval); err != nil {
		return nil, &ParseError{Response: response, Reason: err.Error()}
	}

	// Schema already enforces the range; keep the explicit check so the scale
	// invariant does not depend on schema wording.
	if eval.Score < ScoreMin || eval.Score > ScoreMax {
		return nil, &ParseError{Response: response, Reason: fmt.Sprintf("score %d out of range %d-%d", eval.Score, ScoreMin, ScoreMax)}
	}

	return &eval, nil
}

func schemaFailureReason(result *gojsonschema.Result) string {
	if errs := result.Errors(); len(errs) > 0 {
		return fmt.Sprintf("%s: %s", errs[0].Field(), errs[0].Description())
	}
	return "schema validation failed"
}
