package agentloop

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// finishedArgs is the synthetic control tool used by the Act strategy
// (spec §4.8): the LLM is forced to pick a tool every step, and picking
// "finished" ends the loop with its final_answer.
type finishedArgs struct {
	FinalAnswer string `json:"final_answer" jsonschema:"required,description=The final answer to return to the user"`
}

// thinkArgs is the synthetic tool interleaved with a single user-tool call
// per step in the Think-Act strategy (spec §4.8).
type thinkArgs struct {
	Finish         bool   `json:"finish" jsonschema:"required,description=Set true to end the loop and return final_answer"`
	FinalAnswer    string `json:"final_answer,omitempty" jsonschema:"description=Required when finish is true"`
	NextActionHint string `json:"next_action_hint,omitempty" jsonschema:"description=What to attempt next, when finish is false"`
}

func reflectSchema[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	raw, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
