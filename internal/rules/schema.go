package rules

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE []byte

// validator checks decoded rule records against the #Rule definition.
type validator struct {
	ctx  *cue.Context
	rule cue.Value
}

func newValidator() (*validator, error) {
	ctx := cuecontext.New()
	inst := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := inst.Err(); err != nil {
		return nil, fmt.Errorf("compiling rule schema: %w", err)
	}

	def := inst.LookupPath(cue.ParsePath("#Rule"))
	if !def.Exists() {
		return nil, fmt.Errorf("rule schema has no #Rule definition")
	}
	return &validator{ctx: ctx, rule: def}, nil
}

func (v *validator) validate(data map[string]any) error {
	dataValue := v.ctx.Encode(data)
	if err := dataValue.Err(); err != nil {
		return fmt.Errorf("encoding rule: %w", err)
	}

	unified := v.rule.Unify(dataValue)
	if err := unified.Err(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
