package mock

import (
	"regexp"
	"strings"
)

// bodylessMethods are methods that must not carry a body constraint.
var bodylessMethods = map[string]bool{
	"GET":  true,
	"HEAD": true,
}

// ValidateDefinition checks the structural invariants of a stub before it is
// admitted: a response must be present, its status must be a real HTTP
// status, delay must be sane, every regex operand must compile, and GET/HEAD
// stubs must not constrain the body.
func ValidateDefinition(def *Definition) error {
	if def == nil {
		return Validationf("definition is required")
	}
	if def.Response == nil {
		return Validationf("response is required")
	}
	if def.Response.Status < 100 || def.Response.Status > 599 {
		return Validationf("response status %d out of range", def.Response.Status)
	}
	return ValidateRequirements(def.Request)
}

// ValidateRequirements checks a requirement set on its own (rules and
// recordings carry requirements without a response).
func ValidateRequirements(r *RequestRequirements) error {
	if r == nil {
		return nil
	}

	if method := equalsOperand(r.Method); method != "" && bodylessMethods[strings.ToUpper(method)] {
		if !r.Body.Empty() || !r.JSONBody.Empty() || !r.Form.Empty() {
			return Validationf("method %s does not allow a request body", strings.ToUpper(method))
		}
	}

	for _, sc := range []*StringConstraints{r.Scheme, r.Method, r.Host, r.Path} {
		if sc == nil {
			continue
		}
		if err := compileAll(sc.Matches); err != nil {
			return err
		}
	}
	if r.Body != nil {
		if err := compileAll(r.Body.Matches); err != nil {
			return err
		}
	}
	for _, pc := range []*PairConstraints{r.Query, r.Header, r.Cookie, r.Form} {
		if pc == nil {
			continue
		}
		for _, p := range pc.Matches {
			if err := compileAll([]string{p.Key, p.Value}); err != nil {
				return err
			}
		}
		for _, c := range pc.Counts {
			if err := compileAll([]string{c.KeyPattern, c.ValuePattern}); err != nil {
				return err
			}
			if c.Count < 0 {
				return Validationf("count constraint must be non-negative, got %d", c.Count)
			}
		}
	}
	return nil
}

func equalsOperand(c *StringConstraints) string {
	if c == nil || c.Equals == nil {
		return ""
	}
	return *c.Equals
}

func compileAll(patterns []string) error {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return Validationf("invalid regex %q: %v", p, err)
		}
	}
	return nil
}
