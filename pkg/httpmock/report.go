package httpmock

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/httpmock/httpmock/internal/state"
)

// VerificationError carries the closest non-matching request together with a
// rendered report. Error() returns the full report so a bare
// require.NoError(t, err) prints something actionable.
type VerificationError struct {
	Closest *state.ClosestMatch
}

func (e *VerificationError) Error() string {
	return e.Report()
}

// Report renders the verification failure: which request came closest, and
// for every violated constraint the operator, the expected and actual
// operands, a textual diff, and for multi-valued attributes the closest
// request pair.
func (e *VerificationError) Report() string {
	var b strings.Builder
	b.WriteString("at least one request did not meet the expectations\n")
	if e.Closest == nil {
		return b.String()
	}
	if r := e.Closest.Request; r != nil {
		fmt.Fprintf(&b, "closest request: %s %s (distance %d)\n",
			r.Method, r.URL(), e.Closest.Distance)
	}
	for i, m := range e.Closest.Mismatches {
		fmt.Fprintf(&b, "\n%d. %s %s\n", i+1, m.Attribute, m.Kind)
		fmt.Fprintf(&b, "   expected: %s\n", m.Expected)
		fmt.Fprintf(&b, "   actual:   %s\n", m.Actual)
		if m.ClosestPair != nil {
			flag := ""
			if m.BestMatch {
				flag = " (best match)"
			}
			fmt.Fprintf(&b, "   closest pair: %s=%s%s\n", m.ClosestPair.Key, m.ClosestPair.Value, flag)
		}
		if diff := renderDiff(m.Expected, m.Actual); diff != "" {
			b.WriteString(indent(diff, "   "))
		}
	}
	return b.String()
}

// renderDiff produces a unified diff between the expected and actual
// operands. Single-line operands are still diffed so character-level changes
// inside long strings stand out.
func renderDiff(expected, actual string) string {
	if expected == actual || expected == "" || actual == "" {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return out
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
