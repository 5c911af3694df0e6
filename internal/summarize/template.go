package summarize

import (
	"context"
	"fmt"
	"strings"
)

// Template builds an explanation from the parsed map alone. It needs no
// network and always gives the same text for the same request.
type Template struct{}

var _ Summarizer = Template{}

// Summarize describes req.FunctionName using the facts recorded for it.
func (Template) Summarize(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Map == nil {
		return "", fmt.Errorf("summarize: no parsed map for %q", req.FunctionName)
	}
	fn, ok := req.Map.Function(req.FunctionName)
	if !ok {
		return "", fmt.Errorf("summarize: function %q not in map", req.FunctionName)
	}

	var sentences []string
	sentences = append(sentences, fmt.Sprintf("%s is defined on lines %d-%d%s.",
		fn.Name, fn.StartLine, fn.EndLine, paramPhrase(fn.Params)))

	switch {
	case fn.ControlFlow.If && fn.ControlFlow.While:
		sentences = append(sentences, "It branches on conditions and loops with while.")
	case fn.ControlFlow.If:
		sentences = append(sentences, "It branches on conditions.")
	case fn.ControlFlow.While:
		sentences = append(sentences, "It loops with while.")
	}

	if calls := others(fn.Calls, fn.Name); len(calls) > 0 {
		sentences = append(sentences, "It calls "+joinWords(calls)+".")
	}
	if fn.Recursion {
		sentences = append(sentences, "It is recursive.")
	}
	if callers := others(fn.CalledBy, fn.Name); len(callers) > 0 {
		sentences = append(sentences, "Within this file it is called by "+joinWords(callers)+".")
	} else if len(fn.CalledBy) == 0 {
		sentences = append(sentences, "Nothing else in this file calls it.")
	}
	if rets := unique(fn.Returns); len(rets) > 0 {
		sentences = append(sentences, "It returns "+joinWords(quoteAll(rets))+".")
	}
	return strings.Join(sentences, " "), nil
}

func paramPhrase(params []string) string {
	switch len(params) {
	case 0:
		return " and takes no parameters"
	case 1:
		return " and takes " + params[0]
	default:
		return " and takes " + joinWords(params)
	}
}

// others returns the unique entries of names other than self, in order.
func others(names []string, self string) []string {
	var out []string
	for _, n := range unique(names) {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = "`" + s + "`"
	}
	return out
}

// joinWords joins with commas and a final "and".
func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	case 2:
		return words[0] + " and " + words[1]
	default:
		return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
}
