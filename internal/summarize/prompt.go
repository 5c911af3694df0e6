package summarize

import (
	"fmt"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// systemPrompt constrains the model to what the code and map support.
const systemPrompt = `You are a function annotation assistant. You receive: 1) the full source code of one function, and 2) a parsed_map JSON describing structural information of the entire file.
Your task is to generate a single coherent explanation that integrates:
- what the function does based strictly on its code, and
- any relevant structural context from parsed_map (e.g., who it calls, who calls it, recursion, control flow).
Rules:
- Do NOT list parameters, calls, returns, or other structural fields separately.
- Do NOT speculate beyond what is supported by the function code or parsed_map.
- Do NOT infer data schemas, API behavior, or external side effects.
- You may describe the function's role within the file using only parsed_map-supported structure.
Output: a unified, concise explanation of the function's behavior and role.`

// userPrompt renders the per-request message: the function name, the whole
// map as JSON and the function's source lines.
func userPrompt(req Request) (string, error) {
	pm := req.Map
	if pm == nil {
		pm = &parsedmap.ParsedMap{}
	}
	data, err := pm.Encode()
	if err != nil {
		return "", fmt.Errorf("summarize: encode map: %w", err)
	}
	return fmt.Sprintf("Explain function: %s in code map: %s\n\nFunction code:\n%s",
		req.FunctionName, data, req.Code), nil
}
