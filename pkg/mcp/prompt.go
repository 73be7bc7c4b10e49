package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/fluxcheck/pkg/validate"
)

const promptTemplate = `### PERSONA
You are a job validation expert.

### CONTEXT
A job specification must be checked for correctness before it is submitted.

### GOAL
Decide whether the following job specification is correct:

` + "```" + `
%s
` + "```" + `

### REQUIREMENTS
Return a JSON object with "valid" (bool) and "reasons" (list of strings).
You MAY add "issues", a list of critiques of any code in the script.

### INSTRUCTIONS
1. Read the script above.
2. Call the %s tool if it is available, otherwise rely on your own knowledge.
3. Judge validity from the resource requests only.
4. Keep "reasons" about resources only.
5. Put problems with the rest of the script in "issues".
`

func validatePrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	script := req.Params.Arguments["script"]
	if script == "" {
		return nil, fmt.Errorf("prompt %s requires the script argument", PromptValidate)
	}
	return mcp.NewGetPromptResult(
		"Validate a job specification",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(fmt.Sprintf(promptTemplate, script, ToolValidate))),
		},
	), nil
}

func encodeResult(res validate.Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
