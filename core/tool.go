package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
)

var systemToolPrompt = `
You have access to the following tools. Each tool has specific capabilities and parameters that you must understand to use them correctly.
<tools>
{{tools}}
</tools>
Tools Usage Instructions
When using tools, follow these guidelines:

1.Tool Selection: You may only call the tools listed above. Any other tool name is rejected.
2.Parameter Formatting: When calling a tool, ensure all required parameters are provided in the correct format.
3.Tool Invocation Format: Use the following format to invoke a tool and stop writing after the closing tag:

<tools>
<tool_call>
  <tool_name>name_of_the_tool</tool_name>
  <parameters>
    {"param1": "value1", "param2": "value2"}
  </parameters>
</tool_call>
</tools>
4.Response Handling: The tool output is returned to you inside <tool_result></tool_result> tags. Incorporate it into your next step.
5.Error Handling: If a tool call fails, read the error, fix your input and try again or explain the failure in your response.
6.Multiple Tool Calls: You can make multiple tool calls in sequence when necessary.
`

// ToolDescriptor is what a worker's model sees of a tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is one <tool_call> block parsed out of a model reply.
type ToolCall struct {
	ToolName   string
	Parameters map[string]any
}

// GetToolPrompt renders the tool usage instructions for descriptors.
func GetToolPrompt(descriptors []ToolDescriptor) string {
	listing := "[]"
	if len(descriptors) > 0 {
		// Descriptors hold only strings and pre-encoded JSON.
		b, _ := json.Marshal(descriptors)
		listing = string(b)
	}
	return ReplaceLabels(systemToolPrompt, map[string]string{"tools": listing})
}

// ReplaceLabels substitutes every {{label}} in template.
func ReplaceLabels(template string, labels map[string]string) string {
	pairs := make([]string, 0, len(labels)*2)
	for label, value := range labels {
		pairs = append(pairs, "{{"+label+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

var toolCallRegex = regexp.MustCompile(`(?s)<tool_call>\s*<tool_name>(.*?)</tool_name>\s*<parameters>\s*(.*?)\s*</parameters>\s*</tool_call>`)

// ExtractToolCalls returns the tool calls in reply, in order. A call with
// an empty name or parameters that are not a JSON object fails the whole
// reply.
func ExtractToolCalls(reply string) ([]ToolCall, error) {
	var calls []ToolCall
	for _, m := range toolCallRegex.FindAllStringSubmatch(reply, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			return nil, errors.New("tool call without a tool name")
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[2])), &params); err != nil {
			return nil, fmt.Errorf("failed to parse parameters for tool %s: %w", name, err)
		}
		calls = append(calls, ToolCall{ToolName: name, Parameters: params})
	}
	return calls, nil
}

// ExtractTagContent returns the inner text of every complete <tag>...</tag>
// pair in s joined by newlines, and whether any pair was found.
func ExtractTagContent(s, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"
	var parts []string
	for {
		_, rest, ok := strings.Cut(s, open)
		if !ok {
			break
		}
		inner, after, ok := strings.Cut(rest, closing)
		if !ok {
			break
		}
		parts = append(parts, strings.TrimSpace(inner))
		s = after
	}
	return strings.Join(parts, "\n"), len(parts) > 0
}

// GetSchema reflects the inline JSON schema of the struct obj points to.
func GetSchema(obj any) (*jsonschema.Schema, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer {
		return nil, errors.New("schema source must be a pointer")
	}
	if v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema source must point to a struct, got %s", v.Elem().Kind())
	}

	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(obj)
	schema.Version = ""
	schema.ID = ""
	return schema, nil
}
