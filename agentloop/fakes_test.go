package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
)

// scriptedGateway returns one scripted model turn per Infer call and
// records the transcripts it was given.
type scriptedGateway struct {
	turns [][]Segment
	err   error
	calls [][]Turn
}

func (g *scriptedGateway) Infer(ctx context.Context, transcript []Turn) ([]Segment, error) {
	g.calls = append(g.calls, transcript)
	i := len(g.calls) - 1
	if i >= len(g.turns) {
		if g.err != nil {
			return nil, g.err
		}
		return nil, &GatewayError{Err: fmt.Errorf("unexpected inference call %d", i+1)}
	}
	return g.turns[i], nil
}

// scriptedInput hands out lines until exhausted, then reports end of input.
type scriptedInput struct {
	lines []string
	asked int
	// onNext, if set, runs before each Next and sees the call number.
	onNext func(call int)
}

func (in *scriptedInput) Next(ctx context.Context) (string, bool) {
	in.asked++
	if in.onNext != nil {
		in.onNext(in.asked)
	}
	if len(in.lines) == 0 {
		return "", false
	}
	line := in.lines[0]
	in.lines = in.lines[1:]
	return line, true
}

type invocation struct {
	name      string
	arguments string
}

// recordingDisplay captures everything shown to the operator.
type recordingDisplay struct {
	texts       []string
	invocations []invocation
}

func (d *recordingDisplay) AssistantText(text string) {
	d.texts = append(d.texts, text)
}

func (d *recordingDisplay) ToolInvoked(name string, arguments string) {
	d.invocations = append(d.invocations, invocation{name: name, arguments: arguments})
}

// echoTool answers every call with "<name>:<arguments>".
func echoTool(name ToolName) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "echo " + string(name),
		Handler: ToolHandlerFunc(func(ctx context.Context, arguments json.RawMessage) (string, error) {
			return string(name) + ":" + string(arguments), nil
		}),
	}
}

func toolUse(id string, name ToolName, args string) ToolUse {
	return ToolUse{ID: id, Name: string(name), Arguments: json.RawMessage(args)}
}

func mustJSON(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
