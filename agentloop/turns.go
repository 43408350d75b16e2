package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// Role tags a Turn with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Segment is one unit of content within a Turn. The implementations are
// Text, ToolUse and ToolResult; the set is closed.
type Segment interface {
	segment()
}

// Text is natural-language content written by the user or the model.
type Text struct {
	Content string `json:"content"`
}

// ToolUse is a model-issued request to run a tool. Arguments is a JSON object.
type ToolUse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of a ToolUse, correlated by ID.
type ToolResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

func (Text) segment()       {}
func (ToolUse) segment()    {}
func (ToolResult) segment() {}

// Turn is a single role-tagged entry in the transcript.
type Turn struct {
	Role     Role      `json:"role"`
	Segments []Segment `json:"segments"`
}

// NewUserTurn creates a user Turn holding one Text segment.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Segments: []Segment{Text{Content: text}}}
}

// NewAssistantTurn creates an assistant Turn from the model's segments.
func NewAssistantTurn(segments ...Segment) Turn {
	return Turn{Role: RoleAssistant, Segments: segments}
}

// NewToolResultsTurn creates the user Turn that answers an assistant turn's
// tool uses. results must already be in request order.
func NewToolResultsTurn(results []ToolResult) Turn {
	segments := make([]Segment, 0, len(results))
	for _, r := range results {
		segments = append(segments, r)
	}
	return Turn{Role: RoleUser, Segments: segments}
}

// Text returns the concatenated Text segments of the turn.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, seg := range t.Segments {
		if txt, ok := seg.(Text); ok {
			sb.WriteString(txt.Content)
		}
	}
	return sb.String()
}

// ToolUses returns the ToolUse segments of the turn in order.
func (t Turn) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, seg := range t.Segments {
		if use, ok := seg.(ToolUse); ok {
			uses = append(uses, use)
		}
	}
	return uses
}

// ToolResults returns the ToolResult segments of the turn in order.
func (t Turn) ToolResults() []ToolResult {
	var results []ToolResult
	for _, seg := range t.Segments {
		if res, ok := seg.(ToolResult); ok {
			results = append(results, res)
		}
	}
	return results
}

// ErrInvalidTurn is returned (wrapped) when a turn would break the transcript
// ordering rules.
var ErrInvalidTurn = errors.New("invalid turn")

// Transcript is the append-only turn history of one session. Roles
// alternate starting with user, and every ToolUse of an assistant turn is
// answered, in order, by the leading ToolResult segments of the next turn.
type Transcript struct {
	turns []Turn
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append validates turn against the current history and appends it. A
// rejected turn leaves the transcript unchanged.
func (tr *Transcript) Append(turn Turn) error {
	if err := tr.validate(turn); err != nil {
		return err
	}
	tr.turns = append(tr.turns, clone.Clone(turn).(Turn))
	return nil
}

func (tr *Transcript) validate(turn Turn) error {
	switch turn.Role {
	case RoleUser, RoleAssistant:
	default:
		return errors.Wrapf(ErrInvalidTurn, "unknown role %q", turn.Role)
	}
	if len(turn.Segments) == 0 {
		return errors.Wrap(ErrInvalidTurn, "turn has no segments")
	}

	expected := RoleUser
	if n := len(tr.turns); n > 0 && tr.turns[n-1].Role == RoleUser {
		expected = RoleAssistant
	}
	if turn.Role != expected {
		return errors.Wrapf(ErrInvalidTurn, "expected a %s turn, got %s", expected, turn.Role)
	}

	if turn.Role == RoleAssistant {
		return validateAssistantSegments(turn.Segments)
	}

	var pending []ToolUse
	if n := len(tr.turns); n > 0 {
		pending = tr.turns[n-1].ToolUses()
	}
	return validateUserSegments(turn.Segments, pending)
}

func validateAssistantSegments(segments []Segment) error {
	seen := make(map[string]bool)
	for i, seg := range segments {
		switch s := seg.(type) {
		case Text:
		case ToolUse:
			if s.ID == "" || s.Name == "" {
				return errors.Wrapf(ErrInvalidTurn, "tool use %d has an empty id or name", i)
			}
			if seen[s.ID] {
				return errors.Wrapf(ErrInvalidTurn, "duplicate tool use id %q", s.ID)
			}
			seen[s.ID] = true
		case ToolResult:
			return errors.Wrap(ErrInvalidTurn, "assistant turn cannot carry tool results")
		default:
			return errors.Wrapf(ErrInvalidTurn, "unknown segment %T", seg)
		}
	}
	return nil
}

func validateUserSegments(segments []Segment, pending []ToolUse) error {
	if len(segments) < len(pending) {
		return errors.Wrapf(ErrInvalidTurn, "%d tool uses are unanswered", len(pending)-len(segments))
	}
	for i, use := range pending {
		res, ok := segments[i].(ToolResult)
		if !ok {
			return errors.Wrapf(ErrInvalidTurn, "segment %d must answer tool use %q", i, use.ID)
		}
		if res.ID != use.ID {
			return errors.Wrapf(ErrInvalidTurn, "segment %d answers %q, expected %q", i, res.ID, use.ID)
		}
	}
	for _, seg := range segments[len(pending):] {
		switch seg.(type) {
		case Text:
		case ToolUse:
			return errors.Wrap(ErrInvalidTurn, "user turn cannot carry tool uses")
		case ToolResult:
			return errors.Wrap(ErrInvalidTurn, "tool result does not answer a pending tool use")
		default:
			return errors.Wrapf(ErrInvalidTurn, "unknown segment %T", seg)
		}
	}
	return nil
}

// AppendUserText records a user message. While the latest turn is still an
// unanswered user turn the text joins it, otherwise a new user turn starts.
func (tr *Transcript) AppendUserText(text string) error {
	n := len(tr.turns)
	if n == 0 || tr.turns[n-1].Role != RoleUser {
		return tr.Append(NewUserTurn(text))
	}
	var pending []ToolUse
	if n > 1 {
		pending = tr.turns[n-2].ToolUses()
	}
	merged := append(clone.Clone(tr.turns[n-1].Segments).([]Segment), Text{Content: text})
	if err := validateUserSegments(merged, pending); err != nil {
		return err
	}
	tr.turns[n-1].Segments = merged
	return nil
}

// Turns returns a deep copy of the history.
func (tr *Transcript) Turns() []Turn {
	if len(tr.turns) == 0 {
		return []Turn{}
	}
	return clone.Clone(tr.turns).([]Turn)
}

// Len returns the number of turns.
func (tr *Transcript) Len() int {
	return len(tr.turns)
}

// Last returns a copy of the most recent turn.
func (tr *Transcript) Last() (Turn, bool) {
	if len(tr.turns) == 0 {
		return Turn{}, false
	}
	return clone.Clone(tr.turns[len(tr.turns)-1]).(Turn), true
}
