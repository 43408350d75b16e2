package agentloop

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionState is the state of the conversation state machine.
type SessionState int

const (
	AwaitingUserInput SessionState = iota
	ProcessingModelTurn
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case AwaitingUserInput:
		return "awaiting_user_input"
	case ProcessingModelTurn:
		return "processing_model_turn"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// InputSource supplies user messages. ok=false signals end of input.
type InputSource interface {
	Next(ctx context.Context) (text string, ok bool)
}

// Display shows model text and tool invocations to the operator.
type Display interface {
	ToolObserver
	AssistantText(text string)
}

// Session is the agent loop. It owns the transcript and alternates between
// soliciting user input and running model turns until input ends or the
// gateway fails. A Session is not safe for concurrent use.
type Session struct {
	id         string
	state      SessionState
	transcript *Transcript
	gateway    ModelGateway
	executor   *ToolExecutor
	input      InputSource
	display    Display
	loopWindow int
	logger     zerolog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithLoopWindow sets how many recent tool uses are checked for repetition.
// Zero disables the check.
func WithLoopWindow(n int) SessionOption {
	return func(s *Session) {
		s.loopWindow = n
	}
}

// NewSession wires a session in the AwaitingUserInput state.
func NewSession(gateway ModelGateway, executor *ToolExecutor, input InputSource, display Display, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.New().String(),
		state:      AwaitingUserInput,
		transcript: NewTranscript(),
		gateway:    gateway,
		executor:   executor,
		input:      input,
		display:    display,
		loopWindow: DefaultLoopWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().Str("session_id", s.id).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() SessionState { return s.state }

// Transcript returns a deep copy of the conversation so far.
func (s *Session) Transcript() []Turn { return s.transcript.Turns() }

// Run drives the state machine until it reaches Terminated. It returns nil
// when input ends and the gateway's error when inference fails.
//
// ctx is only consulted while waiting for input: once a message is accepted
// the model turn and its tool chain run to completion.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info().Msg("session started")
	defer func() {
		s.logger.Info().Int("turns", s.transcript.Len()).Msg("session ended")
	}()

	for s.state != Terminated {
		var err error
		switch s.state {
		case AwaitingUserInput:
			err = s.awaitUserInput(ctx)
		case ProcessingModelTurn:
			err = s.processModelTurn(context.WithoutCancel(ctx))
		default:
			err = errors.Errorf("unknown session state %d", s.state)
		}
		if err != nil {
			s.state = Terminated
			return err
		}
	}
	return nil
}

func (s *Session) awaitUserInput(ctx context.Context) error {
	text, ok := s.input.Next(ctx)
	if !ok {
		s.logger.Debug().Msg("end of input")
		s.state = Terminated
		return nil
	}
	if err := s.transcript.AppendUserText(text); err != nil {
		return errors.Wrap(err, "append user text")
	}
	s.state = ProcessingModelTurn
	return nil
}

func (s *Session) processModelTurn(ctx context.Context) error {
	s.logger.Debug().Int("turns", s.transcript.Len()).Msg("requesting model turn")

	segments, err := s.gateway.Infer(ctx, s.transcript.Turns())
	if err != nil {
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			err = &GatewayError{Err: err}
		}
		s.logger.Error().Err(err).Msg("inference failed")
		return err
	}

	if len(segments) == 0 {
		// nothing to record; the next user message joins the pending user turn
		s.logger.Debug().Msg("model turn is empty")
		s.state = AwaitingUserInput
		return nil
	}
	if err := validateAssistantSegments(segments); err != nil {
		return &GatewayError{Err: errors.Wrap(ErrMalformedResponse, err.Error())}
	}

	var results []ToolResult
	for _, seg := range segments {
		switch v := seg.(type) {
		case Text:
			s.display.AssistantText(v.Content)
		case ToolUse:
			results = append(results, s.executor.Execute(ctx, v.ID, v.Name, v.Arguments))
		}
	}

	if err := s.transcript.Append(NewAssistantTurn(segments...)); err != nil {
		return errors.Wrap(err, "append assistant turn")
	}
	if len(results) == 0 {
		s.state = AwaitingUserInput
		return nil
	}

	if err := s.transcript.Append(NewToolResultsTurn(results)); err != nil {
		return errors.Wrap(err, "append tool results turn")
	}
	if DetectLoop(s.transcript.Turns(), s.loopWindow) {
		s.logger.Warn().Int("window", s.loopWindow).Msg("model is repeating the same tool calls")
	}
	s.logger.Debug().Int("tool_results", len(results)).Msg("continuing tool chain")
	return nil
}
