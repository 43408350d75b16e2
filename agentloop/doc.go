// Package agentloop is the conversational agent loop: a state machine that
// alternates between asking the user for input and asking the model for a
// turn, running the tools the model requests in between.
//
// The pieces, leaves first:
//
//   - ToolRegistry: the fixed catalog of ToolDefinitions (read_file,
//     list_files, edit_file), each with a JSON schema reflected from its
//     typed input struct.
//   - ToolExecutor: validates arguments and runs a tool, turning every
//     failure, including panics and unknown names, into an error-tagged
//     ToolResult.
//   - ModelGateway: sends the transcript and the catalog to the backend and
//     returns the model's segments in order.
//   - Session: owns the Transcript and drives the AwaitingUserInput,
//     ProcessingModelTurn and Terminated states.
//
// A model turn that contains tool uses is answered by a synthesized user
// turn holding one ToolResult per use, in request order, and the session
// goes straight back to the model without asking the user for input. A
// model turn with no content is not recorded; the session waits for input
// and the next message joins the user turn the model never answered.
//
//	env, _ := agentloop.NewLocalEnvironment("")
//	registry, _ := agentloop.NewToolRegistry(agentloop.CoreTools(env)...)
//	gateway := agentloop.NewLLMGateway(client, registry, agentloop.GatewayConfig{Model: "claude-3-7-sonnet-latest"})
//	session := agentloop.NewSession(gateway, agentloop.NewToolExecutor(registry, display), input, display)
//	err := session.Run(ctx)
package agentloop
