// Package agent is the client of the text-generation collaborator. It
// assembles the prompt from the tutor persona, the retrieved study
// material and the bounded conversation history, then drives the
// LLM/tool loop as a finite state machine.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/config"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/knowledge"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/llm"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/logger"
)

// FSM states of one Generate call.
type FSMState stateless.State

var (
	StateReadyToCallLLM FSMState = "ReadyToCallLLM"
	StateExecutingTools FSMState = "ExecutingTools"
	StateDone           FSMState = "Done"
	StateError          FSMState = "Error"
)

// FSM triggers.
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

// MCPClientInterface is the subset of the MCP client used here.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

const defaultSystemPrompt = "You are Sahayak, a patient teaching assistant for school students. " +
	"Answer accurately and step by step, in words a student can follow, and stay consistent with the earlier conversation."

// maxLoopTurns bounds the LLM -> tools -> LLM loop of one Generate call.
const maxLoopTurns = 5

// Agent implements conversation.Generator over an OpenAI-compatible
// chat API, with optional MCP tools.
type Agent struct {
	llmClient    llm.Client
	cfg          config.LLMConfig
	retriever    *knowledge.Retriever
	mcpClients   []MCPClientInterface
	llmTools     []openai.Tool
	toolOwner    map[string]MCPClientInterface
	systemPrompt string
}

// New creates the agent and connects the configured MCP servers. A
// server that fails to start is logged and skipped; the agent works
// without tools.
func New(llmClient llm.Client, appCfg config.Config, retriever *knowledge.Retriever) *Agent {
	a := &Agent{
		llmClient:    llmClient,
		cfg:          appCfg.LLM,
		retriever:    retriever,
		toolOwner:    make(map[string]MCPClientInterface),
		systemPrompt: defaultSystemPrompt,
	}
	if appCfg.LLM.SystemPrompt != "" {
		a.systemPrompt = appCfg.LLM.SystemPrompt
	}

	setupCtx := context.Background()
	for _, serverCfg := range appCfg.MCPServers {
		mcpC, err := dialMCP(serverCfg)
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(setupCtx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				closeQuiet(mcpC, serverCfg.Name)
				continue
			}
		}
		if _, err := mcpC.Initialize(setupCtx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			closeQuiet(mcpC, serverCfg.Name)
			continue
		}
		a.mcpClients = append(a.mcpClients, mcpC)
		a.registerTools(setupCtx, mcpC, serverCfg.Name)
	}
	return a
}

func dialMCP(serverCfg config.MCPServerConfig) (*client.Client, error) {
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		return client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		return client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q (use sse, streamable_http or stdio)", serverCfg.Type)
	}
}

func closeQuiet(c MCPClientInterface, name string) {
	if err := c.Close(); err != nil {
		logger.L.Warn("MCP client close error", "name", name, "error", err)
	}
}

// registerTools lists the server's tools and exposes them to the LLM.
// Duplicate tool names keep their first owner.
func (a *Agent) registerTools(ctx context.Context, mcpC MCPClientInterface, serverName string) {
	serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		logger.L.Warn("failed to list tools for MCP client", "name", serverName, "error", err)
		return
	}
	for _, mcpTool := range serverTools.Tools {
		if _, exists := a.toolOwner[mcpTool.Name]; exists {
			logger.L.Warn("tool already registered from another server, skipping", "tool", mcpTool.Name, "name", serverName)
			continue
		}
		a.toolOwner[mcpTool.Name] = mcpC
		a.llmTools = append(a.llmTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  toolSchema(mcpTool),
			},
		})
		logger.L.Info("registered MCP tool for LLM", "tool", mcpTool.Name, "name", serverName)
	}
}

func toolSchema(t mcp.Tool) json.RawMessage {
	if len(t.RawInputSchema) > 0 && string(t.RawInputSchema) != "null" {
		return t.RawInputSchema
	}
	schemaBytes, err := json.Marshal(t.InputSchema)
	if err != nil || string(schemaBytes) == "{}" || string(schemaBytes) == "null" {
		return json.RawMessage(`{"type": "object", "properties": {}}`)
	}
	return json.RawMessage(schemaBytes)
}

// buildMessages turns the session window plus the new question into
// the chat payload. Study material and the language instruction ride
// in the system prompt.
func (a *Agent) buildMessages(history []conversation.Turn, question, language string) []openai.ChatCompletionMessage {
	var sb strings.Builder
	sb.WriteString(a.systemPrompt)
	if language != "" {
		fmt.Fprintf(&sb, "\n\nRespond in the language tagged %q, respecting its conventions.", language)
	}
	if a.retriever != nil {
		if material := a.retriever.Retrieve(question); material != "" {
			sb.WriteString("\n\nRelevant study material:\n")
			sb.WriteString(material)
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: sb.String(),
	})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})
}

// Generate implements conversation.Generator. The call is synchronous;
// any failure of the LLM or the loop surfaces as an error for the
// conversation core to classify.
func (a *Agent) Generate(ctx context.Context, history []conversation.Turn, question, language string) (string, error) {
	type loopContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
	}
	lc := &loopContext{messages: a.buildMessages(history, question, language)}

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if lc.currentTurn >= maxLoopTurns {
				lc.lastError = errors.New("exceeded maximum interaction turns")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			lc.currentTurn++

			resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.cfg.Model,
				Messages: lc.messages,
				Tools:    a.llmTools,
			})
			if err != nil {
				lc.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			lc.llmResponse = &resp

			if len(resp.Choices) == 0 {
				lc.lastError = errors.New("LLM returned no choices")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			if len(resp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			llmMessage := lc.llmResponse.Choices[0].Message
			lc.messages = append(lc.messages, llmMessage)
			for _, toolCall := range llmMessage.ToolCalls {
				lc.messages = append(lc.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    a.executeTool(ctx, toolCall),
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(_ context.Context, _ ...any) error {
			lc.finalContent = lc.llmResponse.Choices[0].Message.Content
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(_ context.Context, _ ...any) error {
			if lc.lastError == nil {
				lc.lastError = errors.New("generation loop reached error state without a specific error")
			}
			return nil
		})

	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		if lc.lastError != nil {
			return "", lc.lastError
		}
		return "", fmt.Errorf("generation loop start: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("generation loop state: %w", err)
	}
	switch state {
	case StateDone:
		return lc.finalContent, nil
	case StateError:
		return "", lc.lastError
	default:
		return "", fmt.Errorf("generation loop ended in unexpected state %v", state)
	}
}

// executeTool runs one MCP tool call and renders its outcome as text
// for the LLM. Tool failures become messages, not errors, so the LLM
// can recover.
func (a *Agent) executeTool(ctx context.Context, toolCall openai.ToolCall) string {
	name := toolCall.Function.Name
	owner, ok := a.toolOwner[name]
	if !ok {
		return "Error: no MCP server provides tool " + name
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		return "Error: could not parse arguments for tool " + name
	}

	result, err := owner.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "tool", name, "error", err)
		return "Error: tool " + name + " failed: " + err.Error()
	}
	for _, item := range result.Content {
		if text, ok := item.(mcp.TextContent); ok {
			return text.Text
		}
	}
	if raw, merr := json.Marshal(result); merr == nil {
		return string(raw)
	}
	return "Tool executed successfully, but the result could not be formatted."
}

// Close shuts down all MCP clients.
func (a *Agent) Close() {
	for _, c := range a.mcpClients {
		closeQuiet(c, "")
	}
}
