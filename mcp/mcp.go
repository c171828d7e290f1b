// Package mcp discovers tools from Model Context Protocol servers and adapts
// them to the agent's Tool interface. Servers are declared in the config
// file; each connected server contributes its tools under a
// "{server}_{tool}" name so names stay unique across servers.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"strand/agent"
)

const (
	connectTimeout = 30 * time.Second
	listTimeout    = 30 * time.Second
	callTimeout    = 60 * time.Second
)

// ServerConfig declares one MCP server. A server is reached either by
// spawning a command (stdio transport) or over streamable HTTP; exactly one
// of Command and URL must be set.
type ServerConfig struct {
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Manager holds the live sessions to the configured MCP servers.
type Manager struct {
	sessions map[string]*mcp.ClientSession
}

// Connect dials every configured server. A server that fails to connect is
// logged and skipped rather than failing startup; the agent still runs with
// the tools that did come up.
func Connect(ctx context.Context, servers map[string]ServerConfig) *Manager {
	m := &Manager{sessions: make(map[string]*mcp.ClientSession)}
	for name, server := range servers {
		session, err := connect(ctx, server)
		if err != nil {
			log.Printf("WARNING: MCP server %s unavailable: %v", name, err)
			continue
		}
		m.sessions[name] = session
	}
	return m
}

func connect(ctx context.Context, server ServerConfig) (*mcp.ClientSession, error) {
	transport, err := buildTransport(server)
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "strand",
		Version: "1.0.0",
	}, nil)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	return client.Connect(ctx, transport, nil)
}

func buildTransport(server ServerConfig) (mcp.Transport, error) {
	if server.Command != "" {
		return &mcp.CommandTransport{
			Command: exec.Command(server.Command, server.Args...),
		}, nil
	}

	if server.URL != "" {
		httpClient := http.DefaultClient
		if len(server.Headers) > 0 {
			httpClient = &http.Client{
				Transport: &headerTransport{
					base:    http.DefaultTransport,
					headers: server.Headers,
				},
			}
		}
		return &mcp.StreamableClientTransport{
			Endpoint:   server.URL,
			HTTPClient: httpClient,
		}, nil
	}

	return nil, fmt.Errorf("no command or url configured")
}

// Tools lists the tools every connected server exposes and wraps them as
// agent tools. A server whose listing fails is logged and skipped.
func (m *Manager) Tools(ctx context.Context) []agent.Tool {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var tools []agent.Tool
	for serverName, session := range m.sessions {
		result, err := session.ListTools(ctx, nil)
		if err != nil {
			log.Printf("WARNING: list tools from MCP server %s: %v", serverName, err)
			continue
		}
		for _, t := range result.Tools {
			tools = append(tools, wrapTool(serverName, session, t.Name, t.Description, convertSchema(t.InputSchema)))
		}
	}
	return tools
}

// Close shuts down all server sessions.
func (m *Manager) Close() {
	for _, s := range m.sessions {
		s.Close()
	}
}

func wrapTool(serverName string, session *mcp.ClientSession, name, desc string, params map[string]any) agent.Tool {
	return &agent.FuncTool{
		ToolName:   toolName(serverName, name),
		ToolDesc:   desc,
		ToolParams: params,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return callTool(ctx, session, name, args)
		},
	}
}

func toolName(serverName, name string) string {
	return fmt.Sprintf("%s_%s", serverName, name)
}

// convertSchema turns the SDK's schema representation into the plain map the
// LLM request wants. It round-trips through JSON rather than type-asserting
// so the concrete schema type stays the SDK's business.
func convertSchema(schema any) map[string]any {
	var params map[string]any
	if schema != nil {
		if data, err := json.Marshal(schema); err == nil {
			json.Unmarshal(data, &params)
		}
	}
	if params == nil {
		params = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return params
}

func callTool(ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %w", err)
	}
	if result.IsError {
		return "", fmt.Errorf("MCP tool returned error: %s", extractText(result.Content))
	}
	return extractText(result.Content), nil
}

func extractText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// headerTransport adds fixed headers to every request, for servers that sit
// behind token auth.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
