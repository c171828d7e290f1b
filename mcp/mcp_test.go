package mcp

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestConvertSchema(t *testing.T) {
	t.Run("nil schema gets default", func(t *testing.T) {
		params := convertSchema(nil)
		if params["type"] != "object" {
			t.Fatalf("expected object default, got %v", params)
		}
		if _, ok := params["properties"]; !ok {
			t.Fatalf("expected empty properties, got %v", params)
		}
	})

	t.Run("map schema passes through", func(t *testing.T) {
		in := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		}
		params := convertSchema(in)
		props, ok := params["properties"].(map[string]any)
		if !ok {
			t.Fatalf("expected properties map, got %v", params)
		}
		if _, ok := props["query"]; !ok {
			t.Fatalf("expected query property kept, got %v", props)
		}
	})

	t.Run("unmarshalable schema falls back to default", func(t *testing.T) {
		params := convertSchema(make(chan int))
		if params["type"] != "object" {
			t.Fatalf("expected object default, got %v", params)
		}
	})
}

func TestExtractText(t *testing.T) {
	got := extractText([]mcp.Content{
		&mcp.TextContent{Text: "first"},
		&mcp.TextContent{Text: "second"},
	})
	if got != "first\nsecond" {
		t.Fatalf("expected joined text, got %q", got)
	}

	if got := extractText(nil); got != "" {
		t.Fatalf("expected empty text for no content, got %q", got)
	}
}

func TestToolName(t *testing.T) {
	if got := toolName("github", "create_issue"); got != "github_create_issue" {
		t.Fatalf("expected server-prefixed name, got %q", got)
	}
}

func TestBuildTransport(t *testing.T) {
	t.Run("command", func(t *testing.T) {
		tr, err := buildTransport(ServerConfig{Command: "mcp-server", Args: []string{"--stdio"}})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := tr.(*mcp.CommandTransport); !ok {
			t.Fatalf("expected command transport, got %T", tr)
		}
	})

	t.Run("url", func(t *testing.T) {
		tr, err := buildTransport(ServerConfig{URL: "http://localhost:8900/mcp"})
		if err != nil {
			t.Fatal(err)
		}
		st, ok := tr.(*mcp.StreamableClientTransport)
		if !ok {
			t.Fatalf("expected streamable transport, got %T", tr)
		}
		if st.Endpoint != "http://localhost:8900/mcp" {
			t.Fatalf("unexpected endpoint %q", st.Endpoint)
		}
	})

	t.Run("headers wrap the http client", func(t *testing.T) {
		tr, err := buildTransport(ServerConfig{
			URL:     "http://localhost:8900/mcp",
			Headers: map[string]string{"Authorization": "Bearer tok"},
		})
		if err != nil {
			t.Fatal(err)
		}
		st := tr.(*mcp.StreamableClientTransport)
		if _, ok := st.HTTPClient.Transport.(*headerTransport); !ok {
			t.Fatalf("expected header round tripper, got %T", st.HTTPClient.Transport)
		}
	})

	t.Run("neither configured", func(t *testing.T) {
		if _, err := buildTransport(ServerConfig{}); err == nil {
			t.Fatal("expected error when no command or url is set")
		}
	})
}
