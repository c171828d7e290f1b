// Package main is an interactive terminal client for the strand server.
// It streams chat responses and exposes thread management commands.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	baseURL  string
	threadID string
	http     *http.Client
}

func main() {
	var (
		serverURL string
		threadID  string
	)

	root := &cobra.Command{
		Use:           "strand-chat",
		Short:         "Interactive chat client for a strand server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &client{
				baseURL:  strings.TrimRight(serverURL, "/"),
				threadID: threadID,
				http:     &http.Client{Timeout: 0},
			}
			return c.repl()
		},
	}

	root.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "strand server base URL")
	root.Flags().StringVar(&threadID, "thread", "", "resume an existing thread ID")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (c *client) repl() error {
	fmt.Println("strand chat client")
	fmt.Println("Commands: /new /history /clear /delete /exit")
	if c.threadID != "" {
		fmt.Printf("Resuming thread %s\n", c.threadID)
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/new":
			c.threadID = ""
			fmt.Println("New thread will be created on the next message")
		case "/history":
			c.showHistory()
		case "/clear":
			c.threadOp(http.MethodPut, "clear")
		case "/delete":
			if c.threadOp(http.MethodDelete, "") {
				c.threadID = ""
			}
		default:
			if strings.HasPrefix(line, "/") {
				fmt.Println("Unknown command:", line)
				continue
			}
			c.send(line)
		}
	}
}

// streamEvent mirrors the server's wire protocol; only the fields the
// client renders are decoded.
type streamEvent struct {
	Type     string         `json:"type"`
	Content  *string        `json:"content"`
	ThreadID string         `json:"thread_id"`
	Metadata map[string]any `json:"metadata"`
}

func (c *client) send(input string) {
	payload := map[string]any{
		"input": input,
		"session_metadata": map[string]any{
			"client":    "strand-chat",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if c.threadID != "" {
		payload["thread_id"] = c.threadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	resp, err := c.http.Post(c.baseURL+"/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Connection error:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fmt.Printf("Error: HTTP %d: %s\n", resp.StatusCode, strings.TrimSpace(string(msg)))
		return
	}
	if id := resp.Header.Get("X-Thread-ID"); id != "" {
		c.threadID = id
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	printedToken := false
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		if ev.ThreadID != "" && c.threadID == "" {
			c.threadID = ev.ThreadID
		}
		switch ev.Type {
		case "token":
			if ev.Content != nil {
				fmt.Print(*ev.Content)
				printedToken = true
			}
		case "tool_event":
			name, _ := ev.Metadata["name"].(string)
			phase, _ := ev.Metadata["event"].(string)
			if printedToken {
				fmt.Println()
				printedToken = false
			}
			fmt.Printf("[tool %s %s]\n", name, phase)
		case "error":
			if printedToken {
				fmt.Println()
				printedToken = false
			}
			msg := "unknown error"
			if ev.Content != nil {
				msg = *ev.Content
			}
			fmt.Println("Error:", msg)
		}
	}
	if printedToken {
		fmt.Println()
	}
	if err := sc.Err(); err != nil {
		fmt.Println("Stream error:", err)
	}
}

func (c *client) showHistory() {
	if c.threadID == "" {
		fmt.Println("No active thread")
		return
	}
	resp, err := c.http.Get(fmt.Sprintf("%s/threads/%s/history", c.baseURL, c.threadID))
	if err != nil {
		fmt.Println("Connection error:", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: HTTP %d\n", resp.StatusCode)
		return
	}

	var out struct {
		ThreadID string `json:"thread_id"`
		History  []struct {
			Timestamp time.Time `json:"timestamp"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"history"`
		TotalMessages int `json:"total_messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("Thread %s (%d snapshots)\n", out.ThreadID, out.TotalMessages)
	if len(out.History) == 0 {
		fmt.Println("  (empty)")
		return
	}
	// Most recent snapshot holds the full conversation so far.
	for _, m := range out.History[0].Messages {
		content := m.Content
		if len(content) > 120 {
			content = content[:117] + "..."
		}
		fmt.Printf("  %-6s %s\n", m.Role, content)
	}
}

// threadOp issues a management request against the current thread.
// Reports whether the server accepted it.
func (c *client) threadOp(method, op string) bool {
	if c.threadID == "" {
		fmt.Println("No active thread")
		return false
	}
	url := fmt.Sprintf("%s/threads/%s", c.baseURL, c.threadID)
	if op != "" {
		url += "/" + op
	}
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		fmt.Println("Error:", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Println("Connection error:", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		fmt.Printf("Error: HTTP %d\n", resp.StatusCode)
		return false
	}
	fmt.Println("OK")
	return true
}
