// Package main runs the strand HTTP server: a streaming chat API backed
// by a tool-calling agent with persistent conversation threads.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"strand/agent"
	"strand/config"
	"strand/handlers"
	"strand/llm"
	"strand/mcp"
	"strand/store"
)

func main() {
	var (
		configPath string
		host       string
		port       int
		model      string
		dataDir    string
	)

	root := &cobra.Command{
		Use:           "strand-server",
		Short:         "Streaming chat agent server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = model
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			return run(cfg)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.Flags().StringVar(&host, "host", "", "listen host")
	root.Flags().IntVar(&port, "port", 0, "listen port")
	root.Flags().StringVar(&model, "model", "", "model spec, e.g. openai:gpt-4o-mini or ollama:llama3")
	root.Flags().StringVar(&dataDir, "data-dir", "", "thread storage directory")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	st, err := store.Open(store.Options{Dir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("open thread store: %w", err)
	}
	defer st.Close()

	// The server stays up without a usable LLM client; chat requests get
	// an in-band error event until credentials are provided.
	var ag *agent.Agent
	client, model, err := llm.Resolve(cfg.Model, &llm.ResolverConfig{
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
	})
	if err != nil {
		log.Printf("WARNING: agent disabled: %v", err)
	} else {
		tools := agent.BuiltinTools()
		if len(cfg.MCPServers) > 0 {
			mgr := mcp.Connect(context.Background(), cfg.MCPServers)
			defer mgr.Close()
			mcpTools := mgr.Tools(context.Background())
			log.Printf("MCP: %d tools discovered from %d configured servers", len(mcpTools), len(cfg.MCPServers))
			tools = append(tools, mcpTools...)
		}
		ag = agent.New(agent.Config{
			Model:         model,
			SystemPrompt:  cfg.SystemPrompt,
			MaxIterations: cfg.MaxIterations,
			WindowSize:    cfg.WindowSize,
		}, client, tools, st)
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, &handlers.Deps{Agent: ag, Store: st})

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Thread-ID"},
		AllowCredentials: true,
	})
	handler := corsWrapper.Handler(handlers.Logging(mux))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disable for streaming responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if ag != nil {
		log.Printf("strand starting on %s (model=%s, tools=%d)", addr, cfg.Model, len(ag.Tools()))
	} else {
		log.Printf("strand starting on %s (agent=disabled)", addr)
	}
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
