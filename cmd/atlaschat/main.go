// Command atlaschat is a single-user terminal REPL over the orchestrator,
// the in-process counterpart to cmd/atlaschat-server's network transport —
// grounded on the teacher's cmd/opencode (commands.Execute) CLI entry point,
// adapted from its subcommand tree to a direct chat loop since this spec's
// CLI publisher variant (spec §4.1) talks to the orchestrator in-process
// rather than over a server connection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/atlaschat/core/internal/app"
	"github.com/atlaschat/core/internal/config"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/logging"
	"github.com/atlaschat/core/internal/modes"
	"github.com/atlaschat/core/internal/orchestrator"
	"github.com/atlaschat/core/internal/publisher"
)

var (
	model        = flag.String("model", "", "model id (falls back to config default_model)")
	directory    = flag.String("directory", "", "project directory to load .atlaschat/ config from")
	userEmail    = flag.String("user", "", "user email, for authorization and system-prompt substitution")
	tools        = flag.String("tools", "", "comma-separated <server>_<tool> names to enable tools mode")
	dataSources  = flag.String("data-sources", "", "comma-separated <server>:<source> ids to enable RAG mode")
	agentFlag    = flag.String("agent", "", "agent strategy: react, think-act, or act")
	maxSteps     = flag.Int("max-steps", 8, "agent loop step budget")
	temperature  = flag.Float64("temperature", 0.7, "sampling temperature")
)

func main() {
	flag.Parse()

	workDir := *directory
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "atlaschat:", err)
			os.Exit(1)
		}
		workDir = wd
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "atlaschat: load config:", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Output: os.Stderr,
	})
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "atlaschat: build app:", err)
		os.Exit(1)
	}
	defer a.Close()

	sessionID := uuid.NewString()
	a.Repository.GetOrCreate(sessionID)

	requestModel := *model
	if requestModel == "" {
		requestModel = cfg.DefaultModel
	}

	pub := publisher.NewStreamingCLIPublisher(os.Stdout)

	fmt.Fprintf(os.Stderr, "atlaschat session %s — model %s. Ctrl-D to exit.\n", sessionID, requestModel)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req := orchestrator.Request{
			SessionID:           sessionID,
			Content:             line,
			Model:               requestModel,
			UserEmail:           *userEmail,
			SelectedTools:       splitCSV(*tools),
			SelectedDataSources: splitCSV(*dataSources),
			Temperature:         *temperature,
		}
		if strategy := modes.StrategyName(*agentFlag); strategy != "" {
			req.AgentMode = orchestrator.StrategySelection{Strategy: strategy, Streaming: true}
			req.MaxSteps = *maxSteps
		}

		if err := a.Orchestrator.Execute(ctx, req, pub); err != nil {
			if de, ok := err.(domain.DomainError); ok {
				fmt.Fprintf(os.Stderr, "error [%s]: %s\n", de.Code(), de.Error())
			} else {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
