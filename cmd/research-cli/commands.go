// cmd/research-cli/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"research-workers/internal/bootstrap"
	"research-workers/internal/common/config"
	"research-workers/internal/common/logger"
	"research-workers/internal/history"
	"research-workers/internal/models"
	"research-workers/internal/providers/knowledgebase"
	"research-workers/pkg/registry"
)

var errKnowledgeDisabled = errors.New("research.knowledge_index is not configured")

type rootOptions struct {
	configPath string
	logLevel   string
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "research-cli",
		Short:         "Run research queries and inspect routing and history from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (defaults to configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Overall command timeout")

	cmd.AddCommand(newAskCommand(opts))
	cmd.AddCommand(newRouteCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newKnowledgeAddCommand(opts))
	cmd.AddCommand(newCacheClearCommand(opts))
	cmd.AddCommand(newRegistryCommand())
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

// withStack loads configuration, builds the research stack and runs fn with it.
func (o *rootOptions) withStack(cmd *cobra.Command, fn func(ctx context.Context, stack *bootstrap.Components, cfg *config.Config) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewStructured(o.logLevel, "console", "stderr")
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	stack, err := bootstrap.Build(ctx, cfg, bootstrap.Options{}, log)
	if err != nil {
		return err
	}
	defer stack.Close()

	return fn(ctx, stack, cfg)
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionID  string
		newSession bool
	)
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Route and answer a query, printing the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if newSession {
				sessionID = uuid.NewString()
			}
			return opts.withStack(cmd, func(ctx context.Context, stack *bootstrap.Components, cfg *config.Config) error {
				var turns []models.ConversationTurn
				repo := stack.SessionRepository()
				if repo != nil && sessionID != "" {
					loaded, err := repo.RecentTurns(ctx, sessionID, cfg.Research.MaxContextMessages)
					if err != nil {
						return err
					}
					turns = loaded
				}

				result := stack.Orchestrator.Run(ctx, query, turns)

				if repo != nil && sessionID != "" {
					if err := repo.SaveRun(ctx, sessionID, result); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "history not saved: %v\n", err)
					}
				}
				return writeJSON(cmd.OutOrStdout(), struct {
					*models.PipelineResult
					SessionID string `json:"sessionId,omitempty"`
				}{result, sessionID})
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session to load context from and store the result in")
	cmd.Flags().BoolVar(&newSession, "new-session", false, "Start a new session with a generated id")
	return cmd
}

func newRouteCommand(opts *rootOptions) *cobra.Command {
	var (
		contextExists bool
		noLLM         bool
	)
	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Print the router decision for a query without running a pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return opts.withStack(cmd, func(ctx context.Context, stack *bootstrap.Components, cfg *config.Config) error {
				useLLM := cfg.Research.LLMRouterEnabled() && !noLLM
				return writeJSON(cmd.OutOrStdout(), stack.Router.Route(ctx, query, contextExists, useLLM))
			})
		},
	}
	cmd.Flags().BoolVar(&contextExists, "context", false, "Route as if conversation context exists")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Use the keyword heuristic only")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <sessionId>",
		Short: "Print the stored turns of a session, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStack(cmd, func(ctx context.Context, stack *bootstrap.Components, _ *config.Config) error {
				if stack.History == nil {
					return fmt.Errorf("%w: database.postgres.host is not configured", history.ErrHistoryUnavailable)
				}
				turns, err := stack.History.RecentTurns(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), turns)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of turns")
	return cmd
}

func newKnowledgeAddCommand(opts *rootOptions) *cobra.Command {
	var doc knowledgebase.Document
	var id string
	cmd := &cobra.Command{
		Use:   "kb-add",
		Short: "Index a document into the internal knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(doc.Content) == "" {
				return errors.New("--content is required")
			}
			if id == "" {
				id = uuid.NewString()
			}
			return opts.withStack(cmd, func(ctx context.Context, stack *bootstrap.Components, _ *config.Config) error {
				if stack.Knowledge == nil {
					return errKnowledgeDisabled
				}
				if err := stack.Knowledge.Add(ctx, id, doc); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"id": id, "status": "indexed"})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Document id (generated when empty)")
	cmd.Flags().StringVar(&doc.Title, "title", "", "Document title")
	cmd.Flags().StringVar(&doc.URL, "url", "", "Canonical URL")
	cmd.Flags().StringVar(&doc.Content, "content", "", "Document text")
	return cmd
}

func newCacheClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-clear",
		Short: "Delete cached web search responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStack(cmd, func(ctx context.Context, stack *bootstrap.Components, _ *config.Config) error {
				n, err := stack.ClearSearchCache(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
			})
		},
	}
}

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry used to validate job input",
	}

	var path string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that every activity is complete and its schemas compile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
	validate.Flags().StringVar(&path, "path", "configs/activity-registry.json", "Path to registry file")
	cmd.AddCommand(validate)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
