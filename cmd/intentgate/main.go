package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zen-systems/intentgate/pkg/adapter"
	"github.com/zen-systems/intentgate/pkg/catalog"
	"github.com/zen-systems/intentgate/pkg/config"
	"github.com/zen-systems/intentgate/pkg/decisionlog"
	"github.com/zen-systems/intentgate/pkg/router"
)

var (
	routerFile string
	dbFile     string
	mockFlag   bool
	debugFlag  bool
	aliases    *config.ModelAliases
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "intentgate",
		Short: "Three-tier hybrid intent router for multi-agent dispatch",
		Long: `Intentgate routes user messages to specialized agents through a
	three-tier cascade: a deterministic regex fast path, a hybrid
	BM25 + embedding scorer, and an LLM classifier used only when the
	cheaper tiers are inconclusive. Every routing outcome is logged
	for offline accuracy analysis and threshold tuning.`,
	}

	rootCmd.PersistentFlags().StringVar(&routerFile, "config", "", "path to router config file")
	rootCmd.PersistentFlags().StringVar(&dbFile, "db", "", "path to the agent/decision database")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "use mock providers (no API keys needed)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log per-tier routing detail")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(decisionsCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func routeCmd() *cobra.Command {
	var contextID string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "route [message]",
		Short: "Route a message through the tier pipeline",
		Long: `Routes a single message and prints the decision: which agent was
	selected, by which tier, and at what confidence. The decision is
	also appended to the decision log.

	Use --mock to exercise the pipeline without API keys; tier 3 then
	always reports no selection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cat, err := loadCatalog(cmd.Context(), cfg, db)
			if err != nil {
				return err
			}

			logStore, err := decisionlog.NewStoreWithDB(db)
			if err != nil {
				return err
			}
			logger := decisionlog.NewLogger(logStore)
			defer logger.Close()

			embedder := buildEmbedder(cfg)
			classifier, err := buildClassifier(cfg)
			if err != nil {
				return err
			}

			r := router.New(cat, embedder, classifier, cfg.RouterConfig,
				router.WithRecorder(logger), router.WithDebug(debugFlag))
			decision := r.Route(cmd.Context(), contextID, message)

			if jsonFlag {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(decision)
			}

			selected := decision.SelectedAgent
			if selected == "" {
				selected = "(none)"
				if cfg.RouterConfig.DefaultAgent != "" {
					selected = fmt.Sprintf("(none, dispatcher default: %s)", cfg.RouterConfig.DefaultAgent)
				}
			}
			fmt.Printf("agent:      %s\n", selected)
			fmt.Printf("tier:       %d\n", decision.TierUsed)
			fmt.Printf("confidence: %.3f\n", decision.Confidence)
			fmt.Printf("latency:    %dms\n", decision.LatencyMs)
			fmt.Printf("decision:   %s\n", decision.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextID, "context", "", "chat context id to record with the decision")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full decision as JSON")

	return cmd
}

func agentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage the agent catalog",
	}
	cmd.AddCommand(agentsListCmd())
	cmd.AddCommand(agentsRegisterCmd())
	cmd.AddCommand(agentsEnableCmd("disable", false))
	cmd.AddCommand(agentsEnableCmd("enable", true))
	cmd.AddCommand(agentsSeedCmd())
	return cmd
}

func agentsListCmd() *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openAgentStore()
			if err != nil {
				return err
			}
			defer closeFn()

			var agents []*catalog.Agent
			if allFlag {
				agents, _, err = store.ListAll()
			} else {
				agents, _, err = store.ListEnabled()
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY\tPRIORITY\tENABLED\tKEYWORDS\tPATTERNS\tEMBEDDING")
			for _, agent := range agents {
				embedded := "missing"
				if len(agent.Embedding) > 0 {
					embedded = fmt.Sprintf("%dd", len(agent.Embedding))
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%s\t%s\n",
					agent.Name, agent.DisplayName, agent.Priority, agent.Enabled,
					strings.Join(agent.Keywords, ", "),
					strings.Join(agent.RegexPatterns, ", "),
					embedded)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "include disabled agents")
	return cmd
}

func agentsRegisterCmd() *cobra.Command {
	var displayName string
	var description string
	var keywords []string
	var patterns []string
	var priority int

	cmd := &cobra.Command{
		Use:   "register [name]",
		Short: "Register or update an agent",
		Long: `Registers an agent, or updates an existing one with the same name.
	Regex patterns are validated at registration; a malformed pattern is
	rejected here, never at match time. The description embedding is
	recomputed at the next catalog load.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openAgentStore()
			if err != nil {
				return err
			}
			defer closeFn()

			agent := &catalog.Agent{
				Name:          args[0],
				DisplayName:   displayName,
				Description:   description,
				Keywords:      keywords,
				RegexPatterns: patterns,
				Priority:      priority,
				Enabled:       true,
			}
			if err := store.Register(agent); err != nil {
				return err
			}
			fmt.Printf("Registered agent %q.\n", agent.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "human-readable label (defaults to the name)")
	cmd.Flags().StringVar(&description, "description", "", "one-line description used for embedding and the LLM prompt")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "lexical terms for keyword matching")
	cmd.Flags().StringSliceVar(&patterns, "patterns", nil, "case-insensitive regex trigger patterns")
	cmd.Flags().IntVar(&priority, "priority", 100, "tie-break priority (lower wins)")
	cmd.MarkFlagRequired("description")

	return cmd
}

func agentsEnableCmd(use string, enabled bool) *cobra.Command {
	short := "Disable an agent (logical delete; decision history stays intact)"
	if enabled {
		short = "Re-enable a disabled agent"
	}
	return &cobra.Command{
		Use:   use + " [name]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openAgentStore()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.SetEnabled(args[0], enabled); err != nil {
				return err
			}
			fmt.Printf("Agent %q %sd.\n", args[0], use)
			return nil
		},
	}
}

func agentsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register the starter agent set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openAgentStore()
			if err != nil {
				return err
			}
			defer closeFn()

			for _, agent := range seedAgents() {
				if err := store.Register(agent); err != nil {
					return err
				}
				fmt.Printf("Registered agent %q.\n", agent.Name)
			}
			return nil
		},
	}
}

// seedAgents is the starter catalog for a fresh install.
func seedAgents() []*catalog.Agent {
	return []*catalog.Agent{
		{
			Name:          "github",
			DisplayName:   "GitHub",
			Description:   "Manages GitHub repositories: issues, pull requests, code review, and CI status.",
			Keywords:      []string{"github", "repo", "repository", "issue", "pull", "request", "pr", "merge", "branch", "commit", "ci"},
			RegexPatterns: []string{`\bgithub\b`, `\bpull request\b`},
			Priority:      10,
			Enabled:       true,
		},
		{
			Name:          "email",
			DisplayName:   "Email",
			Description:   "Reads, drafts, and sends email; manages the inbox and follow-up reminders.",
			Keywords:      []string{"email", "mail", "inbox", "send", "reply", "draft", "unread", "attachment"},
			RegexPatterns: []string{`\bemail\b`, `\binbox\b`},
			Priority:      20,
			Enabled:       true,
		},
		{
			Name:          "calendar",
			DisplayName:   "Calendar",
			Description:   "Schedules meetings, checks availability, and manages calendar events and reminders.",
			Keywords:      []string{"calendar", "meeting", "schedule", "availability", "event", "appointment", "invite", "reschedule"},
			RegexPatterns: []string{`\bcalendar\b`},
			Priority:      30,
			Enabled:       true,
		},
		{
			Name:          "todo",
			DisplayName:   "Todo",
			Description:   "Tracks personal tasks and todo lists: adding, completing, and prioritizing items.",
			Keywords:      []string{"todo", "task", "tasks", "list", "done", "complete", "remind", "checklist"},
			RegexPatterns: []string{`\btodo\b`},
			Priority:      40,
			Enabled:       true,
		},
	}
}

func decisionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Inspect the routing decision log",
	}
	cmd.AddCommand(decisionsListCmd())
	cmd.AddCommand(decisionsExportCmd())
	cmd.AddCommand(decisionsFeedbackCmd())
	cmd.AddCommand(decisionsStatsCmd())
	return cmd
}

func decisionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent routing decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openLogStore()
			if err != nil {
				return err
			}
			defer closeFn()

			decisions, err := store.List(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIER\tAGENT\tCONFIDENCE\tCORRECT\tMESSAGE")
			for _, d := range decisions {
				agent := d.SelectedAgent
				if agent == "" {
					agent = "-"
				}
				correct := "-"
				if d.Correct != nil {
					correct = strconv.FormatBool(*d.Correct)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\t%s\t%s\n",
					shortID(d.ID), d.TierUsed, agent, d.Confidence, correct, truncate(d.UserMessage, 48))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum decisions to show")
	return cmd
}

func decisionsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export all decisions as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openLogStore()
			if err != nil {
				return err
			}
			defer closeFn()
			return store.Export(os.Stdout)
		},
	}
}

func decisionsFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback [decision-id] [correct|incorrect]",
		Short: "Attach routing feedback to a decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var correct bool
			switch args[1] {
			case "correct", "true":
				correct = true
			case "incorrect", "false":
				correct = false
			default:
				return fmt.Errorf("verdict must be correct or incorrect, got %q", args[1])
			}

			store, closeFn, err := openLogStore()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.AttachFeedback(args[0], correct); err != nil {
				return err
			}
			fmt.Printf("Feedback recorded for %s.\n", args[0])
			return nil
		},
	}
}

func decisionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize routing accuracy per tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openLogStore()
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := store.Stats()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tDECISIONS\tWITH FEEDBACK\tCORRECT")
			for _, tier := range []int{1, 2, 3} {
				ts, ok := stats.ByTier[tier]
				if !ok {
					fmt.Fprintf(w, "%d\t0\t0\t0\n", tier)
					continue
				}
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", tier, ts.Decisions, ts.WithFeedback, ts.Correct)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "TOTAL\t%d\t\t\n", stats.Total)
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List classifier providers, models, and aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if resolveFlag {
				return showAliases()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")

			for _, provider := range aliases.ListProviders() {
				models := strings.Join(aliases.GetProviderModels(provider), ", ")
				status := "no key"
				if cfg.HasAdapter(provider) || provider == "mock" {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, models, status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	return cmd
}

func showAliases() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")

	aliasMap := aliases.ListAliases()
	var aliasNames []string
	for name := range aliasMap {
		aliasNames = append(aliasNames, name)
	}
	sort.Strings(aliasNames)

	for _, alias := range aliasNames {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
	}
	return w.Flush()
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config, classifier model, and agent patterns",
		Long: `Loads the router config and the agent catalog the same way routing
	does, so a malformed regex or an invalid classifier model is caught
	before it can break routing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var problems []string
			for _, err := range aliases.ValidateRouterConfig(cfg.RouterConfig) {
				problems = append(problems, err.Error())
			}

			store, closeFn, err := openAgentStore()
			if err != nil {
				return err
			}
			defer closeFn()

			agents, _, err := store.ListAll()
			if err != nil {
				return err
			}
			dim := 0
			for _, agent := range agents {
				if err := agent.Validate(); err != nil {
					problems = append(problems, err.Error())
				}
				if len(agent.Embedding) == 0 {
					continue
				}
				if dim == 0 {
					dim = len(agent.Embedding)
				} else if len(agent.Embedding) != dim {
					problems = append(problems,
						fmt.Sprintf("agent %q: embedding dimension %d, others use %d",
							agent.Name, len(agent.Embedding), dim))
				}
			}

			if len(problems) == 0 {
				fmt.Printf("Configuration and %d agents are valid.\n", len(agents))
				return nil
			}
			fmt.Fprintf(os.Stderr, "Found %d problems:\n", len(problems))
			for _, p := range problems {
				fmt.Fprintf(os.Stderr, "  - %s\n", p)
			}
			return fmt.Errorf("validation failed")
		},
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if routerFile != "" {
		cfg, err = config.LoadWithRouterFile(routerFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if dbFile != "" {
		cfg.DatabasePath = dbFile
	}

	aliases, err = config.LoadAliasesWithFallback()
	if err != nil {
		log.Printf("[config] failed to load model aliases, using defaults: %v", err)
		aliases = config.DefaultAliases()
	}
	aliases.ResolveRouterModels(cfg.RouterConfig)
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func openAgentStore() (*catalog.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := catalog.OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func openLogStore() (*decisionlog.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := decisionlog.OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// loadCatalog builds the agent catalog. A load failure here is fatal for the
// route command: routing cannot function without agent definitions.
func loadCatalog(ctx context.Context, cfg *config.Config, db *sql.DB) (*catalog.Catalog, error) {
	store, err := catalog.NewStoreWithDB(db)
	if err != nil {
		return nil, err
	}
	cat := catalog.New(store, buildEmbedder(cfg))
	if err := cat.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load agent catalog: %w", err)
	}
	return cat, nil
}

// buildEmbedder returns the embedding provider, or nil when none is
// available; the hybrid tier then runs lexical-only.
func buildEmbedder(cfg *config.Config) adapter.EmbeddingProvider {
	if mockFlag {
		return adapter.NewMockEmbedder(cfg.RouterConfig.EmbeddingDimension)
	}
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	embedder, err := adapter.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.RouterConfig.EmbeddingModel, cfg.RouterConfig.EmbeddingDimension)
	if err != nil {
		log.Printf("[config] embedding provider unavailable: %v", err)
		return nil
	}
	return embedder
}

// buildClassifier returns the tier-3 adapter, or nil when the configured
// provider has no key; tier 3 then always reports no selection.
func buildClassifier(cfg *config.Config) (adapter.Adapter, error) {
	if mockFlag {
		return adapter.NewMockAdapter(), nil
	}

	name := cfg.RouterConfig.ClassifierAdapter
	if !cfg.HasAdapter(name) {
		log.Printf("[config] no API key for classifier adapter %q, tier 3 disabled", name)
		return nil, nil
	}

	switch name {
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	case "deepseek":
		return adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
	case "mock":
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown classifier adapter %q", name)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
