package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailsweep/mailsweep/internal/agent"
	"github.com/mailsweep/mailsweep/internal/browser"
	"github.com/mailsweep/mailsweep/internal/config"
	"github.com/mailsweep/mailsweep/internal/mail"
	"github.com/mailsweep/mailsweep/internal/planner"
	"github.com/mailsweep/mailsweep/internal/resolver"
	"github.com/mailsweep/mailsweep/internal/store"
	"github.com/mailsweep/mailsweep/internal/web"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailsweep",
		Short: "MailSweep - Automated mailing list unsubscriber",
		Long: `MailSweep imports emails from your inbox, finds their unsubscribe links,
and walks each unsubscribe page with a headless browser, using an LLM to
decide which buttons to click and which forms to fill.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mailsweep/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(unsubscribeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your inbox and reasoning settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func importCmd() *cobra.Command {
	var days, limit int
	var archive bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import emails from your inbox",
		Long:  "Fetch recent emails over IMAP and store them locally for unsubscribing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(days, limit, archive)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Import emails received within this many days")
	cmd.Flags().IntVar(&limit, "limit", 200, "Maximum number of emails to import (0 = no limit)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Move imported emails to the archive folder")

	return cmd
}

func unsubscribeCmd() *cobra.Command {
	var ids string
	var limit int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Run unsubscribe attempts against imported emails",
		Long: `Attempt to unsubscribe from the given emails. Each email's unsubscribe
link is resolved from its body, opened in an isolated headless browser, and
acted on according to the reasoning service's plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnsubscribe(ids, limit, dryRun)
		},
	}

	cmd.Flags().StringVar(&ids, "ids", "", "Comma-separated email IDs (default: most recent)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent emails to process when --ids is not given")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve links without opening a browser")

	return cmd
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show imported emails and unsubscribe statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent emails to show")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local API server",
		Long: `Start a local server exposing a JSON API for browsing imported emails
and running unsubscribe batches as background jobs.

The server runs locally on your machine - no data is sent to external
servers other than the configured reasoning endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📬 MailSweep Configuration Setup")
	fmt.Println("================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("📥 Inbox (IMAP)")
	fmt.Println("  (Gmail users: create an app password, see https://support.google.com/accounts/answer/185833)")
	fmt.Println()

	provider := prompt(reader, "Provider (gmail/outlook/imap) [gmail]: ")
	if provider == "" {
		provider = "gmail"
	}
	cfg.Inbox.Provider = provider
	if provider == "imap" {
		cfg.Inbox.Server = prompt(reader, "IMAP server: ")
		portStr := prompt(reader, "IMAP port [993]: ")
		cfg.Inbox.Port = 993
		if portStr != "" {
			if p, err := strconv.Atoi(portStr); err == nil {
				cfg.Inbox.Port = p
			}
		}
	}
	cfg.Inbox.Email = prompt(reader, "Email address: ")
	cfg.Inbox.Password = prompt(reader, "App password: ")

	fmt.Println()
	fmt.Println("🧠 Reasoning (OpenAI-compatible endpoint)")
	fmt.Println()

	cfg.Reasoning.APIKey = prompt(reader, "API key: ")
	model := prompt(reader, "Model [gpt-4o-mini]: ")
	if model != "" {
		cfg.Reasoning.Model = model
	}
	cfg.Reasoning.BaseURL = prompt(reader, "Base URL (optional, for OpenRouter etc.): ")

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'mailsweep import' to fetch recent emails")
	fmt.Println("  2. Run 'mailsweep status' to see what was imported")
	fmt.Println("  3. Run 'mailsweep unsubscribe --dry-run' to preview links")
	fmt.Println("  4. Run 'mailsweep unsubscribe' to start unsubscribing")

	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config (run 'mailsweep init' first): %w", err)
	}
	return cfg, nil
}

func runImport(days, limit int, archive bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	source := mail.NewIMAPSource(mail.IMAPConfig{
		Server:        cfg.Inbox.Server,
		Port:          cfg.Inbox.Port,
		Email:         cfg.Inbox.Email,
		Password:      cfg.Inbox.Password,
		Folder:        cfg.Inbox.Folder,
		ArchiveFolder: cfg.Inbox.ArchiveFolder,
	})

	ctx := context.Background()
	fmt.Printf("📡 Connecting to %s...\n", cfg.Inbox.Server)
	if err := source.Connect(ctx); err != nil {
		return err
	}
	defer source.Disconnect()

	fmt.Printf("📥 Fetching emails from the last %d days...\n", days)
	messages, err := source.Fetch(ctx, days, limit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No emails found.")
		return nil
	}

	doArchive := archive || cfg.Inbox.AutoArchive
	imported := 0
	for _, m := range messages {
		if m.MessageID == "" {
			continue
		}
		id, err := st.UpsertEmail(&store.Email{
			MessageID:  m.MessageID,
			Subject:    m.Subject,
			FromName:   m.FromName,
			FromEmail:  m.From,
			BodyText:   m.BodyText,
			BodyHTML:   m.BodyHTML,
			ReceivedAt: m.ReceivedAt,
		})
		if err != nil {
			fmt.Printf("  ❌ %s: %v\n", m.Subject, err)
			continue
		}
		imported++

		if doArchive {
			if err := source.Archive(m.UID); err != nil {
				fmt.Printf("  ⚠️  failed to archive %q: %v\n", m.Subject, err)
			} else if err := st.MarkArchived(id); err != nil {
				fmt.Printf("  ⚠️  failed to record archive for %q: %v\n", m.Subject, err)
			}
		}
	}

	fmt.Printf("✅ Imported %d of %d emails\n", imported, len(messages))
	return nil
}

// buildRunner wires the pipeline stages with the production collaborators.
func buildRunner(cfg *config.Config, st *store.Store) *agent.Runner {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	completer := planner.NewOpenAIClient(cfg.Reasoning.APIKey, cfg.Reasoning.Model, cfg.Reasoning.BaseURL)

	browserCfg := browser.DefaultConfig()
	browserCfg.Headless = cfg.Browser.Headless
	browserCfg.Timeout = time.Duration(cfg.Browser.TimeoutSec) * time.Second

	return &agent.Runner{
		Resolve:    resolver.Resolve,
		Planner:    planner.New(completer, logger),
		NewBrowser: browser.Factory(browserCfg),
		Store:      st,
		Navigator:  agent.NewNavigator(),
		Verifier:   agent.NewVerifier(),
		Logger:     logger,
	}
}

func selectEmails(st *store.Store, ids string, limit int) ([]store.Email, error) {
	if ids == "" {
		return st.ListEmails(limit)
	}

	var parsed []int64
	for _, part := range strings.Split(ids, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid email id %q", part)
		}
		parsed = append(parsed, id)
	}
	return st.GetEmailsByIDs(parsed)
}

func runUnsubscribe(ids string, limit int, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	emails, err := selectEmails(st, ids, limit)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		fmt.Println("No emails to process. Run 'mailsweep import' first.")
		return nil
	}

	if dryRun {
		fmt.Println("🔍 DRY RUN MODE - No browser will be opened")
		fmt.Println()
		found := 0
		for _, e := range emails {
			link := resolver.Resolve(e.BodyHTML)
			if link == "" {
				fmt.Printf("  ❌ %s: no unsubscribe link found\n", e.FromEmail)
				continue
			}
			fmt.Printf("  🔗 %s: %s\n", e.FromEmail, link)
			found++
		}
		fmt.Println()
		fmt.Printf("Found links in %d of %d emails\n", found, len(emails))
		return nil
	}

	if err := cfg.ValidateReasoning(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	runner := buildRunner(cfg, st)

	inputs := make([]agent.EmailInput, 0, len(emails))
	for _, e := range emails {
		inputs = append(inputs, agent.EmailInput{
			EmailID:   e.ID,
			MessageID: e.MessageID,
			BodyHTML:  e.BodyHTML,
		})
	}

	fmt.Printf("🚀 Processing %d emails...\n", len(inputs))
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := runner.Run(ctx, inputs)

	fmt.Println()
	for _, r := range summary.Results {
		switch {
		case r.Success:
			fmt.Printf("  ✅ email %d: unsubscribed (%s)\n", r.EmailID, r.Link)
		case r.Error != "":
			fmt.Printf("  ❌ email %d: %s\n", r.EmailID, r.Error)
		default:
			fmt.Printf("  ⚠️  email %d: attempted, could not confirm\n", r.EmailID)
		}
	}
	fmt.Println()
	fmt.Printf("Unsubscribed from %d of %d emails\n", summary.Unsubscribed, summary.Total)
	return nil
}

func runStatus(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return err
	}

	fmt.Println("📊 MailSweep Status")
	fmt.Println("===================")
	fmt.Printf("  Imported emails:  %d (%d senders)\n", stats.Emails, stats.DistinctSenders)
	fmt.Printf("  Attempts:         %d\n", stats.Attempts)
	fmt.Printf("  Unsubscribed:     %d\n", stats.Unsubscribed)
	fmt.Printf("  Failed:           %d\n", stats.FailedAttempts)
	if stats.LastAttemptedSeen {
		fmt.Printf("  Last attempt:     %s\n", stats.LastAttemptedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()

	emails, err := st.ListEmails(limit)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}

	fmt.Println("Recent emails:")
	for _, e := range emails {
		subject := e.Subject
		if len(subject) > 60 {
			subject = subject[:57] + "..."
		}
		fmt.Printf("  [%d] %s  %s\n", e.ID, e.FromEmail, subject)
	}
	return nil
}

func runServe(addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateReasoning(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	server, err := web.NewServer(addr, st, buildRunner(cfg, st))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
