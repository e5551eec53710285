package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daniellauding/email-cleaner/internal/ai"
	"github.com/daniellauding/email-cleaner/internal/browser"
	"github.com/daniellauding/email-cleaner/internal/config"
	"github.com/daniellauding/email-cleaner/internal/email"
	"github.com/daniellauding/email-cleaner/internal/history"
	"github.com/daniellauding/email-cleaner/internal/inbox"
	"github.com/daniellauding/email-cleaner/internal/insight"
	"github.com/daniellauding/email-cleaner/internal/senders"
	"github.com/daniellauding/email-cleaner/internal/template"
	"github.com/daniellauding/email-cleaner/internal/unsub"
	"github.com/daniellauding/email-cleaner/internal/web"
)

var (
	cfgFile     string
	sendersFile string
)

// A domain with a succeeded attempt inside this window is not retried
const recentSuccessWindow = 30 * 24 * time.Hour

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "email-cleaner",
		Short: "email-cleaner - Inbox analysis and newsletter unsubscribe automation",
		Long: `email-cleaner analyzes your mailbox, classifies mail into categories,
detects unsubscribe links in newsletters and executes unsubscribe
requests on your behalf.

It connects to Gmail via the API or to any mailbox over IMAP, and can
optionally narrate its findings through an AI provider chain.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.email-cleaner/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sendersFile, "senders", "", "known-sender database file")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(unsubscribeCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sendersCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your mailbox and AI provider settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("email-cleaner Configuration Setup")
	fmt.Println("==================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("Mailbox")
	fmt.Println()

	provider := prompt(reader, "Mailbox provider (gmail/imap) [gmail]: ")
	if provider == "" {
		provider = "gmail"
	}
	cfg.Mailbox.Provider = provider

	if provider == "imap" {
		cfg.Mailbox.Server = prompt(reader, "  IMAP server (e.g. imap.fastmail.com): ")
		cfg.Mailbox.Port = 993
		cfg.Mailbox.Address = prompt(reader, "  Mailbox address: ")
		cfg.Mailbox.Password = prompt(reader, "  App password: ")
	} else {
		fmt.Println("  Gmail uses OAuth. Place your client credentials JSON at")
		fmt.Println("  ~/.email-cleaner/credentials.json, then run 'email-cleaner auth'.")
	}

	fmt.Println()
	fmt.Println("AI providers (optional, leave blank to skip)")
	fmt.Println()

	cfg.AI.GeminiAPIKey = prompt(reader, "Gemini API key: ")
	cfg.AI.HuggingFaceAPIKey = prompt(reader, "Hugging Face API key: ")
	cfg.AI.IncludeLocal = true

	fmt.Println()
	fmt.Println("Outbound email (for mailto unsubscribe requests, optional)")
	fmt.Println()

	emailProvider := prompt(reader, "Email provider (smtp/resend/sendgrid, blank to skip): ")
	if emailProvider != "" {
		cfg.Email.Provider = emailProvider
		cfg.Email.From = prompt(reader, "  From address: ")
		switch emailProvider {
		case "smtp":
			cfg.Email.SMTP.Host = "smtp.gmail.com"
			cfg.Email.SMTP.Port = 465
			cfg.Email.SMTP.UseTLS = true
			cfg.Email.SMTP.Username = prompt(reader, "  SMTP username: ")
			cfg.Email.SMTP.Password = prompt(reader, "  App password: ")
		default:
			cfg.Email.APIKey = prompt(reader, "  API key: ")
		}
	}

	cfg.Options.RateLimitMs = 1000
	cfg.Options.MaxResults = 100

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	if provider == "gmail" {
		fmt.Println("  1. Run 'email-cleaner auth' to authorize Gmail access")
		fmt.Println("  2. Run 'email-cleaner analyze' to analyze your inbox")
	} else {
		fmt.Println("  1. Run 'email-cleaner analyze' to analyze your inbox")
	}
	fmt.Println("  3. Run 'email-cleaner unsubscribe --dry-run' to preview unsubscribes")

	return nil
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail API access",
		Long:  "Run the OAuth flow for the Gmail API and cache the token locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth()
		},
	}
}

func runAuth() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Mailbox.Provider != "gmail" {
		return fmt.Errorf("auth is only needed for the gmail provider (current: %s)", cfg.Mailbox.Provider)
	}

	authURL, err := inbox.AuthorizeURL(cfg.Mailbox.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to build authorization URL: %w", err)
	}

	fmt.Println("Open the following URL in your browser and authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	code := prompt(reader, "Paste the authorization code here: ")
	if code == "" {
		return fmt.Errorf("no authorization code given")
	}

	if err := inbox.Exchange(context.Background(), cfg.Mailbox.CredentialsFile, cfg.Mailbox.TokenFile, code); err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	fmt.Printf("Token saved to %s\n", cfg.Mailbox.TokenFile)
	return nil
}

// newGateway builds the configured mailbox gateway. The returned cleanup
// func disconnects IMAP sessions; it is a no-op for Gmail.
func newGateway(ctx context.Context, cfg *config.Config) (inbox.Gateway, func(), error) {
	switch cfg.Mailbox.Provider {
	case "imap":
		g := inbox.NewIMAPGateway(cfg.Mailbox)
		if err := g.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("IMAP connect failed: %w", err)
		}
		return g, func() { g.Disconnect() }, nil
	case "", "gmail":
		g, err := inbox.NewGmailGateway(ctx, cfg.Mailbox.CredentialsFile, cfg.Mailbox.TokenFile)
		if err != nil {
			return nil, nil, fmt.Errorf("gmail gateway failed: %w (run 'email-cleaner auth' first)", err)
		}
		return g, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown mailbox provider: %s", cfg.Mailbox.Provider)
}

// newChain builds the AI provider chain from config, or nil when no
// provider is configured
func newChain(cfg *config.Config) *ai.Chain {
	chain, err := ai.NewChain(ai.Options{
		GeminiKey:      cfg.AI.GeminiAPIKey,
		HuggingFaceKey: cfg.AI.HuggingFaceAPIKey,
		IncludeLocal:   cfg.AI.IncludeLocal,
	})
	if err != nil {
		return nil
	}
	return chain
}

// fetchMessages pages through the gateway up to max messages
func fetchMessages(ctx context.Context, gateway inbox.Gateway, query string, max int, format inbox.Format) ([]inbox.Message, error) {
	var messages []inbox.Message
	pageToken := ""

	for len(messages) < max {
		page, err := gateway.ListMessages(ctx, query, int64(max-len(messages)), pageToken)
		if err != nil {
			return nil, err
		}
		for i := range page.Messages {
			m := page.Messages[i]
			if format == inbox.FormatFull {
				full, err := gateway.GetMessage(ctx, m.ID, inbox.FormatFull)
				if err != nil {
					log.Printf("failed to fetch message %s: %v", m.ID, err)
					continue
				}
				m = *full
			}
			messages = append(messages, m)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return messages, nil
}

func analyzeCmd() *cobra.Command {
	var query string
	var max int
	var useAI bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the mailbox and print insights",
		Long: `Fetch messages, classify them into categories, and generate cleanup
insights with mailbox health scores.

Query fragments follow Gmail search syntax, e.g.:
  email-cleaner analyze --query "is:unread"
  email-cleaner analyze --query "before:2026/01/01 larger:5M"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(query, max, useAI)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "mailbox search query")
	cmd.Flags().IntVar(&max, "max", 0, "maximum messages to fetch (default from config)")
	cmd.Flags().BoolVar(&useAI, "ai", false, "narrate the findings through the AI provider chain")

	return cmd
}

func runAnalyze(query string, max int, useAI bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if max <= 0 {
		max = cfg.Options.MaxResults
	}

	ctx := context.Background()
	gateway, cleanup, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Fetching up to %d messages...\n", max)
	messages, err := fetchMessages(ctx, gateway, query, max, inbox.FormatMetadata)
	if err != nil {
		return fmt.Errorf("mailbox fetch failed: %w", err)
	}
	if len(messages) == 0 {
		fmt.Println("No messages matched.")
		return nil
	}

	stats := inbox.ComputeStats(messages)
	analysis := insight.Analyze(messages, stats)
	categories := inbox.CountByCategory(messages)

	fmt.Println()
	fmt.Println("Mailbox Overview")
	fmt.Println("----------------------------------------")
	fmt.Printf("  Total:       %d\n", stats.TotalEmails)
	fmt.Printf("  Unread:      %d\n", stats.UnreadEmails)
	fmt.Printf("  Newsletters: %d\n", stats.Newsletters)
	fmt.Printf("  Size:        %d MB\n", stats.TotalSizeMB)
	fmt.Printf("  Senders:     %d\n", stats.UniqueSenders)

	fmt.Println()
	fmt.Println("Categories")
	for _, c := range []inbox.Category{
		inbox.CategoryNewsletter, inbox.CategoryPromotional, inbox.CategoryWork,
		inbox.CategorySocial, inbox.CategoryTransactional, inbox.CategoryPersonal,
		inbox.CategoryOther,
	} {
		if n := categories[c]; n > 0 {
			fmt.Printf("  %-14s %d\n", c, n)
		}
	}

	fmt.Println()
	fmt.Println("Health Scores")
	fmt.Printf("  Cleanliness:  %d/100\n", analysis.Score.Cleanliness)
	fmt.Printf("  Organization: %d/100\n", analysis.Score.Organization)
	fmt.Printf("  Productivity: %d/100\n", analysis.Score.Productivity)

	if len(analysis.Insights) > 0 {
		fmt.Println()
		fmt.Println("Insights")
		for _, ins := range analysis.Insights {
			fmt.Printf("  [%s] %s\n", ins.Priority, ins.Title)
			fmt.Printf("      %s\n", ins.Description)
		}
	}

	if len(analysis.Senders) > 0 {
		fmt.Println()
		fmt.Println("Top Senders")
		for _, sc := range analysis.Senders {
			fmt.Printf("  %4d  %s (%d unread)\n", sc.Total, sc.Sender, sc.Unread)
		}
	}

	if useAI {
		chain := newChain(cfg)
		if chain == nil {
			fmt.Println()
			fmt.Println("No AI providers configured; skipping narrative.")
			return nil
		}
		narrative, err := chain.GenerateInsights(ctx, ai.InsightRequest{
			Stats:    stats,
			Patterns: analysis.Patterns,
		})
		if err != nil {
			fmt.Printf("\nAI narrative failed: %v\n", err)
		} else {
			fmt.Println()
			fmt.Printf("Narrative (%s)\n", chain.Current())
			fmt.Println("----------------------------------------")
			fmt.Println(narrative)
		}
	}

	return nil
}

func summarizeCmd() *cobra.Command {
	var query string
	var max int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize matching messages through the AI provider chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(query, max)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "mailbox search query")
	cmd.Flags().IntVar(&max, "max", 25, "maximum messages to summarize")

	return cmd
}

func runSummarize(query string, max int) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	chain := newChain(cfg)
	if chain == nil {
		return fmt.Errorf("no AI providers configured: set an API key or enable include_local")
	}

	ctx := context.Background()
	gateway, cleanup, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	messages, err := fetchMessages(ctx, gateway, query, max, inbox.FormatMetadata)
	if err != nil {
		return fmt.Errorf("mailbox fetch failed: %w", err)
	}
	if len(messages) == 0 {
		fmt.Println("No messages matched.")
		return nil
	}

	emails := make([]ai.EmailSummary, len(messages))
	for i, m := range messages {
		emails[i] = ai.EmailSummary{Subject: m.Subject, From: m.From, Snippet: m.Snippet}
	}

	summary, err := chain.SummarizeEmails(ctx, emails)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	fmt.Printf("Summary of %d messages (%s):\n\n", len(messages), chain.Current())
	fmt.Println(summary)
	return nil
}

func unsubscribeCmd() *cobra.Command {
	var query string
	var max int
	var dryRun bool
	var sendMail bool
	var templateName string

	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Detect and execute unsubscribe requests",
		Long: `Fetch newsletter messages, detect their unsubscribe mechanisms and
execute them.

HTTP links get one GET request each. mailto targets are never executed
automatically; pass --send-mail to send unsubscribe emails through your
configured outbound provider instead.

Examples:
  email-cleaner unsubscribe --dry-run
  email-cleaner unsubscribe --query "from:newsletter@example.com"
  email-cleaner unsubscribe --send-mail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnsubscribe(query, max, dryRun, sendMail, templateName)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "mailbox search query (default: has:list)")
	cmd.Flags().IntVar(&max, "max", 0, "maximum messages to process")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview actions without executing")
	cmd.Flags().BoolVar(&sendMail, "send-mail", false, "send unsubscribe emails for mailto targets")
	cmd.Flags().StringVar(&templateName, "template", "unsubscribe", "email template for mailto targets (unsubscribe/polite)")

	return cmd
}

func runUnsubscribe(query string, max int, dryRun, sendMail bool, templateName string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if query == "" {
		query = inbox.QueryHasList()
	}
	if max <= 0 {
		max = cfg.Options.MaxResults
	}
	if dryRun {
		cfg.Options.DryRun = true
	}

	ctx := context.Background()
	gateway, cleanup, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	senderDB := loadSenderDB(cfg)

	store, err := history.NewStore(history.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	defer store.Close()

	fmt.Printf("Fetching up to %d messages matching %q...\n", max, query)
	messages, err := fetchMessages(ctx, gateway, query, max, inbox.FormatFull)
	if err != nil {
		return fmt.Errorf("mailbox fetch failed: %w", err)
	}

	messages = filterExcluded(messages, cfg, senderDB)
	if len(messages) == 0 {
		fmt.Println("No messages to process.")
		return nil
	}

	// One message per domain is enough: unsubscribing once covers the list.
	// Domains already unsubscribed in a recent run are skipped.
	byDomain := unsub.GroupByDomain(messages)
	var candidates []inbox.Message
	for domain, group := range byDomain {
		handled, err := store.SucceededRecently(domain, recentSuccessWindow)
		if err != nil {
			fmt.Printf("warning: history lookup for %s failed: %v\n", domain, err)
		}
		if handled {
			fmt.Printf("Skipping %s: unsubscribed in a previous run\n", domain)
			continue
		}
		candidates = append(candidates, group[0])
	}
	if len(candidates) == 0 {
		fmt.Println("All matching senders were already handled.")
		return nil
	}

	if cfg.Options.DryRun {
		fmt.Println("DRY RUN MODE - No requests will be sent")
	}
	fmt.Printf("Processing %d senders...\n\n", len(candidates))

	executor := unsub.NewExecutor(cfg.Options.DryRun)

	var mailSender email.Sender
	var tmplEngine *template.Engine
	if sendMail && !cfg.Options.DryRun {
		mailSender, err = email.NewSender(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
		tmplEngine, err = template.NewEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize templates: %w", err)
		}
	}

	successCount, failCount, manualCount := 0, 0, 0

	for i := range candidates {
		m := &candidates[i]
		fmt.Printf("[%d/%d] %s\n", i+1, len(candidates), m.From)

		batch := executor.ProcessBatch(ctx, candidates[i:i+1])
		item := batch.Items[0]
		status := history.StatusFailed

		if item.Success {
			fmt.Printf("  ok: %s\n", item.Message)
			successCount++
			status = history.StatusSucceeded
		} else if item.Method == string(inbox.MethodEmail) && mailSender != nil {
			result := sendUnsubscribeMail(ctx, mailSender, tmplEngine, templateName, cfg, m, item.Link)
			if result.Success {
				fmt.Printf("  sent unsubscribe email (id %s)\n", result.MessageID)
				successCount++
				status = history.StatusSucceeded
				item.Message = "unsubscribe email sent"
			} else {
				fmt.Printf("  failed to send unsubscribe email: %v\n", result.Error)
				failCount++
				item.Message = result.Error.Error()
			}
		} else if item.Method == string(inbox.MethodEmail) {
			fmt.Printf("  manual: %s\n", item.Message)
			manualCount++
			status = history.StatusManual
		} else {
			fmt.Printf("  failed: %s\n", item.Message)
			failCount++
		}

		if !cfg.Options.DryRun {
			err := store.Add(&history.Attempt{
				MessageID:  item.MessageID,
				Sender:     item.Sender,
				Domain:     item.Domain,
				Link:       item.Link,
				Method:     item.Method,
				Confidence: item.Confidence,
				Status:     status,
				Detail:     item.Message,
			})
			if err != nil {
				fmt.Printf("  warning: failed to record history: %v\n", err)
			}
		}

		if i < len(candidates)-1 {
			time.Sleep(time.Duration(cfg.Options.RateLimitMs) * time.Millisecond)
		}
	}

	fmt.Println()
	fmt.Println("----------------------------------------")
	if cfg.Options.DryRun {
		fmt.Printf("Dry run complete: %d senders inspected\n", len(candidates))
	} else {
		fmt.Printf("Complete: %d succeeded, %d failed, %d need manual action\n", successCount, failCount, manualCount)
	}
	return nil
}

// sendUnsubscribeMail renders and sends an unsubscribe request to a mailto
// target
func sendUnsubscribeMail(ctx context.Context, sender email.Sender, engine *template.Engine, templateName string, cfg *config.Config, m *inbox.Message, link string) email.Result {
	target := strings.TrimPrefix(link, "mailto:")
	if q := strings.Index(target, "?"); q >= 0 {
		target = target[:q]
	}

	rendered, err := engine.Render(templateName, cfg.Email.From, "", m.SenderDomain(), target)
	if err != nil {
		return email.Result{Success: false, Error: err}
	}

	return sender.Send(ctx, email.Message{
		To:      target,
		From:    cfg.Email.From,
		Subject: rendered.Subject,
		Body:    rendered.Body,
	})
}

func loadSenderDB(cfg *config.Config) *senders.Database {
	path := sendersFile
	if path == "" {
		path = cfg.Options.SendersFile
	}
	if path == "" {
		return nil
	}
	db, err := senders.LoadFromFile(path)
	if err != nil {
		log.Printf("failed to load sender database: %v", err)
		return nil
	}
	return db
}

func filterExcluded(messages []inbox.Message, cfg *config.Config, senderDB *senders.Database) []inbox.Message {
	excluded := make(map[string]bool)
	for _, d := range cfg.Options.ExcludedDomains {
		excluded[strings.ToLower(d)] = true
	}

	var kept []inbox.Message
	for i := range messages {
		domain := messages[i].SenderDomain()
		if excluded[domain] {
			continue
		}
		if senderDB != nil {
			if rec := senderDB.FindByDomain(domain); rec != nil && rec.Keep {
				continue
			}
		}
		kept = append(kept, messages[i])
	}
	return kept
}

func confirmCmd() *cobra.Command {
	var confirmURL string
	var validateDomain bool
	var useBrowser bool

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Follow a confirmation link from an unsubscribe email",
		Long: `Some list operators send a follow-up email with a confirmation link.
This command follows the link and checks the response for success
wording.

Pass --browser for pages that need a confirmation click; this drives a
headless Chrome instead of a plain HTTP GET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfirm(confirmURL, validateDomain, useBrowser)
		},
	}

	cmd.Flags().StringVar(&confirmURL, "url", "", "confirmation URL to follow (required)")
	cmd.Flags().BoolVar(&validateDomain, "validate-domain", true, "validate URL domain against the known-sender database")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "use headless Chrome for pages that need a click")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runConfirm(confirmURL string, validateDomain, useBrowser bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if useBrowser {
		browserCfg := browser.DefaultConfig()
		browserCfg.Headless = cfg.Browser.Headless
		if cfg.Browser.TimeoutSec > 0 {
			browserCfg.Timeout = time.Duration(cfg.Browser.TimeoutSec) * time.Second
		}

		b, err := browser.New(browserCfg)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer b.Close()

		result, err := b.VisitUnsubscribePage(confirmURL, "confirm")
		if err != nil {
			return err
		}
		if result.Success {
			fmt.Println("Confirmed via browser.")
		} else {
			fmt.Printf("Not confirmed: %s\n", result.ErrorMessage)
		}
		if result.ScreenshotPath != "" {
			fmt.Printf("Screenshot: %s\n", result.ScreenshotPath)
		}
		return nil
	}

	var domains []string
	if db := loadSenderDB(cfg); db != nil {
		for _, s := range db.Senders {
			if s.Domain != "" {
				domains = append(domains, s.Domain)
			}
		}
	}
	if len(domains) == 0 && validateDomain {
		fmt.Println("No known-sender database loaded; skipping domain validation.")
		validateDomain = false
	}

	handler := browser.NewConfirmationHandler(domains)
	result, err := handler.FollowConfirmationLink(confirmURL, validateDomain)
	if err != nil {
		return err
	}

	fmt.Printf("HTTP status: %d\n", result.StatusCode)
	if len(result.RedirectPath) > 1 {
		fmt.Printf("Redirects: %d hops\n", len(result.RedirectPath)-1)
	}
	fmt.Println(handler.StatusDescription(result))
	return nil
}

func cleanCmd() *cobra.Command {
	var query string
	var max int
	var markRead bool
	var trash bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Bulk mark-read or trash matching messages",
		Long: `Apply label mutations to all messages matching a query.

Examples:
  email-cleaner clean --query "is:unread before:2026/01/01" --mark-read
  email-cleaner clean --query "larger:10M before:2025/01/01" --trash --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if markRead == trash {
				return fmt.Errorf("specify exactly one of --mark-read or --trash")
			}
			return runClean(query, max, markRead, dryRun)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "mailbox search query (required)")
	cmd.Flags().IntVar(&max, "max", 0, "maximum messages to modify")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark matching messages as read")
	cmd.Flags().BoolVar(&trash, "trash", false, "move matching messages to trash")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview without modifying")
	cmd.MarkFlagRequired("query")

	return cmd
}

func runClean(query string, max int, markRead, dryRun bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if max <= 0 {
		max = cfg.Options.MaxResults
	}

	ctx := context.Background()
	gateway, cleanup, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	messages, err := fetchMessages(ctx, gateway, query, max, inbox.FormatMetadata)
	if err != nil {
		return fmt.Errorf("mailbox fetch failed: %w", err)
	}
	if len(messages) == 0 {
		fmt.Println("No messages matched.")
		return nil
	}

	action := "trash"
	addLabels := []string{inbox.LabelTrash}
	removeLabels := []string{inbox.LabelInbox}
	if markRead {
		action = "mark as read"
		addLabels = nil
		removeLabels = []string{inbox.LabelUnread}
	}

	if dryRun {
		fmt.Printf("Would %s %d messages:\n", action, len(messages))
		for _, m := range messages {
			fmt.Printf("  %s  %s\n", m.Date.Format("2006-01-02"), m.Subject)
		}
		return nil
	}

	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	if err := gateway.BatchModify(ctx, ids, addLabels, removeLabels); err != nil {
		return fmt.Errorf("batch modify failed: %w", err)
	}

	fmt.Printf("Applied %s to %d messages.\n", action, len(ids))
	return nil
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show unsubscribe history and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent attempts to show")

	return cmd
}

func runStatus(limit int) error {
	store, err := history.NewStore(history.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	summary, err := store.Summarize()
	if err != nil {
		return fmt.Errorf("failed to get summary: %w", err)
	}

	fmt.Println("Unsubscribe Statistics")
	fmt.Println("----------------------------------------")
	fmt.Printf("  Total attempts: %d\n", summary.Total)
	fmt.Printf("  Succeeded:      %d\n", summary.Succeeded)
	fmt.Printf("  Failed:         %d\n", summary.Failed)
	fmt.Printf("  Manual:         %d\n", summary.Manual)
	fmt.Printf("  Domains:        %d\n", summary.Domains)

	attempts, err := store.RecentAttempts(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent attempts: %w", err)
	}

	if len(attempts) > 0 {
		fmt.Println()
		fmt.Printf("Recent Attempts (last %d)\n", limit)
		fmt.Println("----------------------------------------")
		for _, a := range attempts {
			fmt.Printf("%s  %-9s  %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Status, a.Domain)
			if a.Detail != "" && a.Status != history.StatusSucceeded {
				fmt.Printf("    %s\n", a.Detail)
			}
		}
	}

	return nil
}

func sendersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "senders",
		Short: "List the known-sender database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListSenders()
		},
	}

	cmd.AddCommand(addSenderCmd())

	return cmd
}

func runListSenders() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db := loadSenderDB(cfg)
	if db == nil {
		fmt.Println("No known-sender database configured (set senders_file or use --senders).")
		return nil
	}

	fmt.Printf("Known Senders (%d total)\n", len(db.Senders))
	fmt.Println("----------------------------------------")
	for _, s := range db.Senders {
		fmt.Printf("\n%s [%s]\n", s.Name, s.ID)
		fmt.Printf("  Domain: %s\n", s.Domain)
		if s.Category != "" {
			fmt.Printf("  Category: %s\n", s.Category)
		}
		if s.PreferencesURL != "" {
			fmt.Printf("  Preferences: %s\n", s.PreferencesURL)
		}
		if s.Keep {
			fmt.Printf("  Keep: never unsubscribe\n")
		}
	}

	return nil
}

func addSenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Add a sender to the known-sender database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddSender()
		},
	}
}

func runAddSender() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := sendersFile
	if path == "" {
		path = cfg.Options.SendersFile
	}
	if path == "" {
		return fmt.Errorf("no sender database path configured (set senders_file or use --senders)")
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Add Known Sender")
	fmt.Println("----------------------------------------")
	fmt.Println()

	s := senders.Sender{}
	s.Name = prompt(reader, "Sender name: ")
	s.ID = strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	s.Domain = prompt(reader, "Sender domain (e.g. news.example.com): ")
	s.Category = prompt(reader, "Category (newsletter/promotional/transactional): ")
	s.PreferencesURL = prompt(reader, "Preferences URL (optional): ")
	s.Keep = strings.EqualFold(prompt(reader, "Never unsubscribe from this sender? (y/N): "), "y")

	var db *senders.Database
	if _, err := os.Stat(path); os.IsNotExist(err) {
		db = &senders.Database{}
	} else {
		db, err = senders.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load senders: %w", err)
		}
	}

	if err := db.Add(s); err != nil {
		return err
	}
	if err := db.SaveWithBackup(path); err != nil {
		return fmt.Errorf("failed to save senders: %w", err)
	}

	fmt.Println()
	fmt.Printf("Added %s to sender database\n", s.Name)
	return nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local JSON API server",
		Long: `Start a local API server exposing the analysis and unsubscribe
pipeline over HTTP.

The server binds to localhost only - no data is sent to external
servers except the mailbox and AI providers you configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(addr string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr == "" {
		addr = cfg.Web.Addr
	}

	ctx := context.Background()
	gateway, cleanup, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := history.NewStore(history.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	defer store.Close()

	server, err := web.NewServer(addr, cfg, gateway, newChain(cfg), store, loadSenderDB(cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	return server.Start()
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}
