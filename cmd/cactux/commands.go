package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cactux/cactux/internal/api"
	"github.com/cactux/cactux/internal/chat"
	"github.com/cactux/cactux/internal/config"
	"github.com/cactux/cactux/internal/ingest"
	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/retrieval"
	"github.com/cactux/cactux/internal/storage"
)

// loadRuntime loads the validated config and a logger for one-shot commands.
func loadRuntime() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.NewWithFormat(cfg.Log.Format, cfg.Log.Level), nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the chat tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := newBackends(cfg, log)
		defer b.Close()

		reg, err := b.registry(ctx, proxy.NewClient(cfg.Model.OpenRouterAPIKey, cfg.Model.BaseURL))
		if err != nil {
			return err
		}

		stdio := server.NewStdioServer(api.NewMCPServer(reg, version, log))
		log.Info().Int("tools", len(reg.All())).Msg("MCP server started (stdio transport)")
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed documents into the knowledge base",
	Long: `Embed documents into the knowledge base.

Examples:
  cactux ingest --jsonl ./routes.jsonl
  cactux ingest --pdf ./guia.pdf --meta source=guia --meta type=guide`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonlPaths, _ := cmd.Flags().GetStringSlice("jsonl")
		pdfPaths, _ := cmd.Flags().GetStringSlice("pdf")
		meta, _ := cmd.Flags().GetStringToString("meta")
		batch, _ := cmd.Flags().GetInt("batch")

		if len(jsonlPaths) == 0 && len(pdfPaths) == 0 {
			return errors.New("one of --jsonl or --pdf is required")
		}

		docs, err := loadDocuments(jsonlPaths, pdfPaths, meta)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			printWarning("No documents found")
			return nil
		}

		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := newBackends(cfg, log)
		defer b.Close()

		e, err := b.embeddings(ctx)
		if err != nil {
			return err
		}
		vs, err := b.vectorStore(ctx)
		if err != nil {
			return err
		}

		printStep("Embedding %d documents", len(docs))
		n, err := ingest.NewIngester(e, vs, batch, log).Ingest(ctx, docs)
		if err != nil {
			if n > 0 {
				printWarning("Stored %d documents before failing", n)
			}
			return err
		}
		printSuccess("Ingested %d documents", n)
		return nil
	},
}

func loadDocuments(jsonlPaths, pdfPaths []string, meta map[string]string) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	for _, p := range jsonlPaths {
		d, err := ingest.LoadJSONL(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}
	for _, p := range pdfPaths {
		d, err := ingest.LoadPDF(p, metaValues(meta))
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

// listMetaKeys hold lists in document metadata; their --meta values are
// comma separated.
var listMetaKeys = map[string]bool{"grade_group": true, "business_type": true}

// metaValues widens --meta pairs to document metadata.
func metaValues(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if !listMetaKeys[k] {
			out[k] = v
			continue
		}
		var items []any
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		out[k] = items
	}
	return out
}

func init() {
	ingestCmd.Flags().StringSlice("jsonl", nil, "JSONL file of documents (repeatable)")
	ingestCmd.Flags().StringSlice("pdf", nil, "PDF file, one document per page (repeatable)")
	ingestCmd.Flags().StringToString("meta", nil, "metadata key=value added to PDF pages")
	ingestCmd.Flags().Int("batch", ingest.DefaultBatchSize, "documents embedded per batch")
}

// --- locations ---

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Manage weather locations",
}

var locationsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import place and sector coordinates",
	Long: `Import place and sector coordinates used by the weather tool.

The file maps a table (place or sector) to a list of locations:

  place:
    - name: guadalcazar
      latitude: 22.6183
      longitude: -100.3975
  sector:
    - name: candelas
      latitude: 22.6472
      longitude: -100.4511`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening locations file: %w", err)
		}
		defer f.Close()

		tables, err := readLocations(f)
		if err != nil {
			return err
		}

		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx := context.Background()
		b := newBackends(cfg, log)
		defer b.Close()

		store, err := b.chatStore(ctx)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(tables))
		for t := range tables {
			names = append(names, t)
		}
		sort.Strings(names)

		total := 0
		for _, t := range names {
			for _, loc := range tables[t] {
				if err := store.UpsertLocation(ctx, t, loc); err != nil {
					return fmt.Errorf("importing %s %q: %w", t, loc.Name, err)
				}
				total++
			}
		}
		printSuccess("Imported %d locations", total)
		return nil
	},
}

// readLocations decodes a locations file, rejecting unknown tables and
// unnamed entries.
func readLocations(r io.Reader) (map[string][]storage.Location, error) {
	var tables map[string][]storage.Location
	if err := yaml.NewDecoder(r).Decode(&tables); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("locations file is empty")
		}
		return nil, fmt.Errorf("parsing locations file: %w", err)
	}
	for t, locs := range tables {
		if t != storage.TablePlace && t != storage.TableSector {
			return nil, fmt.Errorf("unknown location table %q (want %s or %s)", t, storage.TablePlace, storage.TableSector)
		}
		for i, loc := range locs {
			if strings.TrimSpace(loc.Name) == "" {
				return nil, fmt.Errorf("%s entry %d has no name", t, i+1)
			}
		}
	}
	return tables, nil
}

func init() {
	locationsCmd.AddCommand(locationsImportCmd)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a running server and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, _ := cmd.Flags().GetString("chat")
		userID, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return ask(cmd.Context(), client, chatID, userID, strings.Join(args, " "), os.Stdout)
	},
}

func ask(ctx context.Context, client *apiClient, chatID, userID, text string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if chatID == "" {
		chatID = uuid.NewString()
	}
	req := chat.Request{
		ID:     chatID,
		UserID: userID,
		Messages: []chat.UIMessage{{
			ID:      uuid.NewString(),
			Role:    "user",
			Content: text,
			Parts:   []chat.Part{{Type: chat.PartText, Text: text}},
		}},
	}

	resp, err := client.post(ctx, "/api/chat", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return err
	}
	return printStream(resp.Body, out)
}

func init() {
	askCmd.Flags().String("chat", "", "chat id to continue (default: new chat)")
	askCmd.Flags().String("user", "", "user id stored with a new chat")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ShowAll(config.LoadDefaults()) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
