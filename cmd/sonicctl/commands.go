package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/sonicweb/internal/version"
	"github.com/kailas-cloud/sonicweb/pkg/client"
)

type globalFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "sonicctl",
		Short:         "Command-line client for sonicweb",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.server, "server", envOr("SONICWEB_URL", "http://localhost:8080"), "sonicweb base URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", os.Getenv("SONICWEB_API_KEY"), "bearer token")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output as JSON")

	root.AddCommand(
		newIngestCommand(g),
		newSearchCommand(g),
		newSuggestCommand(g),
		newConsolidateCommand(g),
		newReindexCommand(g),
		newStatsCommand(g),
		newHealthCommand(g),
	)
	return root
}

func (g *globalFlags) client() (*client.Client, error) {
	return client.New(
		client.WithBaseURL(g.server),
		client.WithAPIKey(g.apiKey),
		client.WithTimeout(g.timeout),
		client.WithUserAgent("sonicctl/"+version.Version),
	)
}

func newIngestCommand(g *globalFlags) *cobra.Command {
	var file string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Store and index texts",
		Long: `Stores each argument as a document. With --file, every non-empty line
of the file (or stdin for "-") becomes a document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if file != "" {
				lines, err := readLines(cmd, file)
				if err != nil {
					return err
				}
				texts = append(texts, lines...)
			}
			if len(texts) == 0 {
				return errors.New("nothing to ingest: pass text arguments or --file")
			}

			c, err := g.client()
			if err != nil {
				return err
			}

			errs := c.IngestAll(cmd.Context(), texts, concurrency)
			failed := 0
			for i, err := range errs {
				if err != nil {
					failed++
					cmd.PrintErrf("ingest %q: %v\n", texts[i], err)
				}
			}
			if g.json {
				return printJSON(cmd, map[string]int{"ingested": len(texts) - failed, "failed": failed})
			}
			cmd.Printf("Ingested %d of %d documents.\n", len(texts)-failed, len(texts))
			if failed > 0 {
				return fmt.Errorf("%d documents failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read one document per line from file (- for stdin)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "parallel requests")
	return cmd
}

func newSearchCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			values, err := c.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printValues(cmd, g, values, "No results found.")
		},
	}
}

func newSuggestCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest [word]",
		Short: "Complete the last word",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			words, err := c.Suggest(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("suggest failed: %w", err)
			}
			return printValues(cmd, g, words, "No suggestions.")
		},
	}
}

func newConsolidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Flush the search index to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.Consolidate(cmd.Context()); err != nil {
				return fmt.Errorf("consolidate failed: %w", err)
			}
			if g.json {
				return printJSON(cmd, map[string]bool{"consolidated": true})
			}
			cmd.Println("Consolidated.")
			return nil
		},
	}
}

func newReindexCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Re-push every stored document into the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			if g.json {
				return printJSON(cmd, res)
			}
			cmd.Printf("Pushed %d, failed %d.\n", res.Pushed, res.Failed)
			return nil
		},
	}
}

func newStatsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			st, err := c.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			if g.json {
				return printJSON(cmd, st)
			}
			cmd.Printf("Documents: %d\n", st.Documents)
			return nil
		},
	}
}

func newHealthCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if g.json {
				if err := printJSON(cmd, h); err != nil {
					return err
				}
			} else {
				cmd.Printf("Status: %s\n", h.Status)
				for _, name := range sortedKeys(h.Checks) {
					cmd.Printf("  %-14s %s\n", name, h.Checks[name])
				}
			}
			if !h.Healthy() {
				return fmt.Errorf("server is %s", h.Status)
			}
			return nil
		},
	}
}

func printValues(cmd *cobra.Command, g *globalFlags, values []string, empty string) error {
	if g.json {
		return printJSON(cmd, values)
	}
	if len(values) == 0 {
		cmd.Println(empty)
		return nil
	}
	for i, v := range values {
		cmd.Printf("  [%d] %s\n", i+1, v)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func readLines(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
