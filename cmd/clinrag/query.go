package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
)

const snippetChars = 240

var (
	queryK              int
	queryJSON           bool
	queryNoHybrid       bool
	queryNoRerank       bool
	queryNoMMR          bool
	queryExpand         bool
	queryDocumentTypes  []string
	queryEvidenceLevels []string
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve evidence for a clinical query",
	Long: `Retrieves the chunks most relevant to the query. By default this runs hybrid
search (vector similarity fused with BM25 keyword scores), reranks the candidates
with the cross-encoder and diversifies them with MMR.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.IntVar(&queryK, "k", 0, "number of results (default from config)")
	f.BoolVar(&queryJSON, "json", false, "output results as JSON")
	f.BoolVar(&queryNoHybrid, "no-hybrid", false, "vector search only")
	f.BoolVar(&queryNoRerank, "no-rerank", false, "skip cross-encoder reranking")
	f.BoolVar(&queryNoMMR, "no-mmr", false, "skip MMR diversification")
	f.BoolVar(&queryExpand, "expand", false, "add neighbouring chunks from the graph")
	f.StringSliceVar(&queryDocumentTypes, "document-type", nil, "restrict to document types")
	f.StringSliceVar(&queryEvidenceLevels, "evidence-level", nil, "restrict to evidence levels")
	rootCmd.AddCommand(queryCmd)
}

// queryRequest applies the command flags to the configured defaults.
func queryRequest(text string, defaults request.Options) (request.Request, error) {
	f, err := filter.New(queryDocumentTypes, nil, queryEvidenceLevels, nil)
	if err != nil {
		return request.Request{}, err
	}

	opts := defaults
	if queryK > 0 {
		opts.K = queryK
	}
	if queryNoHybrid {
		opts.Mode = mode.Semantic
	}
	if queryNoRerank {
		opts.Rerank = false
	}
	if queryNoMMR {
		opts.MMR = false
	}
	if queryExpand {
		opts.Expand = true
	}
	return request.New(text, f, opts)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	req, err := queryRequest(strings.Join(args, " "), retrievalDefaults(cfg.Retrieval))
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.retrieve.Retrieve(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, result.Records(hits))
	}
	printHits(cmd, hits)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printHits(cmd *cobra.Command, hits []result.Hit) {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, h := range hits {
		c := h.Chunk()
		cmd.Printf("  [%d] %.3f  %s", i+1, h.Score(), c.SemanticType())
		if c.EvidenceLevel() != "" {
			cmd.Printf("  evidence %s", c.EvidenceLevel())
		}
		cmd.Printf("  %s\n", c.DocumentID())
		if p := c.PathString(); p != "" {
			cmd.Printf("      %s\n", p)
		}
		cmd.Printf("      %s\n\n", snippet(c.Content(), snippetChars))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
