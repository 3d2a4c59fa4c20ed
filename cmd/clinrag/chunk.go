package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

var (
	chunkType string
	chunkJSON bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Preview how a document is chunked",
	Long: `Chunks a document with the configured tokenizer and bounds and prints the
result without embedding or storing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVarP(&chunkType, "type", "t", "auto", "document type: guideline, calculator, literature or auto")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunkCmd)
}

// chunkPreview is the JSON shape printed by chunk --json.
type chunkPreview struct {
	Type      string         `json:"type"`
	Detected  bool           `json:"detected"`
	Assembler string         `json:"assembler"`
	FellBack  bool           `json:"fell_back"`
	Warnings  []string       `json:"warnings,omitempty"`
	Chunks    []chunk.Record `json:"chunks"`
}

func runChunk(cmd *cobra.Command, args []string) error {
	typ, err := document.ParseType(chunkType)
	if err != nil {
		return err
	}
	in, err := readInput(args[0], "", typ)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tok, err := tokenizer.New(cfg.Tokenizer.Kind, cfg.Tokenizer.Encoding)
	if err != nil {
		return err
	}
	chunker := chunking.New(tok, chunkingConfigs(cfg.Chunking), logger)

	res, err := ingest.New(chunker, nil, nil, logger).Preview(cmd.Context(), in)
	if err != nil {
		return err
	}

	if chunkJSON {
		return printJSON(cmd, chunkPreview{
			Type:      string(res.Type),
			Detected:  res.Detected,
			Assembler: res.Assembler,
			FellBack:  res.FellBack,
			Warnings:  res.Warnings,
			Chunks:    chunk.Records(res.Chunks),
		})
	}

	cmd.Printf("%s: type %s, assembler %s, %d chunks\n", in.ID, res.Type, res.Assembler, len(res.Chunks))
	for _, w := range res.Warnings {
		cmd.Printf("  warning: %s\n", w)
	}
	for _, c := range res.Chunks {
		cmd.Printf("  #%d  %d tokens  %s", c.Ordinal(), c.TokenCount(), c.SemanticType())
		if c.EvidenceLevel() != "" {
			cmd.Printf("  evidence %s", c.EvidenceLevel())
		}
		if c.Oversized() {
			cmd.Print("  oversized")
		}
		cmd.Println()
		if p := c.PathString(); p != "" {
			cmd.Printf("      %s\n", p)
		}
		cmd.Printf("      %s\n", snippet(c.Content(), snippetChars))
	}
	return nil
}
