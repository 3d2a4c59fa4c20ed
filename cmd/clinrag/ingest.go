package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

var (
	ingestType     string
	ingestIDPrefix string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Chunk, embed and store documents",
	Long: `Reads plain text documents, chunks them along their structure, embeds the
chunks and stores them with their graph edges. A file is identified by its name,
so ingesting it again replaces the previous version.

With the memory driver the documents live only as long as the process.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "auto", "document type: guideline, calculator, literature or auto")
	ingestCmd.Flags().StringVar(&ingestIDPrefix, "id-prefix", "", "prefix added to every derived document id")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	typ, err := document.ParseType(ingestType)
	if err != nil {
		return err
	}

	inputs := make([]ingest.Input, 0, len(args))
	for _, path := range args {
		in, err := readInput(path, ingestIDPrefix, typ)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []dombatch.Result
	for offset := 0; offset < len(inputs); offset += cfg.Ingest.MaxBatchSize {
		end := min(offset+cfg.Ingest.MaxBatchSize, len(inputs))
		results = append(results, a.ingest.IngestBatch(cmd.Context(), inputs[offset:end])...)
	}

	printBatch(cmd, results)

	if failed := dombatch.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func printBatch(cmd *cobra.Command, results []dombatch.Result) {
	for _, r := range results {
		if r.Err() != nil {
			cmd.Printf("  error  %s: %v\n", r.ID(), r.Err())
			continue
		}
		cmd.Printf("  ok     %s (%d chunks)\n", r.ID(), r.Chunks())
	}
}
