package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
database:
  driver: memory
embedding:
  provider: hashing
  dimensions: 256
retrieval:
  k: 3
`

const guidelineText = `# Prostate Cancer Guideline

## Localized Disease

### Low Risk

Recommendation 3.1.1: Clinicians should offer active surveillance as the preferred management
option for patients with low-risk localized prostate cancer who meet active surveillance eligibility
criteria. (Strong Recommendation; Evidence Level A)

### Intermediate Risk

Recommendation 3.2.1: Clinicians may offer radical prostatectomy or radiotherapy with short-term
androgen deprivation to patients with intermediate-risk disease. (Conditional Recommendation; Evidence Level B)
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with a temporary memory-backed config and
// resets every flag afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, t.TempDir(), "test.yaml", testConfig)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", cfgPath, "--env", "test"}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags()
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func resetFlags() {
	configPath, envName = "", ""
	servePort, mcpPort = 0, 0
	ingestType, ingestIDPrefix = "auto", ""
	watchType, watchIDPrefix = "auto", ""
	chunkType, chunkJSON = "auto", false
	queryK, queryJSON = 0, false
	queryNoHybrid, queryNoRerank, queryNoMMR, queryExpand = false, false, false, false
	queryDocumentTypes, queryEvidenceLevels = nil, nil
}
