package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// RetrieveInput is the input schema for retrieve_evidence.
type RetrieveInput struct {
	Query          string   `json:"query" jsonschema:"clinical question or note fragment to find evidence for"`
	K              int      `json:"k,omitempty" jsonschema:"number of chunks to return (default from server config)"`
	Mode           string   `json:"mode,omitempty" jsonschema:"semantic, keyword or hybrid"`
	DocumentTypes  []string `json:"document_type,omitempty" jsonschema:"restrict to guideline, calculator or literature"`
	SemanticTypes  []string `json:"semantic_type,omitempty" jsonschema:"restrict to chunk kinds such as recommendation or evidence"`
	EvidenceLevels []string `json:"evidence_level,omitempty" jsonschema:"restrict to evidence levels such as A or B"`
	DocumentIDs    []string `json:"document_id,omitempty" jsonschema:"restrict to these documents"`
	Rerank         *bool    `json:"rerank,omitempty" jsonschema:"rerank candidates with the cross-encoder"`
	MMR            *bool    `json:"mmr,omitempty" jsonschema:"diversify results with maximal marginal relevance"`
	Expand         *bool    `json:"expand,omitempty" jsonschema:"add neighbouring and parent chunks from the graph"`
}

// RetrieveOutput is the output schema for retrieve_evidence.
type RetrieveOutput struct {
	Results []result.Record `json:"results"`
	Count   int             `json:"count"`
}

// ChunkInput is the input schema for chunk_document.
type ChunkInput struct {
	Text string `json:"text" jsonschema:"full document text"`
	Type string `json:"type,omitempty" jsonschema:"guideline, calculator, literature or auto (default auto)"`
	ID   string `json:"id,omitempty" jsonschema:"document id used to derive chunk ids"`
}

// ChunkOutput is the output schema for chunk_document.
type ChunkOutput struct {
	Type      string         `json:"type"`
	Assembler string         `json:"assembler"`
	FellBack  bool           `json:"fell_back"`
	Warnings  []string       `json:"warnings,omitempty"`
	Chunks    []chunk.Record `json:"chunks"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_evidence",
		Description: "Retrieve guideline, calculator and literature chunks relevant to a clinical query",
	}, s.handleRetrieve)

	if s.previewer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chunk_document",
			Description: "Split a clinical document into chunks without storing it",
		}, s.handleChunk)
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	hits, err := s.retriever.Retrieve(ctx, req)
	if err != nil {
		s.logger.Warn("MCP retrieval failed", zap.Error(err))
		return nil, RetrieveOutput{}, fmt.Errorf("retrieve: %w", err)
	}

	return nil, RetrieveOutput{Results: result.Records(hits), Count: len(hits)}, nil
}

func (s *Server) buildRequest(input RetrieveInput) (request.Request, error) {
	if input.K < 0 || input.K > s.maxK {
		return request.Request{}, fmt.Errorf("k must be between 1 and %d", s.maxK)
	}

	f, err := filter.New(input.DocumentTypes, input.SemanticTypes, input.EvidenceLevels, input.DocumentIDs)
	if err != nil {
		return request.Request{}, fmt.Errorf("parse filters: %w", err)
	}

	ov := request.Overrides{Rerank: input.Rerank, MMR: input.MMR, Expand: input.Expand}
	if input.K > 0 {
		ov.K = &input.K
	}
	if input.Mode != "" {
		m, err := mode.Parse(input.Mode)
		if err != nil {
			return request.Request{}, err
		}
		ov.Mode = &m
	}

	return request.New(input.Query, f, s.defaults.Apply(ov))
}

func (s *Server) handleChunk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChunkInput,
) (*mcp.CallToolResult, ChunkOutput, error) {
	typ, err := document.ParseType(input.Type)
	if err != nil {
		return nil, ChunkOutput{}, err
	}
	id := input.ID
	if id == "" {
		id = "preview"
	}

	res, err := s.previewer.Preview(ctx, ingest.Input{ID: id, Type: typ, Text: input.Text})
	if err != nil {
		return nil, ChunkOutput{}, fmt.Errorf("chunk: %w", err)
	}

	return nil, ChunkOutput{
		Type:      string(res.Type),
		Assembler: res.Assembler,
		FellBack:  res.FellBack,
		Warnings:  res.Warnings,
		Chunks:    chunk.Records(res.Chunks),
	}, nil
}
