// Package orchestrator implements the Query Orchestrator (C20): the single
// `ask(tenant, query, options) -> Answer` entry point tying together
// Classify -> Retrieve -> Assemble -> Prompt -> Generate ->
// Validate+Link+Detect, per spec §4.9.
package orchestrator

import (
	"context"
	"fmt"

	"ragforge/internal/llm"
	"ragforge/internal/rag/classifier"
	"ragforge/internal/rag/contextassembler"
	"ragforge/internal/rag/hallucination"
	"ragforge/internal/rag/llmgateway"
	"ragforge/internal/rag/prompt"
	"ragforge/internal/rag/ragerr"
	"ragforge/internal/rag/responsevalidator"
	"ragforge/internal/rag/sourcelinker"
	"ragforge/internal/rag/strategy"
	"ragforge/internal/rag/tenant"
)

// Options mirrors the spec's exposed `ask` option set.
type Options struct {
	TopK                       int
	Strategy                   string // auto | bm25 | dense | hybrid
	Provider                   string // optional override, informational here; gateway is pre-selected by caller
	TemplateName               string
	TemplateVersion            string
	Temperature                float64
	MaxTokens                  int
	EnableHallucinationDetection bool
	AllowPartialOnCancel       bool
}

// Answer is the orchestrator's successful result.
type Answer struct {
	Text                string
	Sources             []sourcelinker.SourceReference
	Diagnostics         []string
	Hallucination       *hallucination.Result
	ClassifiedLabel     classifier.Label
	StrategyUsed        strategy.Kind
	ValidationIssues    []string
}

// Deps bundles the collaborators the orchestrator drives. Everything here is
// an interface or concrete adapter already implementing the component-level
// contract, so the orchestrator itself contains no retrieval/storage logic.
type Deps struct {
	Lexical  strategy.LexicalSearcher
	Vector   strategy.VectorSearcher
	Embedder strategy.QueryEmbedder
	Prompts  *prompt.Engine
	Gateway  *llmgateway.Gateway
	Provider llm.Provider // used directly for classification calls

	TokenBudget      int
	MinPassageTokens int
	Hybrid           strategy.HybridOptions
	DenseThreshold   float64
}

const defaultTemplateName = "rag-default"

// Ask runs the full pipeline for one query.
func Ask(ctx context.Context, deps Deps, tenantID, query string, opt Options) (Answer, error) {
	tenantID, err := tenant.Validate(tenantID)
	if err != nil {
		return Answer{}, err
	}
	if query == "" {
		return Answer{}, ragerr.WithStep(ragerr.New(ragerr.InvalidInput, "ask: empty query"), "classify")
	}
	topK := opt.TopK
	if topK <= 0 {
		topK = 10
	}

	var diagnostics []string

	label := classifier.Classify(ctx, deps.Provider, query)
	kind, err := strategy.ResolveKind(opt.Strategy, label)
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "classify")
	}

	results, degradedNote, err := retrieve(ctx, deps, kind, query, topK, tenantID)
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "retrieve")
	}
	if degradedNote != "" {
		diagnostics = append(diagnostics, degradedNote)
	}

	passages := make([]contextassembler.Passage, len(results))
	for i, r := range results {
		passages[i] = contextassembler.Passage{ChunkID: r.ChunkID, Text: r.Text, Score: r.Score}
	}
	budget := deps.TokenBudget
	if budget <= 0 {
		budget = 2000
	}
	assembled, err := contextassembler.Assemble(passages, contextassembler.Options{
		TokenBudget:      budget,
		MinPassageTokens: deps.MinPassageTokens,
	})
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "assemble")
	}

	templateName := opt.TemplateName
	if templateName == "" {
		templateName = defaultTemplateName
	}
	tmpl, err := deps.Prompts.Lookup(templateName, opt.TemplateVersion)
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "prompt")
	}
	rendered, err := prompt.Render(tmpl, map[string]string{
		"context":  assembled.Context,
		"question": query,
	})
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "prompt")
	}

	text, _, err := deps.Gateway.Generate(ctx, rendered.System, rendered.User, llmgateway.Params{
		Temperature: opt.Temperature,
		MaxTokens:   opt.MaxTokens,
	})
	if err != nil {
		return Answer{}, ragerr.WithStep(err, "generate")
	}

	validation := responsevalidator.Validate(text, responsevalidator.Options{
		NoCitation:   tmpl.NoCitation,
		PassagesUsed: len(passages) > 0,
	})
	refs, unresolved := sourcelinker.Link(text, assembled.SourceMap)
	if len(unresolved) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("response cited %d unresolved source index(es)", len(unresolved)))
	}

	answer := Answer{
		Text:             text,
		Sources:          refs,
		Diagnostics:      diagnostics,
		ClassifiedLabel:  label,
		StrategyUsed:     kind,
		ValidationIssues: validation.Issues,
	}

	if opt.EnableHallucinationDetection {
		hres, err := hallucination.Detect(ctx, text, assembled.Context, hallucination.Options{})
		if err != nil {
			return Answer{}, ragerr.WithStep(err, "detect")
		}
		answer.Hallucination = &hres
	}

	return answer, nil
}

func retrieve(ctx context.Context, deps Deps, kind strategy.Kind, query string, topK int, tenantID string) ([]strategy.Result, string, error) {
	switch kind {
	case strategy.BM25:
		res, err := strategy.SearchBM25(ctx, deps.Lexical, query, topK, tenantID)
		return res, "", err
	case strategy.Dense:
		threshold := deps.DenseThreshold
		res, err := strategy.SearchDense(ctx, deps.Vector, deps.Embedder, query, topK, tenantID, threshold)
		return res, "", err
	default:
		hres, err := strategy.SearchHybrid(ctx, deps.Lexical, deps.Vector, deps.Embedder, query, topK, tenantID, deps.Hybrid)
		if err != nil {
			return nil, "", err
		}
		note := ""
		if hres.Degraded {
			note = fmt.Sprintf("hybrid retrieval degraded: %s leg failed", hres.Degraded1Leg)
		}
		return hres.Results, note, nil
	}
}
