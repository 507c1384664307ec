// Package chunking splits long text into short segments and generates audio
// for each one, keeping results in text order.
package chunking

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/panjf2000/ants/v2"
)

const DefaultMaxWords = 15

// Generator is satisfied by *generation.Orchestrator
type Generator interface {
	GenerateAudio(ctx context.Context, req generation.Request) generation.Result
}

type ChunkResult struct {
	Index     int               `json:"index"`
	Text      string            `json:"text"`
	Result    generation.Result `json:"result"`
	Elapsed   time.Duration     `json:"-"`
	ElapsedMs int64             `json:"elapsed_ms"`
}

// Split breaks text on whitespace into segments of at most maxWords words
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for i := 0; i < len(words); i += maxWords {
		end := min(i+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

type Runner struct {
	gen         Generator
	maxWords    int
	concurrency int
}

func NewRunner(gen Generator, cfg types.ChunkingConfig) *Runner {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = DefaultMaxWords
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{gen: gen, maxWords: cfg.MaxWords, concurrency: cfg.Concurrency}
}

// Chunks returns the segments req would be generated as. Only cloning mode is
// split; standard TTS handles the whole text in one call.
func (r *Runner) Chunks(req generation.Request) []string {
	if req.Mode != types.ModeCloning {
		if strings.TrimSpace(req.GenText) == "" {
			return nil
		}
		return []string{strings.TrimSpace(req.GenText)}
	}
	return Split(req.GenText, r.maxWords)
}

// Seq lazily generates chunk after chunk. Each range over the sequence runs
// the generation again from the first chunk.
func (r *Runner) Seq(ctx context.Context, req generation.Request) iter.Seq[ChunkResult] {
	chunks := r.Chunks(req)
	return func(yield func(ChunkResult) bool) {
		for i, text := range chunks {
			if ctx.Err() != nil {
				return
			}
			if !yield(r.generate(ctx, req, i, text)) {
				return
			}
		}
	}
}

// Run generates all chunks with up to the configured number in flight and
// returns them ordered by index
func (r *Runner) Run(ctx context.Context, req generation.Request) ([]ChunkResult, error) {
	chunks := r.Chunks(req)
	results := make([]ChunkResult, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}

	if r.concurrency == 1 {
		i := 0
		for res := range r.Seq(ctx, req) {
			results[i] = res
			i++
		}
		return results[:i], ctx.Err()
	}

	pool, err := ants.NewPool(r.concurrency, ants.WithPanicHandler(func(p interface{}) {
		logger.Errorf("Chunk worker panicked: %v", fmt.Errorf("%v", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	logger.Debugf("Generating %d chunks with concurrency %d", len(chunks), r.concurrency)

	var wg sync.WaitGroup
	for i, text := range chunks {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = r.generate(ctx, req, i, text)
		})
		if err != nil {
			wg.Done()
			results[i] = ChunkResult{
				Index:  i,
				Text:   text,
				Result: generation.Result{Error: fmt.Sprintf("failed to schedule chunk: %v", err)},
			}
		}
	}
	wg.Wait()

	return results, ctx.Err()
}

func (r *Runner) generate(ctx context.Context, req generation.Request, index int, text string) ChunkResult {
	chunkReq := req
	chunkReq.GenText = text

	start := time.Now()
	res := r.gen.GenerateAudio(ctx, chunkReq)
	elapsed := time.Since(start)

	logger.Debugf("Chunk %d done in %d ms (success=%v, provider=%s)", index, elapsed.Milliseconds(), res.Success, res.Provider)

	return ChunkResult{
		Index:     index,
		Text:      text,
		Result:    res,
		Elapsed:   elapsed,
		ElapsedMs: elapsed.Milliseconds(),
	}
}
