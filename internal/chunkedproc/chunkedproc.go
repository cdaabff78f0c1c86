// Package chunkedproc implements ChunkedProcessor: splits a
// document into page-range chunks, OCRs each independently through a
// bounded pool, merges the results in page order, and checkpoints
// progress so a crash mid-run resumes without redoing finished chunks.
package chunkedproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// CheckpointState is the opaque state chunkedproc persists into
// docmodel.Checkpoint.State (as JSON), recording which chunks are done.
type CheckpointState struct {
	DoneChunks []int `json:"done_chunks"`
}

// Checkpointer is the narrow slice of store.Store this package depends on,
// so it can be unit tested against a fake.
type Checkpointer interface {
	PutCheckpoint(ctx context.Context, cp docmodel.Checkpoint) error
	LoadLatestCheckpoint(ctx context.Context, taskID string) (docmodel.Checkpoint, error)
}

// Processor splits, dispatches and merges chunks for one attempt.
type Processor struct {
	Engine    docmodel.OCREngine
	Store     Checkpointer
	ChunkSize int // pages per chunk, default 5
	PoolSize  int // bounded inner concurrency across chunks
	WorkDir   string
}

// Split divides sourcePath into page-range chunks of p.ChunkSize pages
// each, writing the physical split files into p.WorkDir via pdfcpu. A
// single-page or non-PDF input becomes a one-chunk job with no physical
// split (the whole source is chunk 0).
func (p *Processor) Split(sourcePath string) ([]docmodel.Chunk, error) {
	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 5
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", sourcePath, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		// not a PDF pdfcpu can introspect: treat as a single-chunk job
		return []docmodel.Chunk{{
			Index: 0, SourcePath: sourcePath, StartPage: 0, EndPage: 0,
		}}, nil
	}

	if pageCount <= chunkSize {
		return []docmodel.Chunk{{
			Index: 0, SourcePath: sourcePath, StartPage: 0, EndPage: pageCount - 1,
		}}, nil
	}

	var chunks []docmodel.Chunk
	idx := 0
	for start := 0; start < pageCount; start += chunkSize {
		end := start + chunkSize - 1
		if end >= pageCount {
			end = pageCount - 1
		}
		outPath := filepath.Join(p.WorkDir, fmt.Sprintf("%s.chunk%d.pdf", filepath.Base(sourcePath), idx))
		selection := fmt.Sprintf("%d-%d", start+1, end+1) // pdfcpu page selection is 1-indexed
		if err := api.TrimFile(sourcePath, outPath, []string{selection}, nil); err != nil {
			return nil, fmt.Errorf("splitting pages %s: %w", selection, err)
		}
		chunks = append(chunks, docmodel.Chunk{
			Index:      idx,
			SourcePath: outPath,
			StartPage:  start,
			EndPage:    end,
		})
		idx++
	}
	return chunks, nil
}

// Process runs OCR across every chunk of a task's attempt, resuming from
// the latest checkpoint if one exists, and returns a single merged
// docmodel.OCRResult.
func (p *Processor) Process(ctx context.Context, taskID, attemptID string, chunks []docmodel.Chunk, req docmodel.OCRRequest) (docmodel.OCRResult, error) {
	done := make(map[int]bool)
	if cp, err := p.Store.LoadLatestCheckpoint(ctx, taskID); err == nil {
		var state CheckpointState
		if decodeErr := decodeState(cp.State, &state); decodeErr == nil {
			for _, idx := range state.DoneChunks {
				done[idx] = true
			}
		}
		for i := range chunks {
			if done[chunks[i].Index] {
				chunks[i].Processed = true
			}
		}
	}

	poolSize := p.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(poolSize)

	results := make([]docmodel.Chunk, len(chunks))
	copy(results, chunks)
	var mu sync.Mutex // guards results: sibling goroutines write distinct indices but checkpoint reads the whole slice

	for i := range chunks {
		i := i
		if results[i].Processed {
			continue
		}
		group.Go(func() error {
			mu.Lock()
			chunkReq := req
			chunkReq.ChunkIndex = results[i].Index
			chunkReq.SourcePath = results[i].SourcePath
			mu.Unlock()

			res, err := p.Engine.Extract(gctx, chunkReq)

			mu.Lock()
			if err != nil {
				results[i].Error = err.Error()
			} else {
				results[i].Text = res.Text
				results[i].Confidence = overallConfidence(res.Confidence)
				results[i].Processed = true
			}
			snapshot := make([]docmodel.Chunk, len(results))
			copy(snapshot, results)
			mu.Unlock()

			if err != nil {
				return nil // one chunk's failure must not abort the others
			}
			return p.checkpoint(ctx, taskID, attemptID, snapshot)
		})
	}

	if err := group.Wait(); err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("processing chunks: %w", err)
	}

	return merge(results)
}

func (p *Processor) checkpoint(ctx context.Context, taskID, attemptID string, chunks []docmodel.Chunk) error {
	var done []int
	for _, c := range chunks {
		if c.Processed {
			done = append(done, c.Index)
		}
	}
	state, err := encodeState(CheckpointState{DoneChunks: done})
	if err != nil {
		return fmt.Errorf("encoding checkpoint state: %w", err)
	}
	return p.Store.PutCheckpoint(ctx, docmodel.Checkpoint{
		TaskID:      taskID,
		AttemptID:   attemptID,
		State:       state,
		CurrentPage: len(done),
		TotalPages:  len(chunks),
		Progress:    float64(len(done)) / float64(len(chunks)),
	})
}

// merge concatenates successfully processed chunks in start_page order.
// A partial success — some chunks failed but at least one
// succeeded — returns a non-nil error alongside a populated OCRResult; a
// total failure returns a zero OCRResult and an error.
func merge(chunks []docmodel.Chunk) (docmodel.OCRResult, error) {
	ordered := make([]docmodel.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartPage < ordered[j].StartPage })

	var text string
	var pagesProcessed int
	var failures []string
	confSum := 0.0
	confCount := 0

	for _, c := range ordered {
		if !c.Processed {
			failures = append(failures, fmt.Sprintf("chunk %d (pages %d-%d): %s", c.Index, c.StartPage, c.EndPage, c.Error))
			continue
		}
		text += c.Text
		pagesProcessed += c.PageCount()
		confSum += c.Confidence
		confCount++
	}

	if confCount == 0 {
		return docmodel.OCRResult{}, fmt.Errorf("all chunks failed: %v", failures)
	}

	result := docmodel.OCRResult{
		Text:           text,
		PagesProcessed: pagesProcessed,
		Confidence:     map[string]float64{"text": confSum / float64(confCount)},
	}

	if len(failures) > 0 {
		return result, fmt.Errorf("partial success, %d chunk(s) failed: %v", len(failures), failures)
	}
	return result, nil
}

func overallConfidence(byMetric map[string]float64) float64 {
	if len(byMetric) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range byMetric {
		total += v
	}
	return total / float64(len(byMetric))
}
