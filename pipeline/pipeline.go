// Package pipeline assembles the accumulated listings into rows and writes
// them to the configured output.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-phones/config"
	"github.com/aluiziolira/go-scrape-phones/models"
	"github.com/aluiziolira/go-scrape-phones/parser"
)

var (
	// ErrPipelineClosed is returned when Export is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(phones []*models.Phone) error
	Close() error
	Validate() error
}

// Pipeline turns an accumulator into rows and writes them in batches.
// Rows are never dropped; duplicates and sentinel cells are only counted.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	sentinel  string
	seen      *lru.Cache[string, struct{}]

	metrics *metrics

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds a pipeline writing to writer.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("pipeline: writer is nil")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = 4096
	}
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = models.Sentinel
	}

	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		sentinel:  sentinel,
		seen:      seen,
		metrics:   newMetrics(),
	}, nil
}

// Export assembles acc and writes every row. It returns the rows written.
// A misaligned accumulator is logged and recorded in the metrics, and
// its rows are still written.
func (p *Pipeline) Export(acc *models.Accumulator) ([]*models.Phone, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPipelineClosed
	}

	rows, err := Assemble(acc, p.sentinel)
	var misaligned *MisalignmentError
	switch {
	case errors.As(err, &misaligned):
		p.metrics.setMisaligned(misaligned)
		slog.Warn("accumulator misaligned at assembly", slog.Any("error", misaligned))
	case err != nil:
		return nil, err
	}

	batch := make([]*models.Phone, 0, p.batchSize)
	for _, row := range rows {
		p.inspect(row)
		batch = append(batch, row)
		if len(batch) >= p.batchSize {
			if err := p.writer.Write(batch); err != nil {
				return nil, fmt.Errorf("write batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := p.writer.Write(batch); err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}
	}
	return rows, nil
}

// Close prevents further exports.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) inspect(row *models.Phone) {
	if err := parser.ValidatePhone(row); err != nil {
		p.metrics.addValidation("invalid_record")
	}
	for _, field := range parser.MissingFields(row, p.sentinel) {
		p.metrics.addValidation("missing_" + string(field))
	}
	if p.seen.Contains(row.Name) {
		p.metrics.addValidation("duplicate_name")
	} else {
		p.seen.Add(row.Name, struct{}{})
	}
	p.metrics.incrementProcessed()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
	misaligned string
}

func newMetrics() *metrics {
	return &metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) setMisaligned(err *MisalignmentError) {
	m.mu.Lock()
	m.misaligned = err.Error()
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_rows":    m.processed,
		"validation_errors": copyValidation,
		"misaligned":        m.misaligned,
	}
}
