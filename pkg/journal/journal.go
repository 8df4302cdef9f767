package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"hlsubmit/pkg/exchange"
	"hlsubmit/pkg/perf"
)

// SubmissionRecord captures one order submission for audit and latency analysis.
type SubmissionRecord struct {
	Timestamp  time.Time            `json:"timestamp"`
	Sequence   int                  `json:"sequence"`
	Provider   string               `json:"provider,omitempty"`
	Round      int                  `json:"round"`
	Coin       string               `json:"coin"`
	IsBuy      bool                 `json:"is_buy"`
	Price      string               `json:"price"`
	Size       string               `json:"size"`
	TIF        string               `json:"tif,omitempty"`
	Cloid      string               `json:"cloid,omitempty"`
	Nonce      uint64               `json:"nonce,omitempty"`
	Outcome    exchange.OutcomeKind `json:"outcome,omitempty"`
	Oid        int64                `json:"oid,omitempty"`
	Message    string               `json:"message,omitempty"`
	ErrorClass string               `json:"error_class,omitempty"`
	Error      string               `json:"error,omitempty"`
	Timing     *perf.Report         `json:"timing,omitempty"`
	WallTime   time.Duration        `json:"wall_time_ns"`
	Extra      map[string]any       `json:"extra,omitempty"`
}

// Success reports whether the venue accepted the order.
func (r *SubmissionRecord) Success() bool {
	return r.Error == "" && (r.Outcome == exchange.OutcomeFilled || r.Outcome == exchange.OutcomeResting)
}

// NewSubmissionRecord fills a record from an order and the result of submitting it.
func NewSubmissionRecord(order exchange.Order, outcome *exchange.Outcome, err error) *SubmissionRecord {
	rec := &SubmissionRecord{
		Coin:  order.Coin,
		IsBuy: order.IsBuy,
		Price: order.LimitPx.String(),
		Size:  order.Sz.String(),
	}
	if order.OrderType.Limit != nil {
		rec.TIF = order.OrderType.Limit.TIF
	}
	if order.Cloid != nil {
		rec.Cloid = order.Cloid.String()
	}
	if outcome != nil {
		rec.Nonce = outcome.Nonce
		rec.Outcome = outcome.Kind
		rec.Oid = outcome.Oid
		rec.Message = outcome.Message
		rec.Timing = outcome.Timing
	}
	if err != nil {
		rec.Error = err.Error()
		rec.ErrorClass = exchange.ErrorClass(err)
		if nonce, ok := exchange.ConsumedNonce(err); ok {
			rec.Nonce = nonce
		}
		var stageErr *exchange.StageError
		if errors.As(err, &stageErr) && rec.Timing == nil {
			rec.Timing = &perf.Report{Total: stageErr.Elapsed, Failed: stageErr.Stage}
		}
	}
	return rec
}

// Writer persists submission records to a directory as JSON files. Safe for
// concurrent use.
type Writer struct {
	mu    sync.Mutex
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the directory records are written to.
func (w *Writer) Dir() string { return w.dir }

// WriteSubmission writes rec to a timestamped JSON file and returns its path.
func (w *Writer) WriteSubmission(rec *SubmissionRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.Sequence = w.seq
	seq := w.seq
	w.mu.Unlock()

	name := fmt.Sprintf("submission_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: encode record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", path, err)
	}
	return path, nil
}

// ReadDir loads every submission record in dir ordered by sequence.
func ReadDir(dir string) ([]*SubmissionRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("journal: read %s: %w", dir, err)
	}
	var out []*SubmissionRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "submission_") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("journal: read %s: %w", e.Name(), err)
		}
		var rec SubmissionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", e.Name(), err)
		}
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
