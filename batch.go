package sheetfeed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchItem is a pending write of consecutive cells, starting at column 1, of one row.
type BatchItem struct {
	Row   int      // 1-based row in the worksheet
	Cells []string // values for columns 1..len(Cells)

	uploaded int
	failed   bool
}

// NewBatchItem creates a batch item for the given row
func NewBatchItem(row int, cells ...string) *BatchItem {
	return &BatchItem{Row: row, Cells: cells}
}

// Uploaded returns how many cells of the item the last attempt confirmed.
// Items returned as pending always report 0.
func (b *BatchItem) Uploaded() int {
	return b.uploaded
}

func (b *BatchItem) reset() {
	b.uploaded = 0
	b.failed = false
}

// correlationID is unique per attempt, item and cell. Only the part before
// the first "_" is read back.
func correlationID(itemKey string, col int) string {
	return itemKey + "_" + strconv.Itoa(col) + "_" + uuid.NewString()
}

func itemKeyOf(batchID string) string {
	key, _, _ := strings.Cut(batchID, "_")
	return key
}

// BatchUpload writes every item's cells in one combined request and returns
// the items that were not fully and successfully written, in input order.
// Returned items have their upload count reset; pass them to BatchUpload
// again to retry.
func (w *Worksheet) BatchUpload(ctx context.Context, items []*BatchItem) ([]*BatchItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	writer := newBatchWriter(w.CellsFeed)
	keys := make([]string, len(items))
	for i, item := range items {
		if len(item.Cells) == 0 {
			return nil, fmt.Errorf("row %d: %w", item.Row, ErrNoColumns)
		}
		if item.Row < 1 {
			return nil, fmt.Errorf("invalid row index %d", item.Row)
		}

		keys[i] = strconv.Itoa(i)
		item.reset()
		for col, value := range item.Cells {
			writer.updateCell(correlationID(keys[i], col+1), item.Row, col+1, value)
		}
	}
	payload := writer.bytes()

	var inFlight map[string]*BatchItem
	err := w.exec.Do(ctx, func(ctx context.Context) error {
		inFlight = make(map[string]*BatchItem, len(items))
		for i, item := range items {
			item.reset()
			inFlight[keys[i]] = item
		}

		res, err := w.exec.roundTrip(ctx, AudienceSpreadsheets, feedRequest{
			Method:  http.MethodPost,
			URL:     w.CellsFeed + "/batch",
			Body:    payload,
			IfMatch: "*",
		})
		if err != nil {
			return err
		}

		p := newFeedParser(res.Body)
		defer p.Close()
		if err := p.ParseEnvelope(); err != nil {
			return err
		}
		return reconcile(p, inFlight)
	})
	if err != nil {
		return nil, err
	}

	pending := make([]*BatchItem, 0, len(inFlight))
	for i, item := range items {
		if _, ok := inFlight[keys[i]]; ok {
			item.reset()
			pending = append(pending, item)
		}
	}
	w.exec.logger.Info("batch upload finished",
		zap.String("worksheet", w.Title),
		zap.Int("items", len(items)),
		zap.Int("pending", len(pending)))
	return pending, nil
}

// reconcile reads per-cell outcomes and removes every item whose cells were
// all acknowledged with success.
func reconcile(p *feedParser, inFlight map[string]*BatchItem) error {
	for {
		var entry cellsEntry
		ok, err := p.ParseNextEntry(&entry)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if entry.BatchID == "" {
			continue
		}

		key := itemKeyOf(entry.BatchID)
		item, found := inFlight[key]
		if !found {
			return &ProtocolError{Message: fmt.Sprintf("unexpected batch id %q", entry.BatchID)}
		}

		item.uploaded++
		if !entry.succeeded() {
			item.failed = true
		}
		if item.uploaded == len(item.Cells) && !item.failed {
			delete(inFlight, key)
		}
	}
}

// Populate uploads items, retrying the pending subset up to
// Config.MaxBatchRetries times. Items still pending after that fail the call
// with ErrBulkPopulationFailed.
func (w *Worksheet) Populate(ctx context.Context, items []*BatchItem) error {
	pending, err := w.BatchUpload(ctx, items)
	if err != nil {
		return err
	}

	for retry := 1; len(pending) > 0; retry++ {
		if retry > w.svc.cfg.MaxBatchRetries {
			return &ProtocolError{
				Message: fmt.Sprintf("%d rows still pending after %d retries", len(pending), w.svc.cfg.MaxBatchRetries),
				Err:     ErrBulkPopulationFailed,
			}
		}
		w.exec.logger.Warn("retrying batch upload",
			zap.String("worksheet", w.Title),
			zap.Int("retry", retry),
			zap.Int("pending", len(pending)))

		pending, err = w.BatchUpload(ctx, pending)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetColumns writes the header row, which defines the worksheet's columns.
func (w *Worksheet) SetColumns(ctx context.Context, columns []string) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	return w.Populate(ctx, []*BatchItem{NewBatchItem(1, columns...)})
}
