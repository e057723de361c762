package sheetfeed

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/iterator"
)

// Worksheet is one sheet of a spreadsheet
type Worksheet struct {
	svc  *Service
	exec *Executor

	ID        string
	Title     string
	ListFeed  string // rows
	CellsFeed string // individual cells and batch writes
	EditURL   string
	RowCount  int
	ColCount  int
}

func (s *Service) newWorksheet(entry *worksheetEntry) (*Worksheet, error) {
	if entry.Content.Src == "" {
		return nil, &ProtocolError{Message: "worksheet entry has no list feed"}
	}
	cellsFeed, err := entry.Links.href(relCellsFeed, "worksheet")
	if err != nil {
		return nil, err
	}
	editURL, err := entry.Links.href(relEdit, "worksheet")
	if err != nil {
		return nil, err
	}

	return &Worksheet{
		svc:       s,
		exec:      s.exec,
		ID:        entry.ID,
		Title:     entry.Title,
		ListFeed:  entry.Content.Src,
		CellsFeed: cellsFeed,
		EditURL:   editURL,
		RowCount:  atoiOrZero(entry.RowCount),
		ColCount:  atoiOrZero(entry.ColCount),
	}, nil
}

// Rows opens a cursor over the worksheet's rows. When query.IfNoneMatch
// matches the current version of the feed, the cursor is empty and reports
// NotModified.
func (w *Worksheet) Rows(ctx context.Context, query RowQuery) (*Cursor[*Row], error) {
	params, err := query.values()
	if err != nil {
		return nil, err
	}

	fr := feedRequest{
		Method:      http.MethodGet,
		URL:         w.ListFeed,
		Query:       params,
		IfNoneMatch: query.IfNoneMatch,
	}
	return openCursor(ctx, w.exec, AudienceSpreadsheets, fr, func(p *feedParser) (*Row, bool, error) {
		var entry listEntry
		ok, err := p.ParseNextEntry(&entry)
		if err != nil || !ok {
			return nil, ok, err
		}
		row, err := newRow(w.exec, &entry)
		if err != nil {
			return nil, false, err
		}
		return row, true, nil
	})
}

// Columns returns the column names seen on the first row, sorted. A worksheet
// without rows has no known columns.
func (w *Worksheet) Columns(ctx context.Context) ([]string, error) {
	cursor, err := w.Rows(ctx, RowQuery{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	first, err := cursor.Next(ctx)
	if errors.Is(err, iterator.Done) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return first.Columns(), nil
}

// AddRow appends a row holding values to the worksheet
func (w *Worksheet) AddRow(ctx context.Context, values map[string]string) (*Row, error) {
	if len(values) == 0 {
		return nil, ErrNoColumns
	}
	payload := rowPayload(values)

	var row *Row
	err := w.exec.Do(ctx, func(ctx context.Context) error {
		res, err := w.exec.roundTrip(ctx, AudienceSpreadsheets, feedRequest{
			Method: http.MethodPost,
			URL:    w.ListFeed,
			Body:   payload,
		})
		if err != nil {
			return err
		}
		defer drain(res)

		var entry listEntry
		if err := decodeEntry(res.Body, &entry); err != nil {
			return err
		}
		row, err = newRow(w.exec, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Delete removes the worksheet and all of its cells
func (w *Worksheet) Delete(ctx context.Context) error {
	return w.exec.Do(ctx, func(ctx context.Context) error {
		res, err := w.exec.roundTrip(ctx, AudienceSpreadsheets, feedRequest{
			Method:  http.MethodDelete,
			URL:     w.EditURL,
			IfMatch: "*",
		})
		if err != nil {
			return err
		}
		drain(res)
		return nil
	})
}
