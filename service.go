package sheetfeed

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Service is the entry point to the spreadsheets feed service
type Service struct {
	cfg    Config
	exec   *Executor
	logger *zap.Logger
}

// New creates a service client that authenticates through provider
func New(provider TokenProvider, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	exec := NewExecutor(provider, config)

	return &Service{
		cfg:    exec.cfg,
		exec:   exec,
		logger: exec.logger,
	}
}

// Executor returns the executor shared by every request of this service
func (s *Service) Executor() *Executor {
	return s.exec
}

// SpreadsheetQuery filters the spreadsheets feed by title
type SpreadsheetQuery struct {
	Title string // Empty lists every spreadsheet
	Exact bool   // Match Title exactly; titles are not unique, so several may still match
}

// Spreadsheet is one entry of the spreadsheets feed
type Spreadsheet struct {
	svc            *Service
	Title          string
	WorksheetsFeed string
}

// Spreadsheets opens a cursor over the caller's spreadsheets
func (s *Service) Spreadsheets(ctx context.Context, query SpreadsheetQuery) (*Cursor[*Spreadsheet], error) {
	params := url.Values{}
	if query.Title != "" {
		params.Set("title", query.Title)
		params.Set("title-exact", strconv.FormatBool(query.Exact))
	}

	fr := feedRequest{
		Method: http.MethodGet,
		URL:    strings.TrimSuffix(s.cfg.BaseURL, "/") + "/spreadsheets/private/full",
		Query:  params,
	}
	return openCursor(ctx, s.exec, AudienceSpreadsheets, fr, func(p *feedParser) (*Spreadsheet, bool, error) {
		var entry spreadsheetEntry
		ok, err := p.ParseNextEntry(&entry)
		if err != nil || !ok {
			return nil, ok, err
		}
		if entry.Content.Src == "" {
			return nil, false, &ProtocolError{Message: "spreadsheet entry has no worksheets feed"}
		}
		return &Spreadsheet{svc: s, Title: entry.Title, WorksheetsFeed: entry.Content.Src}, true, nil
	})
}

// Spreadsheet returns the first spreadsheet whose title is exactly title
func (s *Service) Spreadsheet(ctx context.Context, title string) (*Spreadsheet, error) {
	cursor, err := s.Spreadsheets(ctx, SpreadsheetQuery{Title: title, Exact: true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	for sp, err := range cursor.Seq(ctx) {
		if err != nil {
			return nil, err
		}
		if sp.Title == title {
			return sp, nil
		}
	}
	return nil, ErrSpreadsheetNotFound
}

// Worksheets opens a cursor over the spreadsheet's worksheets
func (sp *Spreadsheet) Worksheets(ctx context.Context) (*Cursor[*Worksheet], error) {
	fr := feedRequest{Method: http.MethodGet, URL: sp.WorksheetsFeed}
	return openCursor(ctx, sp.svc.exec, AudienceSpreadsheets, fr, func(p *feedParser) (*Worksheet, bool, error) {
		var entry worksheetEntry
		ok, err := p.ParseNextEntry(&entry)
		if err != nil || !ok {
			return nil, ok, err
		}
		ws, err := sp.svc.newWorksheet(&entry)
		if err != nil {
			return nil, false, err
		}
		return ws, true, nil
	})
}

// Worksheet returns the first worksheet with the given title
func (sp *Spreadsheet) Worksheet(ctx context.Context, title string) (*Worksheet, error) {
	cursor, err := sp.Worksheets(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	for ws, err := range cursor.Seq(ctx) {
		if err != nil {
			return nil, err
		}
		if ws.Title == title {
			return ws, nil
		}
	}
	return nil, ErrWorksheetNotFound
}

// AddWorksheet creates a worksheet and writes its header row
func (sp *Spreadsheet) AddWorksheet(ctx context.Context, title string, columns []string) (*Worksheet, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	payload := worksheetPayload(title, len(columns))

	var ws *Worksheet
	err := sp.svc.exec.Do(ctx, func(ctx context.Context) error {
		res, err := sp.svc.exec.roundTrip(ctx, AudienceSpreadsheets, feedRequest{
			Method: http.MethodPost,
			URL:    sp.WorksheetsFeed,
			Body:   payload,
		})
		if err != nil {
			return err
		}
		defer drain(res)

		var entry worksheetEntry
		if err := decodeEntry(res.Body, &entry); err != nil {
			return err
		}
		ws, err = sp.svc.newWorksheet(&entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := ws.SetColumns(ctx, columns); err != nil {
		return nil, err
	}
	return ws, nil
}
