package excel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/iterator"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

const feedOpen = `<feed xmlns="http://www.w3.org/2005/Atom" ` +
	`xmlns:gsx="http://schemas.google.com/spreadsheets/2006/extended" ` +
	`xmlns:gs="http://schemas.google.com/spreadsheets/2006" ` +
	`xmlns:gd="http://schemas.google.com/g/2005">`

type staticTokens struct{}

func (staticTokens) Token(context.Context, sheetfeed.Audience) (string, error) { return "t", nil }
func (staticTokens) InvalidateToken(string) {}

// rowCursor serves a worksheet whose list feed holds rows and returns a cursor over it.
func rowCursor(t *testing.T, rows []map[string]string) *sheetfeed.Cursor[*sheetfeed.Row] {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	base := server.URL + "/feeds"

	mux.HandleFunc("/feeds/spreadsheets/private/full", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedOpen + `<entry><title>Book</title><content src="` + base + `/worksheets/k"/></entry></feed>`))
	})
	mux.HandleFunc("/feeds/worksheets/k", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedOpen + `<entry><title>Sheet1</title><content src="` + base + `/list/k"/>` +
			`<link rel="http://schemas.google.com/spreadsheets/2006#cellsfeed" href="` + base + `/cells/k"/>` +
			`<link rel="edit" href="` + base + `/worksheets/k/v"/></entry></feed>`))
	})
	mux.HandleFunc("/feeds/list/k", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(feedOpen)
		for i, row := range rows {
			b.WriteString(`<entry gd:etag="v"><id>r</id><link rel="edit" href="` + base + `/rows/` + string(rune('a'+i)) + `"/>`)
			for _, col := range []string{"name", "age", "active"} {
				if v, ok := row[col]; ok {
					b.WriteString("<gsx:" + col + ">" + v + "</gsx:" + col + ">")
				}
			}
			b.WriteString(`</entry>`)
		}
		b.WriteString(`</feed>`)
		w.Write([]byte(b.String()))
	})

	svc := sheetfeed.New(staticTokens{}, &sheetfeed.Config{BaseURL: base, HTTPClient: server.Client()})
	ctx := context.Background()
	sp, err := svc.Spreadsheet(ctx, "Book")
	if err != nil {
		t.Fatalf("Spreadsheet() error = %v", err)
	}
	ws, err := sp.Worksheet(ctx, "Sheet1")
	if err != nil {
		t.Fatalf("Worksheet() error = %v", err)
	}
	cursor, err := ws.Rows(ctx, sheetfeed.RowQuery{})
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	return cursor
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:   "valid config",
			config: &Config{FilePath: "out.xlsx", SheetName: "Sheet1"},
		},
		{
			name:    "missing file path",
			config:  &Config{SheetName: "Sheet1"},
			wantErr: ErrMissingFilePath,
		},
		{
			name:    "missing sheet name",
			config:  &Config{FilePath: "out.xlsx"},
			wantErr: ErrMissingSheetName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExporter(tt.config, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewExporter() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewExporter(nil, nil); err == nil {
		t.Error("NewExporter(nil) should return error")
	}
	if _, err := NewImporter(nil); err == nil {
		t.Error("NewImporter(nil) should return error")
	}
}

func TestExportImport(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "export.xlsx")
	config := &Config{FilePath: file, SheetName: "People"}
	ctx := context.Background()

	exporter, err := NewExporter(config, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	cursor := rowCursor(t, []map[string]string{
		{"name": "Alice", "age": "30", "active": "TRUE"},
		{"name": "Bob", "age": "2.5"},
	})
	n, err := exporter.Export(ctx, cursor, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Export() wrote %d rows, want 2", n)
	}
	if !cursor.Closed() {
		t.Error("Export() should close the cursor")
	}

	f, err := excelize.OpenFile(file)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 1 || got[0] != "People" {
		t.Errorf("sheets = %v, want [People]", got)
	}
	rows, err := f.GetRows("People")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{
		{"active", "age", "name"},
		{"TRUE", "30", "Alice"},
		{"", "2.5", "Bob"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i+1, rows[i], want[i])
		}
	}

	importer, err := NewImporter(config)
	if err != nil {
		t.Fatalf("NewImporter() error = %v", err)
	}
	header, items, err := importer.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.Join(header, ",") != "active,age,name" {
		t.Errorf("header = %v", header)
	}
	if len(items) != 2 {
		t.Fatalf("Load() got %d items, want 2", len(items))
	}
	if items[0].Row != 2 || items[1].Row != 3 {
		t.Errorf("item rows = %d, %d, want 2, 3", items[0].Row, items[1].Row)
	}
	if got := strings.Join(items[1].Cells, "|"); got != "|2.5|Bob" {
		t.Errorf("second item cells = %q", got)
	}
}

func TestExport_ExplicitColumns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cols.xlsx")
	exporter, err := NewExporter(&Config{FilePath: file, SheetName: "Sheet1"}, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	cursor := rowCursor(t, []map[string]string{{"name": "Alice", "age": "30"}})
	if _, err := exporter.Export(context.Background(), cursor, []string{"name", "missing"}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenFile(file)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	v, _ := f.GetCellValue("Sheet1", "A2")
	if v != "Alice" {
		t.Errorf("A2 = %q, want Alice", v)
	}
	h, _ := f.GetCellValue("Sheet1", "B1")
	if h != "missing" {
		t.Errorf("B1 = %q, want missing", h)
	}
}

func TestExport_EmptyWorksheet(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.xlsx")
	exporter, err := NewExporter(&Config{FilePath: file, SheetName: "Sheet1"}, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	n, err := exporter.Export(context.Background(), rowCursor(t, nil), nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Export() wrote %d rows, want 0", n)
	}

	importer, _ := NewImporter(&Config{FilePath: file, SheetName: "Sheet1"})
	if _, _, err := importer.Load(context.Background()); !errors.Is(err, ErrNoHeader) {
		t.Errorf("Load() error = %v, want ErrNoHeader", err)
	}
}

// failingSource yields its rows and then err, or iterator.Done once. Like a
// cursor, it refuses to be read after it is drained.
type failingSource struct {
	rows    []*sheetfeed.Row
	err     error
	closed  bool
	drained bool
}

func (s *failingSource) Next(context.Context) (*sheetfeed.Row, error) {
	if s.drained {
		return nil, sheetfeed.ErrIllegalState
	}
	if len(s.rows) > 0 {
		row := s.rows[0]
		s.rows = s.rows[1:]
		return row, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	s.drained = true
	return nil, iterator.Done
}

func (s *failingSource) Close() { s.closed = true }

func TestExport_SourceError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fail.xlsx")
	exporter, _ := NewExporter(&Config{FilePath: file, SheetName: "Sheet1"}, nil)

	boom := errors.New("boom")
	src := &failingSource{err: boom}
	_, err := exporter.Export(context.Background(), src, []string{"a"})
	if !errors.Is(err, boom) {
		t.Errorf("Export() error = %v, want boom", err)
	}
	if !src.closed {
		t.Error("Export() should close the source")
	}
}

func TestExport_EmptySourceIsReadOnce(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.xlsx")
	exporter, _ := NewExporter(&Config{FilePath: file, SheetName: "Sheet1"}, nil)

	src := &failingSource{}
	n, err := exporter.Export(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Export() wrote %d rows, want 0", n)
	}
	if !src.closed {
		t.Error("Export() should close the source")
	}

	f, err := excelize.OpenFile(file)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Sheet1", "A1"); v != "" {
		t.Errorf("A1 = %q, want empty", v)
	}
}

func TestImporter_Load(t *testing.T) {
	file := filepath.Join(t.TempDir(), "in.xlsx")
	f := excelize.NewFile()
	_ = f.SetSheetRow("Sheet1", "A1", &[]interface{}{"id", "name", "R&D note"})
	_ = f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, `Alice <"A&B">`})
	_ = f.SetSheetRow("Sheet1", "A4", &[]interface{}{3, "Carol", "x", "extra"})
	if err := f.SaveAs(file); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	f.Close()

	importer, _ := NewImporter(&Config{FilePath: file, SheetName: "Sheet1"})
	header, items, err := importer.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if header[2] != "R&amp;D note" {
		t.Errorf("header[2] = %q, want escaped", header[2])
	}
	if len(items) != 2 {
		t.Fatalf("Load() got %d items, want 2", len(items))
	}
	if items[0].Row != 2 || len(items[0].Cells) != 3 || items[0].Cells[2] != "" {
		t.Errorf("first item = %+v", items[0])
	}
	if want := "Alice &lt;&quot;A&amp;B&quot;&gt;"; items[0].Cells[1] != want {
		t.Errorf("items[0].Cells[1] = %q, want %q", items[0].Cells[1], want)
	}
	if items[1].Row != 4 || len(items[1].Cells) != 4 {
		t.Errorf("second item = %+v", items[1])
	}

	missing, _ := NewImporter(&Config{FilePath: file, SheetName: "Nope"})
	if _, _, err := missing.Load(context.Background()); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("Load() error = %v, want ErrSheetNotFound", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := importer.Load(ctx); err == nil {
		t.Error("Load() with cancelled context should return error")
	}
}
