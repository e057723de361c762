package sheetfeed_test

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

const feedNamespaces = `xmlns="http://www.w3.org/2005/Atom" ` +
	`xmlns:openSearch="http://a9.com/-/spec/opensearch/1.1/" ` +
	`xmlns:gs="http://schemas.google.com/spreadsheets/2006" ` +
	`xmlns:gsx="http://schemas.google.com/spreadsheets/2006/extended" ` +
	`xmlns:gd="http://schemas.google.com/g/2005" ` +
	`xmlns:batch="http://schemas.google.com/gdata/batch"`

// fakeTokens hands out numbered tokens and records invalidations.
type fakeTokens struct {
	mu          sync.Mutex
	issued      int
	fetches     map[sheetfeed.Audience]int
	invalidated []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{fetches: make(map[sheetfeed.Audience]int)}
}

func (f *fakeTokens) Token(_ context.Context, audience sheetfeed.Audience) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	f.fetches[audience]++
	return fmt.Sprintf("token-%d", f.issued), nil
}

func (f *fakeTokens) InvalidateToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
}

func (f *fakeTokens) Invalidated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

// newTestService starts a fake feed server routed by mux and returns a service
// pointed at it.
func newTestService(t *testing.T, mux *http.ServeMux) (*sheetfeed.Service, *httptest.Server, *fakeTokens) {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tokens := newFakeTokens()
	svc := sheetfeed.New(tokens, &sheetfeed.Config{
		ApplicationName: "sheetfeed-test",
		BaseURL:         server.URL + "/feeds",
		HTTPClient:      server.Client(),
	})
	return svc, server, tokens
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/atom+xml")
	_, _ = io.WriteString(w, body)
}

func feedXML(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><feed ` + feedNamespaces + `>` +
		`<id>feed-id</id><title type="text">feed</title>` +
		fmt.Sprintf("<openSearch:totalResults>%d</openSearch:totalResults>", len(entries)) +
		strings.Join(entries, "") +
		`</feed>`
}

func spreadsheetEntryXML(title, worksheetsFeed string) string {
	return `<entry><id>` + worksheetsFeed + `</id><title type="text">` + title + `</title>` +
		`<content type="application/atom+xml;type=feed" src="` + worksheetsFeed + `"/></entry>`
}

func worksheetEntryXML(base, key, title string) string {
	return `<entry ` + feedNamespaces + `><id>` + base + `/worksheets/` + key + `</id>` +
		`<title type="text">` + title + `</title>` +
		`<content type="application/atom+xml;type=feed" src="` + base + `/list/` + key + `"/>` +
		`<link rel="http://schemas.google.com/spreadsheets/2006#cellsfeed" type="application/atom+xml" href="` + base + `/cells/` + key + `"/>` +
		`<link rel="edit" type="application/atom+xml" href="` + base + `/worksheets/` + key + `/version"/>` +
		`<gs:rowCount>100</gs:rowCount><gs:colCount>20</gs:colCount></entry>`
}

// rowEntryXML renders a list entry; values are written in sorted column order.
func rowEntryXML(base, id, etag string, values map[string]string) string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString(`<entry ` + feedNamespaces + ` gd:etag="` + etag + `">`)
	b.WriteString(`<id>` + base + `/rows/` + id + `</id>`)
	b.WriteString(`<title type="text">` + id + `</title>`)
	b.WriteString(`<link rel="edit" type="application/atom+xml" href="` + base + `/rows/` + id + `/edit"/>`)
	for _, c := range cols {
		fmt.Fprintf(&b, "<gsx:%[1]s>%[2]s</gsx:%[1]s>", c, values[c])
	}
	b.WriteString(`</entry>`)
	return b.String()
}

// batchRequest is one cell instruction decoded from a batch upload body.
type batchRequest struct {
	BatchID string `xml:"http://schemas.google.com/gdata/batch id"`
	Cell    struct {
		Row        int    `xml:"row,attr"`
		Col        int    `xml:"col,attr"`
		InputValue string `xml:"inputValue,attr"`
	} `xml:"http://schemas.google.com/spreadsheets/2006 cell"`
}

func decodeBatchRequest(t *testing.T, r io.Reader) []batchRequest {
	t.Helper()
	var feed struct {
		Entries []batchRequest `xml:"http://www.w3.org/2005/Atom entry"`
	}
	if err := xml.NewDecoder(r).Decode(&feed); err != nil {
		t.Errorf("failed to decode batch request: %v", err)
	}
	return feed.Entries
}

func batchResponseXML(reqs []batchRequest, status func(row, col int) int) string {
	entries := make([]string, 0, len(reqs))
	for _, req := range reqs {
		code := status(req.Cell.Row, req.Cell.Col)
		entries = append(entries, fmt.Sprintf(
			`<entry><batch:id>%s</batch:id><batch:status code="%d" reason="%s"/><batch:operation type="update"/></entry>`,
			req.BatchID, code, http.StatusText(code)))
	}
	return feedXML(entries...)
}

func allOK(int, int) int { return http.StatusOK }
