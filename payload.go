package sheetfeed

import (
	"fmt"
	"sort"
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
)

// EncodeXML escapes the five predefined XML entities. Row and cell values are
// written to payloads verbatim, so callers holding untrusted text should pass
// it through EncodeXML first.
func EncodeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// rowPayload renders a list-feed entry with one extended element per column.
func rowPayload(values map[string]string) []byte {
	var b strings.Builder
	b.WriteString(`<entry xmlns="` + nsAtom + `" xmlns:gsx="` + nsExtended + `">`)
	for _, col := range sortedKeys(values) {
		fmt.Fprintf(&b, "<gsx:%[1]s>%[2]s</gsx:%[1]s>", col, values[col])
	}
	b.WriteString("</entry>")
	return []byte(b.String())
}

// worksheetPayload renders a new worksheet entry sized for a header row.
func worksheetPayload(title string, colCount int) []byte {
	var b strings.Builder
	b.WriteString(`<entry xmlns="` + nsAtom + `" xmlns:gs="` + nsSheets + `">`)
	b.WriteString("<title>" + EncodeXML(title) + "</title>")
	b.WriteString("<gs:rowCount>2</gs:rowCount>")
	fmt.Fprintf(&b, "<gs:colCount>%d</gs:colCount>", colCount)
	b.WriteString("</entry>")
	return []byte(b.String())
}

// batchWriter accumulates cell update instructions into one batch feed.
type batchWriter struct {
	cellsFeed string
	b         strings.Builder
}

func newBatchWriter(cellsFeed string) *batchWriter {
	w := &batchWriter{cellsFeed: cellsFeed}
	w.b.WriteString(`<feed xmlns="` + nsAtom + `" xmlns:batch="` + nsBatch + `" xmlns:gs="` + nsSheets + `">`)
	w.b.WriteString("<id>" + cellsFeed + "</id>")
	return w
}

func (w *batchWriter) updateCell(batchID string, row, col int, value string) {
	cellURL := fmt.Sprintf("%s/R%dC%d", w.cellsFeed, row, col)

	w.b.WriteString("<entry>")
	w.b.WriteString("<batch:id>" + batchID + "</batch:id>")
	w.b.WriteString(`<batch:operation type="update"/>`)
	w.b.WriteString("<id>" + cellURL + "</id>")
	w.b.WriteString(`<link rel="edit" type="application/atom+xml" href="` + cellURL + `"/>`)
	fmt.Fprintf(&w.b, `<gs:cell row="%d" col="%d" inputValue="%s"/>`, row, col, value)
	w.b.WriteString("</entry>")
}

func (w *batchWriter) bytes() []byte {
	return []byte(w.b.String() + "</feed>")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
