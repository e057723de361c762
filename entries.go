package sheetfeed

import (
	"encoding/xml"
	"strconv"
	"strings"
)

const (
	nsAtom     = "http://www.w3.org/2005/Atom"
	nsGData    = "http://schemas.google.com/g/2005"
	nsSheets   = "http://schemas.google.com/spreadsheets/2006"
	nsExtended = "http://schemas.google.com/spreadsheets/2006/extended"
	nsBatch    = "http://schemas.google.com/gdata/batch"

	relEdit      = "edit"
	relCellsFeed = nsSheets + "#cellsfeed"
)

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomContent struct {
	Src string `xml:"src,attr"`
}

type atomLinks []atomLink

// href returns the target of the link with the given rel, or a ProtocolError
// naming what kind of entry was malformed.
func (l atomLinks) href(rel, what string) (string, error) {
	href := ""
	for _, link := range l {
		if link.Rel == rel {
			href = link.Href
		}
	}
	if href == "" {
		return "", &ProtocolError{Message: what + " entry has no " + rel + " link"}
	}
	return href, nil
}

type spreadsheetEntry struct {
	Title   string      `xml:"http://www.w3.org/2005/Atom title"`
	Content atomContent `xml:"http://www.w3.org/2005/Atom content"`
}

type worksheetEntry struct {
	ID       string      `xml:"http://www.w3.org/2005/Atom id"`
	Title    string      `xml:"http://www.w3.org/2005/Atom title"`
	RowCount string      `xml:"http://schemas.google.com/spreadsheets/2006 rowCount"`
	ColCount string      `xml:"http://schemas.google.com/spreadsheets/2006 colCount"`
	Links    atomLinks   `xml:"http://www.w3.org/2005/Atom link"`
	Content  atomContent `xml:"http://www.w3.org/2005/Atom content"`
}

type extendedField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type listEntry struct {
	ID     string          `xml:"http://www.w3.org/2005/Atom id"`
	ETag   string          `xml:"http://schemas.google.com/g/2005 etag,attr"`
	Links  atomLinks       `xml:"http://www.w3.org/2005/Atom link"`
	Fields []extendedField `xml:",any"`
}

// values returns the row's cells keyed by column name.
func (e *listEntry) values() map[string]string {
	values := make(map[string]string)
	for _, f := range e.Fields {
		if f.XMLName.Space == nsExtended {
			values[f.XMLName.Local] = f.Value
		}
	}
	return values
}

type batchStatus struct {
	Code   string `xml:"code,attr"`
	Reason string `xml:"reason,attr"`
}

type cellsEntry struct {
	BatchID string      `xml:"http://schemas.google.com/gdata/batch id"`
	Status  batchStatus `xml:"http://schemas.google.com/gdata/batch status"`
}

func (e *cellsEntry) succeeded() bool {
	return e.Status.Code == "200"
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
