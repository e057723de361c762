package sheetfeed

import (
	"encoding/xml"
	"errors"
	"io"
)

// feedParser decodes an Atom feed one entry at a time straight from the
// response body, so only the current entry is ever held in memory.
type feedParser struct {
	body     io.ReadCloser
	dec      *xml.Decoder
	envelope bool
	done     bool
}

func newFeedParser(body io.ReadCloser) *feedParser {
	return &feedParser{
		body: body,
		dec:  xml.NewDecoder(body),
	}
}

// ParseEnvelope consumes everything up to and including the <feed> start
// element. Entries cannot be decoded before this has been called.
func (p *feedParser) ParseEnvelope() error {
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			return &ProtocolError{Message: "response has no feed element"}
		}
		if err != nil {
			return err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "feed" {
			return &ProtocolError{Message: "unexpected root element <" + start.Name.Local + ">"}
		}
		p.envelope = true
		return nil
	}
}

// ParseNextEntry decodes the next <entry> of the feed into v. It returns false
// once the feed has no more entries.
func (p *feedParser) ParseNextEntry(v any) (bool, error) {
	if !p.envelope {
		return false, &ProtocolError{Message: "feed envelope not parsed"}
	}
	if p.done {
		return false, nil
	}

	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			p.done = true
			return false, &ProtocolError{Message: "feed ended without closing element"}
		}
		if err != nil {
			return false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "entry" {
				if err := p.dec.DecodeElement(v, &t); err != nil {
					return false, err
				}
				return true, nil
			}
			// feed-level metadata (id, title, link, openSearch:*)
			if err := p.dec.Skip(); err != nil {
				return false, err
			}
		case xml.EndElement:
			if t.Name.Local == "feed" {
				p.done = true
				return false, nil
			}
		}
	}
}

func (p *feedParser) Close() error {
	p.done = true
	return p.body.Close()
}

// decodeEntry decodes a response body holding a single <entry> document.
func decodeEntry(r io.Reader, v any) error {
	if err := xml.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &ProtocolError{Message: "empty entry response"}
		}
		return err
	}
	return nil
}
