// internal/feed/reader.go
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	categoryTag = "category"
	offerTag    = "offer"
)

// ReadCategories scans the whole feed and returns every <category> in
// document order. <offer> subtrees are skipped without being decoded.
func ReadCategories(r io.Reader) ([]CategoryDecl, error) {
	dec := newDecoder(r)

	var decls []CategoryDecl
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return decls, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read categories: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case offerTag:
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("skip offer: %w", err)
			}
		case categoryTag:
			var elem struct {
				ID       string  `xml:"id,attr"`
				ParentID *string `xml:"parentId,attr"`
				Name     string  `xml:",chardata"`
			}
			if err := dec.DecodeElement(&elem, &start); err != nil {
				return nil, fmt.Errorf("decode category: %w", err)
			}
			decls = append(decls, CategoryDecl{
				ID:       elem.ID,
				ParentID: elem.ParentID,
				Name:     strings.TrimSpace(elem.Name),
			})
		}
	}
}

// OfferReader is a forward-only cursor over the <offer> elements of a feed.
// Each offer is decoded into a fresh value; the reader keeps no reference to
// it or to its token stream once Next returns.
type OfferReader struct {
	dec   *xml.Decoder
	count int
	done  bool
}

func NewOfferReader(r io.Reader) *OfferReader {
	return &OfferReader{dec: newDecoder(r)}
}

// Next returns the next offer, or io.EOF once the feed is exhausted.
func (r *OfferReader) Next() (*RawOffer, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		if err != nil {
			r.done = true
			return nil, fmt.Errorf("read offer %d: %w", r.count+1, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != offerTag {
			continue
		}

		offer := &RawOffer{}
		if err := r.dec.DecodeElement(offer, &start); err != nil {
			r.done = true
			return nil, fmt.Errorf("decode offer %d: %w", r.count+1, err)
		}
		r.count++
		return offer, nil
	}
}

// Count is the number of offers returned so far.
func (r *OfferReader) Count() int { return r.count }

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	// YML exports are often declared windows-1251.
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	return dec
}
