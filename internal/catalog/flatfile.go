package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/apimarket/marketplace/internal/model"
)

// ErrInvalidFlatFile is returned when a document cannot be decoded.
var ErrInvalidFlatFile = errors.New("invalid catalog document")

// FlatFile is the portable catalog document.
type FlatFile struct {
	Count   int              `json:"count"`
	Entries []*model.Listing `json:"entries"`
}

// EncodeFlatFile writes listings as a FlatFile with 4-space indentation and
// a trailing newline. Count always equals the number of entries.
func EncodeFlatFile(w io.Writer, listings []*model.Listing) error {
	if listings == nil {
		listings = []*model.Listing{}
	}
	doc := FlatFile{Count: len(listings), Entries: listings}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeFlatFile reads a FlatFile. A count that disagrees with the entries
// is ignored; entries are authoritative.
func DecodeFlatFile(r io.Reader) (*FlatFile, error) {
	var doc FlatFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFlatFile, err)
	}
	for i, e := range doc.Entries {
		if e == nil {
			return nil, fmt.Errorf("%w: entry %d is null", ErrInvalidFlatFile, i)
		}
	}
	doc.Count = len(doc.Entries)
	return &doc, nil
}
