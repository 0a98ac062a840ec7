package report

import (
	"io"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write encodes r as indented JSON. Unset fields take their defaults first,
// so an empty report still carries a version and empty lists.
func Write(w io.Writer, r *Report) error {
	if err := defaults.Set(r); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// Read decodes a report written by Write.
func Read(rd io.Reader) (*Report, error) {
	r := &Report{}
	if err := defaults.Set(r); err != nil {
		return nil, err
	}
	if err := json.NewDecoder(rd).Decode(r); err != nil {
		return nil, err
	}
	return r, nil
}
