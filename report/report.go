// Package report renders a compression batch as a JSON document.
package report

import (
	"time"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/media/processor"
)

// Report is the JSON view of one batch.
type Report struct {
	Version     string             `json:"version" default:"1"`
	BatchID     string             `json:"batchId,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
	DurationMS  int64              `json:"durationMs"`
	Settings    codec.Settings     `json:"settings"`
	Items       []Item             `json:"items" default:"[]"`
	Failures    []Failure          `json:"failures" default:"[]"`
	Summary     *processor.Summary `json:"summary,omitempty"`
}

// Item is one compressed image.
type Item struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	OutputName   string `json:"outputName"`
	Type         string `json:"type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	OriginalSize int64  `json:"originalSize"`
	OutputSize   int64  `json:"outputSize"`
	Original     string `json:"original"`
	Output       string `json:"output"`
	SavedPercent int    `json:"savedPercent"`
}

// Failure is one image the batch skipped.
type Failure struct {
	ID      string              `json:"id"`
	File    string              `json:"file"`
	Kind    apperrors.ErrorType `json:"kind"`
	Message string              `json:"message"`
}

// Build collects the batch into a Report. The summary is omitted when the
// batch has no original bytes to compare against.
func Build(batch processor.Batch, settings codec.Settings) *Report {
	r := &Report{
		BatchID:     batch.ID,
		GeneratedAt: time.Now().UTC(),
		DurationMS:  batch.Duration.Milliseconds(),
		Settings:    settings,
	}

	for _, res := range batch.Results {
		r.Items = append(r.Items, Item{
			ID:           res.ID,
			OriginalName: res.OriginalName,
			OutputName:   res.OutputName,
			Type:         res.Type,
			Width:        res.Width,
			Height:       res.Height,
			OriginalSize: res.OriginalSize,
			OutputSize:   res.OutputSize,
			Original:     codec.FormatSize(res.OriginalSize),
			Output:       codec.FormatSize(res.OutputSize),
			SavedPercent: res.SavedPercent(),
		})
	}

	for _, f := range batch.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		r.Failures = append(r.Failures, Failure{
			ID:      f.ID,
			File:    f.File,
			Kind:    apperrors.TypeOf(f.Err),
			Message: msg,
		})
	}

	if s, ok := batch.Summary(); ok {
		r.Summary = &s
	}
	return r
}
