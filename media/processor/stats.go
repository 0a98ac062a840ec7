package processor

import (
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/session"
)

// Summary aggregates the savings of a set of results.
type Summary struct {
	Count         int   `json:"count"`
	TotalOriginal int64 `json:"totalOriginal"`
	TotalOutput   int64 `json:"totalOutput"`
	TotalSaved    int64 `json:"totalSaved"`
	PercentSaved  int   `json:"percentSaved"`
}

// Summarize totals results. ok is false when the original total is zero, in
// which case no percentage is computed.
func Summarize(results []session.CompressedResult) (Summary, bool) {
	var s Summary
	for _, r := range results {
		s.Count++
		s.TotalOriginal += r.OriginalSize
		s.TotalOutput += r.OutputSize
	}
	if s.TotalOriginal == 0 {
		return s, false
	}

	s.TotalSaved = s.TotalOriginal - s.TotalOutput
	s.PercentSaved = codec.Round(float64(s.TotalSaved) / float64(s.TotalOriginal) * 100)
	return s, true
}
