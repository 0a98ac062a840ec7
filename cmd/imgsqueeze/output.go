package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/leeforge/imgsqueeze/compressor"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/media/processor"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/report"
)

// readInputs loads each path and declares its type from the extension, the
// way a browser file picker does.
func readInputs(paths []string) ([]compressor.FileInput, error) {
	inputs := make([]compressor.FileInput, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}

		in := compressor.FileInput{
			Name: filepath.Base(path),
			Type: declaredType(path),
			Size: info.Size(),
		}
		// Oversize files are rejected on the reported size; skip reading them.
		if in.Size <= codec.MaxFileSize {
			if in.Data, err = os.ReadFile(path); err != nil {
				return nil, err
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func declaredType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

type printer struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	jsonOut bool
}

func newPrinter(out, errOut io.Writer, jsonOut bool) *printer {
	return &printer{out: out, errOut: errOut, jsonOut: jsonOut}
}

// rejected is an event handler for image.rejected.
func (p *printer) rejected(_ context.Context, ev events.Event) error {
	n, ok := ev.Data.(compressor.Notice)
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.errOut, "skipped %s: %s\n", n.File, n.Message)
	return err
}

func (p *printer) batch(b processor.Batch, settings codec.Settings, saved []storage.UploadOutput) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jsonOut {
		return report.Write(p.out, report.Build(b, settings))
	}

	if len(b.Results) == 0 && len(b.Failures) == 0 {
		_, err := fmt.Fprintln(p.out, "nothing to compress")
		return err
	}

	locations := make(map[string]string, len(saved))
	for _, s := range saved {
		if id, ok := s.Metadata["id"].(string); ok {
			locations[id] = s.URL
		}
	}

	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tORIGINAL\tOUTPUT\tSAVED\tSAVED TO")
	for _, r := range b.Results {
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\t%s\t%s\n",
			r.OriginalName, r.Width, r.Height,
			codec.FormatSize(r.OriginalSize), codec.FormatSize(r.OutputSize),
			badge(r.SavedPercent()), locations[r.ID])
	}
	for _, f := range b.Failures {
		fmt.Fprintf(tw, "%s\t\t\t\tfailed\t%v\n", f.File, f.Err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s, ok := b.Summary()
	if !ok {
		return nil
	}
	_, err := fmt.Fprintf(p.out, "\n%s images, %s -> %s, saved %s (%d%%, %s bytes) in %s\n",
		humanize.Comma(int64(s.Count)),
		codec.FormatSize(s.TotalOriginal), codec.FormatSize(s.TotalOutput),
		codec.FormatSize(s.TotalSaved), s.PercentSaved,
		humanize.Comma(s.TotalSaved),
		b.Duration.Round(time.Millisecond))
	return err
}

// badge renders a saving as -N%, or +N% when the output grew.
func badge(percent int) string {
	if percent < 0 {
		return fmt.Sprintf("+%d%%", -percent)
	}
	return fmt.Sprintf("-%d%%", percent)
}
