// Package testkit holds fixtures shared by package tests: generated images,
// a capturing logger and a bounded test context.
package testkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/imgsqueeze/logging"
)

// Context returns a context that is cancelled when the test ends or after 30s.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Gradient returns a w×h image with a diagonal color ramp, detailed enough
// that lossy encoders produce quality-dependent sizes.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(w, 1)),
				G: uint8((y * 255) / max(h, 1)),
				B: uint8(((x ^ y) * 7) & 0xff),
				A: 0xff,
			})
		}
	}
	return img
}

// JPEG encodes a gradient of the given size at quality q (1-100).
func JPEG(t testing.TB, w, h, q int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: q}); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

// JPEGOriented encodes a w×h gradient JPEG carrying an EXIF Orientation tag,
// the way cameras store rotated shots.
func JPEGOriented(t testing.TB, w, h, orientation int) []byte {
	t.Helper()
	raw := JPEG(t, w, h, 90)

	var exif bytes.Buffer
	exif.WriteString("Exif\x00\x00")
	// Big-endian TIFF header, IFD0 at offset 8 with a single SHORT entry.
	exif.WriteString("MM\x00\x2a")
	for _, v := range []any{
		uint32(8),
		uint16(1),
		uint16(0x0112), uint16(3), uint32(1), uint16(orientation), uint16(0),
		uint32(0),
	} {
		binary.Write(&exif, binary.BigEndian, v)
	}

	var out bytes.Buffer
	out.Write(raw[:2])
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(exif.Len()+2))
	out.Write(exif.Bytes())
	out.Write(raw[2:])
	return out.Bytes()
}

// PNG encodes a gradient of the given size.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		t.Fatalf("encode png fixture: %v", err)
	}
	return buf.Bytes()
}

// WebP encodes a gradient of the given size as lossy WebP.
func WebP(t testing.TB, w, h int) []byte {
	t.Helper()
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, 75)
	if err != nil {
		t.Fatalf("webp options: %v", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, Gradient(w, h), options); err != nil {
		t.Fatalf("encode webp fixture: %v", err)
	}
	return buf.Bytes()
}

// MockLogger captures entries written through Logger().
type MockLogger struct {
	mu     sync.Mutex
	logger logging.Logger
	logs   *observer.ObservedLogs
}

// NewMockLogger creates a logger that records every entry at debug and above.
func NewMockLogger() *MockLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	return &MockLogger{
		logger: logging.FromZap(zap.New(core)),
		logs:   logs,
	}
}

// Logger returns the capturing logger.
func (m *MockLogger) Logger() logging.Logger {
	return m.logger
}

// Messages returns the recorded messages in order.
func (m *MockLogger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.logs.All()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// FindEntry returns the entries with the given message.
func (m *MockLogger) FindEntry(msg string) []observer.LoggedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs.FilterMessage(msg).All()
}
