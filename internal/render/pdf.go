package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrRasterizer is wrapped around any PDF generation failure.
var ErrRasterizer = errors.New("pdf generation failed")

// Rasterizer turns an HTML document into a PDF file at outPath.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, outPath string) error
}

// WKHTMLToPDF shells out to the wkhtmltopdf binary.
type WKHTMLToPDF struct {
	Binary string
}

// NewWKHTMLToPDF creates a Rasterizer using the given binary, or
// "wkhtmltopdf" from PATH when empty.
func NewWKHTMLToPDF(binary string) *WKHTMLToPDF {
	if binary == "" {
		binary = "wkhtmltopdf"
	}
	return &WKHTMLToPDF{Binary: binary}
}

func (w *WKHTMLToPDF) Rasterize(ctx context.Context, html string, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("%w: %s", ErrRasterizer, err)
	}

	// Write via a temp file so a failed run never leaves a partial PDF at
	// the target path.
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".render-*.pdf")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRasterizer, err)
	}
	tmpPath := tmp.Name()
	tmp.Close() //nolint:errcheck
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, w.Binary, "--quiet", "--encoding", "utf-8", "-", tmpPath)
	cmd.Stdin = bytes.NewReader([]byte(html))

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrRasterizer, err, string(out))
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("%w: %s", ErrRasterizer, err)
	}
	return nil
}
