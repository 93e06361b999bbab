package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRasterize(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing output directories", func(t *testing.T) {
		// "true" accepts the wkhtmltopdf arguments and exits cleanly, so
		// only the filesystem handling is under test here.
		rast := NewWKHTMLToPDF("true")
		outPath := filepath.Join(t.TempDir(), "pdfs", "2026", "doc.pdf")

		require.NoError(t, rast.Rasterize(ctx, "<html></html>", outPath))
		require.FileExists(t, outPath)
	})

	t.Run("failed run leaves nothing at the target", func(t *testing.T) {
		rast := NewWKHTMLToPDF("false")
		outPath := filepath.Join(t.TempDir(), "doc.pdf")

		err := rast.Rasterize(ctx, "<html></html>", outPath)
		require.ErrorIs(t, err, ErrRasterizer)

		_, statErr := os.Stat(outPath)
		require.True(t, os.IsNotExist(statErr))
	})
}
