package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeRasterizer writes a marker file and counts invocations. It can be
// told to fail.
type fakeRasterizer struct {
	calls    int
	fail     bool
	lastHTML string
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, html string, outPath string) error {
	f.calls++
	f.lastHTML = html
	if f.fail {
		return fmt.Errorf("%w: boom", ErrRasterizer)
	}
	return os.WriteFile(outPath, []byte("%PDF-fake "+html[:20]), 0o600)
}

type renderFixture struct {
	svc       *Service
	contracts *memory.ContractStore
	users     *memory.UserStore
	orgs      *memory.OrganizationStore
	rast      *fakeRasterizer
	contract  *models.Contract
}

func newRenderFixture(t *testing.T) *renderFixture {
	t.Helper()
	ctx := context.Background()

	contracts := memory.NewContractStore()
	users := memory.NewUserStore()
	orgs := memory.NewOrganizationStore()

	user := &models.User{
		ID:        uuid.Must(uuid.NewV7()),
		Email:     "party@example.com",
		FullName:  "Jane Signer",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now()
	contract := &models.Contract{
		ContractID:     uuid.Must(uuid.NewV7()),
		Title:          "Service Agreement",
		Status:         models.StatusDraft,
		TemplateType:   models.TemplateCustom,
		OwnerID:        uuid.Must(uuid.NewV7()),
		CurrentVersion: 1,
		LastActivityBy: user.ID,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	version := &models.ContractVersion{
		ContractID: contract.ContractID,
		Version:    1,
		Content: models.ContractContent{
			Sections: []models.Section{{Title: "Scope", Text: "All the work."}},
		},
		ModifiedBy: user.ID,
		CreatedAt:  now,
	}
	parties := []models.ContractParty{{
		PartyID:           uuid.Must(uuid.NewV7()),
		ContractID:        contract.ContractID,
		Type:              models.PartyIndividual,
		UserID:            &user.ID,
		SignatureRequired: true,
		CreatedAt:         now,
	}}
	require.NoError(t, contracts.Create(ctx, contract, version, parties))

	html, err := NewHTMLRenderer("")
	require.NoError(t, err)

	rast := &fakeRasterizer{}
	return &renderFixture{
		svc:       NewService(contracts, users, orgs, html, rast, t.TempDir()),
		contracts: contracts,
		users:     users,
		orgs:      orgs,
		rast:      rast,
		contract:  contract,
	}
}

func TestHTMLRendering(t *testing.T) {
	ctx := context.Background()

	t.Run("renders sections and party names", func(t *testing.T) {
		f := newRenderFixture(t)

		html, err := f.svc.HTML(ctx, f.contract)
		require.NoError(t, err)
		require.Contains(t, html, "Service Agreement")
		require.Contains(t, html, "All the work.")
		require.Contains(t, html, "Jane Signer")
		require.NotContains(t, html, "watermark")
	})

	t.Run("second render comes from the cache", func(t *testing.T) {
		f := newRenderFixture(t)

		first, err := f.svc.HTML(ctx, f.contract)
		require.NoError(t, err)

		version, err := f.contracts.GetVersion(ctx, f.contract.ContractID, 1)
		require.NoError(t, err)
		require.NotEmpty(t, version.RenderedHTML)

		second, err := f.svc.HTML(ctx, f.contract)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestPDFExport(t *testing.T) {
	ctx := context.Background()

	t.Run("caches the path per version", func(t *testing.T) {
		f := newRenderFixture(t)

		path, err := f.svc.PDF(ctx, f.contract, "")
		require.NoError(t, err)
		require.FileExists(t, path)
		require.Equal(t, 1, f.rast.calls)

		again, err := f.svc.PDF(ctx, f.contract, "")
		require.NoError(t, err)
		require.Equal(t, path, again)
		require.Equal(t, 1, f.rast.calls)

		version, err := f.contracts.GetVersion(ctx, f.contract.ContractID, 1)
		require.NoError(t, err)
		require.NotEmpty(t, version.PDFPath)
		require.Equal(t, path, version.PDFPath)
	})

	t.Run("watermarked output is fresh every time and never cached", func(t *testing.T) {
		f := newRenderFixture(t)

		first, err := f.svc.PDF(ctx, f.contract, "DRAFT")
		require.NoError(t, err)
		second, err := f.svc.PDF(ctx, f.contract, "DRAFT")
		require.NoError(t, err)
		require.NotEqual(t, first, second)
		require.Equal(t, 2, f.rast.calls)

		version, err := f.contracts.GetVersion(ctx, f.contract.ContractID, 1)
		require.NoError(t, err)
		require.Empty(t, version.PDFPath)
	})

	t.Run("watermark text reaches the page and the filename", func(t *testing.T) {
		f := newRenderFixture(t)

		path, err := f.svc.PDF(ctx, f.contract, "For Review")
		require.NoError(t, err)
		require.Contains(t, filepath.Base(path), "for-review")
		require.Contains(t, f.rast.lastHTML, "For Review")
	})

	t.Run("failure never clobbers a stored path", func(t *testing.T) {
		f := newRenderFixture(t)

		path, err := f.svc.PDF(ctx, f.contract, "")
		require.NoError(t, err)

		// Force a regeneration by removing the cached file, then fail it.
		require.NoError(t, os.Remove(path))
		f.rast.fail = true

		_, err = f.svc.PDF(ctx, f.contract, "")
		require.ErrorIs(t, err, ErrRasterizer)

		version, err := f.contracts.GetVersion(ctx, f.contract.ContractID, 1)
		require.NoError(t, err)
		require.NotEmpty(t, version.PDFPath)
		require.Equal(t, path, version.PDFPath)
	})

	t.Run("missing contract", func(t *testing.T) {
		f := newRenderFixture(t)

		_, err := f.svc.PDF(ctx, &models.Contract{ContractID: uuid.Must(uuid.NewV7()), CurrentVersion: 1}, "")
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrRasterizer))
	})
}
