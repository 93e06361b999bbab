package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/rs/zerolog/log"
)

// Service is the rendering pipeline. HTML and PDF output of a (contract,
// version) pair is cached on the version row; watermarked output is always
// produced fresh and never cached.
type Service struct {
	contracts store.ContractStore
	users     store.UserStore
	orgs      store.OrganizationStore

	html       *HTMLRenderer
	rasterizer Rasterizer
	pdfDir     string
}

// NewService creates the rendering pipeline. pdfDir must exist and be
// writable.
func NewService(contracts store.ContractStore, users store.UserStore, orgs store.OrganizationStore, html *HTMLRenderer, rasterizer Rasterizer, pdfDir string) *Service {
	return &Service{
		contracts:  contracts,
		users:      users,
		orgs:       orgs,
		html:       html,
		rasterizer: rasterizer,
		pdfDir:     pdfDir,
	}
}

// HTML renders the contract's current version to HTML, serving the cached
// copy when one exists.
func (s *Service) HTML(ctx context.Context, contract *models.Contract) (string, error) {
	version, err := s.contracts.GetVersion(ctx, contract.ContractID, contract.CurrentVersion)
	if err != nil {
		if errors.Is(err, store.ErrVersionNotFound) {
			// Render an empty document rather than failing the read.
			return s.renderHTML(ctx, contract, models.ContractContent{}, "")
		}
		return "", err
	}

	if version.RenderedHTML != "" {
		return version.RenderedHTML, nil
	}

	html, err := s.renderHTML(ctx, contract, version.Content, "")
	if err != nil {
		return "", err
	}

	if err := s.contracts.UpdateVersionRender(ctx, contract.ContractID, version.Version, &html, nil); err != nil {
		// Cache write failures cost a re-render, nothing else.
		log.Warn().Err(err).Str("contract_id", contract.ContractID.String()).Msg("Failed to cache rendered HTML")
	}
	return html, nil
}

// PDF renders the contract's current version to a PDF file and returns its
// path. A non-empty watermark is stamped across every page and forces a
// fresh, uncached render. Unwatermarked output is cached per version; a
// generation failure leaves any previously stored path untouched.
func (s *Service) PDF(ctx context.Context, contract *models.Contract, watermark string) (string, error) {
	version, err := s.contracts.GetVersion(ctx, contract.ContractID, contract.CurrentVersion)
	if err != nil {
		return "", err
	}

	if watermark == "" && version.PDFPath != "" {
		if _, err := os.Stat(version.PDFPath); err == nil {
			return version.PDFPath, nil
		}
		// Stale path, regenerate.
	}

	html, err := s.renderHTML(ctx, contract, version.Content, watermark)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_v%d.pdf", contract.ContractID, version.Version)
	if watermark != "" {
		name = fmt.Sprintf("%s_v%d_%s_%d.pdf", contract.ContractID, version.Version, filenameSuffix(watermark), time.Now().UnixNano())
	}
	outPath := filepath.Join(s.pdfDir, name)

	if err := s.rasterizer.Rasterize(ctx, html, outPath); err != nil {
		return "", err
	}

	if watermark == "" {
		if err := s.contracts.UpdateVersionRender(ctx, contract.ContractID, version.Version, nil, &outPath); err != nil {
			log.Warn().Err(err).Str("contract_id", contract.ContractID.String()).Msg("Failed to cache PDF path")
		}
	}

	log.Debug().
		Str("contract_id", contract.ContractID.String()).
		Int("version", version.Version).
		Str("watermark", watermark).
		Msg("Generated PDF")

	return outPath, nil
}

// filenameSuffix reduces a watermark to characters safe in a filename.
func filenameSuffix(watermark string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, watermark)
	return strings.Trim(mapped, "-")
}

func (s *Service) renderHTML(ctx context.Context, contract *models.Contract, content models.ContractContent, watermark string) (string, error) {
	parties, err := s.contracts.ListParties(ctx, contract.ContractID)
	if err != nil {
		return "", err
	}

	views := make([]PartyView, 0, len(parties))
	for _, p := range parties {
		views = append(views, PartyView{
			DisplayName:       s.displayName(ctx, p),
			Type:              p.Type,
			Email:             p.ExternalEmail,
			SignatureRequired: p.SignatureRequired,
			Signed:            p.SignedAt != nil,
		})
	}

	return s.html.Render(Document{
		Title:          contract.Title,
		Description:    contract.Description,
		Status:         contract.Status,
		TemplateType:   contract.TemplateType,
		Version:        contract.CurrentVersion,
		EffectiveDate:  contract.EffectiveDate,
		ExpirationDate: contract.ExpirationDate,
		Parties:        views,
		Sections:       content.Sections,
		GeneratedAt:    time.Now(),
		Watermark:      watermark,
	})
}

// displayName resolves a party to a human readable name: registered user,
// then organization, then external identity.
func (s *Service) displayName(ctx context.Context, p models.ContractParty) string {
	if p.UserID != nil {
		if user, err := s.users.Get(ctx, *p.UserID); err == nil {
			return user.FullName
		}
	}
	if p.OrgID != nil {
		if org, err := s.orgs.Get(ctx, *p.OrgID); err == nil {
			return org.Name
		}
	}
	if p.ExternalName != "" {
		return p.ExternalName
	}
	if p.ExternalEmail != "" {
		return p.ExternalEmail
	}
	return "Unnamed party"
}
