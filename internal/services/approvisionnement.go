package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/apperr"
	"github.com/diewo77/gesappro/internal/models"
	"github.com/diewo77/gesappro/internal/repository"
)

// ApprovisionnementService assembles and persists approvisionnements:
// line validation, montant computation, reference assignment, and the
// two-phase write (header then lines) inside one transaction.
type ApprovisionnementService struct {
	repo         repository.ApprovisionnementRepository
	fournisseurs repository.FournisseurRepository
	articles     repository.ArticleRepository
	refs         ReferenceSource
	log          zerolog.Logger
}

func NewApprovisionnementService(
	repo repository.ApprovisionnementRepository,
	fournisseurs repository.FournisseurRepository,
	articles repository.ArticleRepository,
	refs ReferenceSource,
	log zerolog.Logger,
) *ApprovisionnementService {
	return &ApprovisionnementService{
		repo:         repo,
		fournisseurs: fournisseurs,
		articles:     articles,
		refs:         refs,
		log:          log,
	}
}

// logFor prefers the request-scoped logger the HTTP middleware put in
// ctx, so service lines carry the same request_id as the access log
// entry. Falls back to the injected logger.
func (s *ApprovisionnementService) logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

// Create validates and persists an approvisionnement with its lines.
//
// Lines with Quantite <= 0 or ArticleID <= 0 are dropped before
// anything is written; if none survive the whole request is rejected
// and no header row is persisted. The fournisseur and every remaining
// article must exist. A caller-supplied non-empty reference is kept
// as-is; otherwise one is generated. On a reference collision the
// write is retried once with a fresh reference.
func (s *ApprovisionnementService) Create(
	ctx context.Context,
	appro *models.Approvisionnement,
	lignes []models.ApprovisionnementArticle,
) (*models.Approvisionnement, error) {
	valides := make([]models.ApprovisionnementArticle, 0, len(lignes))
	for _, l := range lignes {
		if l.Valide() {
			valides = append(valides, l)
		}
	}
	s.logFor(ctx).Info().
		Uint("fournisseur_id", appro.FournisseurID).
		Int("lignes", len(lignes)).
		Int("lignes_valides", len(valides)).
		Msg("création approvisionnement")

	if len(valides) == 0 {
		return nil, apperr.NewValidation("veuillez ajouter au moins un article valide", map[string]string{"lignes": "required"})
	}
	if appro.FournisseurID == 0 {
		return nil, apperr.NewValidation("fournisseur requis", map[string]string{"fournisseur_id": "required"})
	}
	if _, err := s.fournisseurs.FindByID(ctx, appro.FournisseurID); err != nil {
		return nil, err
	}
	for _, l := range valides {
		if _, err := s.articles.FindByID(ctx, l.ArticleID); err != nil {
			return nil, err
		}
	}

	generated := false
	if strings.TrimSpace(appro.Reference) == "" {
		appro.Reference = s.refs.Next(ctx)
		generated = true
	}
	if appro.Statut == "" {
		appro.Statut = models.StatutEnAttente
	}
	if appro.DateApprovisionnement.IsZero() {
		appro.DateApprovisionnement = time.Now()
	}

	total := decimal.Zero
	for i := range valides {
		valides[i].Montant = valides[i].PrixUnitaire.Mul(decimal.NewFromInt(int64(valides[i].Quantite)))
		total = total.Add(valides[i].Montant)
	}
	appro.MontantTotal = total

	err := s.persist(ctx, appro, valides)
	if isDuplicate(err) && generated {
		// lost the reference race; regenerate once and retry
		appro.Reference = s.refs.Next(ctx)
		s.logFor(ctx).Warn().Str("reference", appro.Reference).Msg("collision de référence, nouvelle tentative")
		err = s.persist(ctx, appro, valides)
	}
	if err != nil {
		if isDuplicate(err) {
			return nil, apperr.NewConflict("référence déjà utilisée: "+appro.Reference, err)
		}
		return nil, err
	}

	s.logFor(ctx).Info().
		Uint("id", appro.ID).
		Str("reference", appro.Reference).
		Str("montant_total", appro.MontantTotal.StringFixed(2)).
		Int("lignes", len(appro.Lignes)).
		Msg("approvisionnement créé")
	return appro, nil
}

// persist runs the two-phase write as one transaction: the header row
// goes in first to obtain the generated id the lines need as foreign
// key, then the stamped lines. Any failure rolls back both.
func (s *ApprovisionnementService) persist(
	ctx context.Context,
	appro *models.Approvisionnement,
	lignes []models.ApprovisionnementArticle,
) error {
	appro.ID = 0
	return s.repo.InTx(ctx, func(tx repository.ApprovisionnementTx) error {
		if err := tx.InsertApprovisionnement(appro); err != nil {
			return err
		}
		for i := range lignes {
			lignes[i].ID = 0
			lignes[i].ApprovisionnementID = appro.ID
		}
		if err := tx.InsertLignes(lignes); err != nil {
			return err
		}
		appro.Lignes = lignes
		return nil
	})
}

// GetByID returns the approvisionnement with fournisseur and lines
// (article labels included) preloaded.
func (s *ApprovisionnementService) GetByID(ctx context.Context, id uint) (*models.Approvisionnement, error) {
	return s.repo.FindByID(ctx, id)
}

// List applies the filters and returns one page plus total and page counts.
func (s *ApprovisionnementService) List(ctx context.Context, f repository.ApprovisionnementFilter) ([]models.Approvisionnement, int64, int, error) {
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, 0, err
	}
	pageCount := int(math.Ceil(float64(total) / float64(f.PageSize)))
	return items, total, pageCount, nil
}

// Delete removes the approvisionnement and cascades to its lines.
func (s *ApprovisionnementService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logFor(ctx).Info().Uint("id", id).Msg("approvisionnement supprimé")
	return nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
