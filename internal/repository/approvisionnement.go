package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/apperr"
	"github.com/diewo77/gesappro/internal/models"
)

// ApprovisionnementFilter narrows and orders the paginated list.
type ApprovisionnementFilter struct {
	Page          int
	PageSize      int
	DateDebut     *time.Time
	DateFin       *time.Time
	Search        string
	FournisseurID uint
	ArticleID     uint
	SortOrder     string // date_asc, montant_asc, montant_desc; default date_desc
}

// ApprovisionnementTx is the transactional slice of the gateway: the
// two-phase write (header first, lines second) runs against it so both
// inserts commit or roll back together.
type ApprovisionnementTx interface {
	InsertApprovisionnement(a *models.Approvisionnement) error
	InsertLignes(lignes []models.ApprovisionnementArticle) error
}

type ApprovisionnementRepository interface {
	// FindLatest returns the most recently created approvisionnement
	// (highest id), or (nil, nil) when the table is empty.
	FindLatest(ctx context.Context) (*models.Approvisionnement, error)
	FindByID(ctx context.Context, id uint) (*models.Approvisionnement, error)
	List(ctx context.Context, f ApprovisionnementFilter) ([]models.Approvisionnement, int64, error)
	Delete(ctx context.Context, id uint) error
	InTx(ctx context.Context, fn func(tx ApprovisionnementTx) error) error
}

type approRepo struct{ db *gorm.DB }

func NewApprovisionnementRepository(db *gorm.DB) ApprovisionnementRepository {
	return &approRepo{db: db}
}

func (r *approRepo) FindLatest(ctx context.Context) (*models.Approvisionnement, error) {
	var a models.Approvisionnement
	err := r.db.WithContext(ctx).Order("id DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewStorage("find latest approvisionnement", err)
	}
	return &a, nil
}

func (r *approRepo) FindByID(ctx context.Context, id uint) (*models.Approvisionnement, error) {
	var a models.Approvisionnement
	err := r.db.WithContext(ctx).
		Preload("Fournisseur").
		Preload("Lignes.Article").
		First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("approvisionnement", id)
	}
	if err != nil {
		return nil, apperr.NewStorage("find approvisionnement", err)
	}
	return &a, nil
}

func (r *approRepo) List(ctx context.Context, f ApprovisionnementFilter) ([]models.Approvisionnement, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Approvisionnement{})

	if f.DateDebut != nil {
		q = q.Where("date_approvisionnement >= ?", *f.DateDebut)
	}
	if f.DateFin != nil {
		q = q.Where("date_approvisionnement <= ?", *f.DateFin)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Joins("LEFT JOIN fournisseurs ON fournisseurs.id = approvisionnements.fournisseur_id").
			Where("approvisionnements.reference LIKE ? OR approvisionnements.observations LIKE ? OR fournisseurs.nom LIKE ?",
				like, like, like)
	}
	if f.FournisseurID > 0 {
		q = q.Where("approvisionnements.fournisseur_id = ?", f.FournisseurID)
	}
	if f.ArticleID > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM approvisionnement_articles aa WHERE aa.approvisionnement_id = approvisionnements.id AND aa.article_id = ?)",
			f.ArticleID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.NewStorage("count approvisionnements", err)
	}

	switch f.SortOrder {
	case "date_asc":
		q = q.Order("date_approvisionnement ASC")
	case "montant_desc":
		q = q.Order("montant_total DESC")
	case "montant_asc":
		q = q.Order("montant_total ASC")
	default: // date_desc
		q = q.Order("date_approvisionnement DESC")
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 10
	}

	var items []models.Approvisionnement
	err := q.Preload("Fournisseur").Preload("Lignes").
		Offset((page - 1) * size).Limit(size).
		Find(&items).Error
	if err != nil {
		return nil, 0, apperr.NewStorage("list approvisionnements", err)
	}
	return items, total, nil
}

// Delete removes the approvisionnement and its lines in one
// transaction. The explicit line delete keeps sqlite dev setups
// without foreign_keys=on consistent with the CASCADE constraint.
func (r *approRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("approvisionnement_id = ?", id).
			Delete(&models.ApprovisionnementArticle{}).Error; err != nil {
			return apperr.NewStorage("delete lignes", err)
		}
		res := tx.Delete(&models.Approvisionnement{}, id)
		if res.Error != nil {
			return apperr.NewStorage("delete approvisionnement", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NewNotFound("approvisionnement", id)
		}
		return nil
	})
}

func (r *approRepo) InTx(ctx context.Context, fn func(tx ApprovisionnementTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&approTx{tx: tx})
	})
}

type approTx struct{ tx *gorm.DB }

func (t *approTx) InsertApprovisionnement(a *models.Approvisionnement) error {
	// Omit the association so the header row goes in alone; lines
	// follow once the generated id is known.
	return t.tx.Omit("Lignes").Create(a).Error
}

func (t *approTx) InsertLignes(lignes []models.ApprovisionnementArticle) error {
	if len(lignes) == 0 {
		return nil
	}
	return t.tx.Create(&lignes).Error
}
