package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/apperr"
	"github.com/diewo77/gesappro/internal/models"
)

type FournisseurRepository interface {
	Create(ctx context.Context, f *models.Fournisseur) error
	FindByID(ctx context.Context, id uint) (*models.Fournisseur, error)
	List(ctx context.Context) ([]models.Fournisseur, error)
	Delete(ctx context.Context, id uint) error
}

type fournisseurRepo struct{ db *gorm.DB }

func NewFournisseurRepository(db *gorm.DB) FournisseurRepository { return &fournisseurRepo{db: db} }

func (r *fournisseurRepo) Create(ctx context.Context, f *models.Fournisseur) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *fournisseurRepo) FindByID(ctx context.Context, id uint) (*models.Fournisseur, error) {
	var f models.Fournisseur
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("fournisseur", id)
		}
		return nil, apperr.NewStorage("find fournisseur", err)
	}
	return &f, nil
}

func (r *fournisseurRepo) List(ctx context.Context) ([]models.Fournisseur, error) {
	var fs []models.Fournisseur
	if err := r.db.WithContext(ctx).Order("nom").Find(&fs).Error; err != nil {
		return nil, apperr.NewStorage("list fournisseurs", err)
	}
	return fs, nil
}

// Delete refuses to remove a fournisseur still referenced by an
// approvisionnement (mirrors the RESTRICT foreign key).
func (r *fournisseurRepo) Delete(ctx context.Context, id uint) error {
	var refs int64
	if err := r.db.WithContext(ctx).Model(&models.Approvisionnement{}).
		Where("fournisseur_id = ?", id).Count(&refs).Error; err != nil {
		return apperr.NewStorage("count approvisionnements", err)
	}
	if refs > 0 {
		return apperr.NewConflict("fournisseur référencé par des approvisionnements", nil)
	}
	res := r.db.WithContext(ctx).Delete(&models.Fournisseur{}, id)
	if res.Error != nil {
		return apperr.NewStorage("delete fournisseur", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("fournisseur", id)
	}
	return nil
}
