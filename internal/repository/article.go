package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/apperr"
	"github.com/diewo77/gesappro/internal/models"
)

type ArticleRepository interface {
	Create(ctx context.Context, a *models.Article) error
	FindByID(ctx context.Context, id uint) (*models.Article, error)
	List(ctx context.Context) ([]models.Article, error)
	Delete(ctx context.Context, id uint) error
}

type articleRepo struct{ db *gorm.DB }

func NewArticleRepository(db *gorm.DB) ArticleRepository { return &articleRepo{db: db} }

func (r *articleRepo) Create(ctx context.Context, a *models.Article) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *articleRepo) FindByID(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("article", id)
		}
		return nil, apperr.NewStorage("find article", err)
	}
	return &a, nil
}

func (r *articleRepo) List(ctx context.Context) ([]models.Article, error) {
	var as []models.Article
	if err := r.db.WithContext(ctx).Order("libelle").Find(&as).Error; err != nil {
		return nil, apperr.NewStorage("list articles", err)
	}
	return as, nil
}

func (r *articleRepo) Delete(ctx context.Context, id uint) error {
	var refs int64
	if err := r.db.WithContext(ctx).Model(&models.ApprovisionnementArticle{}).
		Where("article_id = ?", id).Count(&refs).Error; err != nil {
		return apperr.NewStorage("count lignes", err)
	}
	if refs > 0 {
		return apperr.NewConflict("article référencé par des lignes d'approvisionnement", nil)
	}
	res := r.db.WithContext(ctx).Delete(&models.Article{}, id)
	if res.Error != nil {
		return apperr.NewStorage("delete article", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("article", id)
	}
	return nil
}
