package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statut par défaut d'un approvisionnement nouvellement créé.
const StatutEnAttente = "En attente"

// Fournisseur is master data referenced by approvisionnements.
// Deleting a fournisseur is restricted while it is referenced.
type Fournisseur struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Nom       string `gorm:"size:200;not null" json:"nom"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Article is master data referenced by approvisionnement lines.
type Article struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Libelle   string `gorm:"size:200;not null" json:"libelle"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Approvisionnement is a supply order placed with one fournisseur.
// Reference is unique and immutable after creation; MontantTotal is the
// sum of the line Montant values.
type Approvisionnement struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Reference             string          `gorm:"size:100;not null;uniqueIndex" json:"reference"`
	DateApprovisionnement time.Time       `gorm:"not null" json:"date_approvisionnement"`
	Observations          string          `gorm:"size:1000" json:"observations"`
	Statut                string          `gorm:"size:50;not null;default:'En attente'" json:"statut"`
	MontantTotal          decimal.Decimal `gorm:"type:numeric(18,2)" json:"montant_total"`

	FournisseurID uint         `gorm:"not null" json:"fournisseur_id"`
	Fournisseur   *Fournisseur `gorm:"foreignKey:FournisseurID;constraint:OnDelete:RESTRICT" json:"fournisseur,omitempty"`

	Lignes []ApprovisionnementArticle `gorm:"foreignKey:ApprovisionnementID;constraint:OnDelete:CASCADE" json:"lignes,omitempty"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovisionnementArticle is one line of an approvisionnement.
// Montant is always Quantite × PrixUnitaire.
type ApprovisionnementArticle struct {
	ID                  uint `gorm:"primaryKey" json:"id"`
	ApprovisionnementID uint `gorm:"not null;index" json:"approvisionnement_id"`

	ArticleID uint     `gorm:"not null" json:"article_id"`
	Article   *Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:RESTRICT" json:"article,omitempty"`

	Quantite     int             `gorm:"not null" json:"quantite"`
	PrixUnitaire decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"prix_unitaire"`
	Montant      decimal.Decimal `gorm:"type:numeric(18,2)" json:"montant"`
}

// Valide reports whether the line counts for persistence and totals:
// a positive quantity against an existing-looking article id.
func (l ApprovisionnementArticle) Valide() bool {
	return l.Quantite > 0 && l.ArticleID > 0
}
