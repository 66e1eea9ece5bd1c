package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/gesappro/internal/models"
)

// ConnectAndMigrate opens the database and brings the schema up to
// date. MIGRATIONS=1 runs the SQL files in ./migrations via
// golang-migrate; otherwise AutoMigrate is used (dev convenience).
func ConnectAndMigrate(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN est vide, vérifiez la configuration de l'environnement")
	}

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel), TranslateError: true}

	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg("connexion DB échouée, nouvelle tentative")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info().Str("dsn", MaskDSN(dsn)).Msg("base de données connectée")

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else if err := AutoMigrate(conn); err != nil {
		return nil, err
	}

	for _, table := range []string{"fournisseurs", "articles", "approvisionnements", "approvisionnement_articles"} {
		if !conn.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}

	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(conn, log)
	}
	return conn, nil
}

// AutoMigrate creates or updates the four tables from the models.
// Also used by tests against in-memory sqlite.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range []interface{}{
		&models.Fournisseur{}, &models.Article{},
		&models.Approvisionnement{}, &models.ApprovisionnementArticle{},
	} {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func seed(conn *gorm.DB, log zerolog.Logger) {
	fournisseurs := []models.Fournisseur{
		{Nom: "Fournitures Générales SARL"},
		{Nom: "Comptoir du Bâtiment"},
	}
	for _, f := range fournisseurs {
		var existing models.Fournisseur
		if err := conn.Where("nom = ?", f.Nom).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			conn.Create(&f)
		}
	}
	articles := []models.Article{
		{Libelle: "Ciment 50kg"},
		{Libelle: "Rame papier A4"},
		{Libelle: "Cartouche d'encre"},
	}
	for _, a := range articles {
		var existing models.Article
		if err := conn.Where("libelle = ?", a.Libelle).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			conn.Create(&a)
		}
	}
	log.Info().Msg("données de démonstration insérées")
}

// runSQLMigrations executes migrations in ./migrations using the
// golang-migrate file source. URL style DSN expected.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
