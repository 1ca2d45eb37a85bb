package infra

import (
	"fmt"
	"time"

	"github.com/kananavy/pharmacie/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date (see Migrate).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every table owned by this service, parents first.
func Models() []interface{} {
	return []interface{}{
		&model.Medicament{},
		&model.Lot{},
		&model.Ordonnance{},
		&model.Commande{},
		&model.DetailCommande{},
		&model.CompteurTicket{},
		&model.Vente{},
		&model.DetailVente{},
		&model.MouvementStock{},
		&model.ClotureCaisse{},
	}
}

// Migrate runs AutoMigrate, then the idempotent Postgres-only patches GORM
// cannot express. It is safe to call on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements: each one is guarded by an
// existence check or uses CREATE OR REPLACE, so re-running is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// FEFO scan: only lots that still hold stock are candidates.
		{"partial index idx_lots_fefo", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_lots_fefo') THEN
    CREATE INDEX idx_lots_fefo
        ON lots (medicament_id, date_expiration, id)
        WHERE quantite_actuelle > 0;
  END IF;
END $$`},
		{"chk_lots_quantite_plafond", `
DO $$ BEGIN
  ALTER TABLE lots DROP CONSTRAINT IF EXISTS chk_lots_quantite_bornee;
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_lots_quantite_plafond') THEN
    ALTER TABLE lots ADD CONSTRAINT chk_lots_quantite_plafond
        CHECK (quantite_actuelle <= quantite_initiale + quantite_ajoutee);
  END IF;
END $$`},
		// The stock ledger and cash closings are append-only: reject UPDATE and DELETE.
		{"function refuser_modification", `
CREATE OR REPLACE FUNCTION refuser_modification() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql`},
		{"trigger trg_mouvements_stock_immuable", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_mouvements_stock_immuable') THEN
    CREATE TRIGGER trg_mouvements_stock_immuable
        BEFORE UPDATE OR DELETE ON mouvements_stock
        FOR EACH ROW EXECUTE FUNCTION refuser_modification();
  END IF;
END $$`},
		{"trigger trg_clotures_caisse_immuable", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_clotures_caisse_immuable') THEN
    CREATE TRIGGER trg_clotures_caisse_immuable
        BEFORE UPDATE OR DELETE ON clotures_caisse
        FOR EACH ROW EXECUTE FUNCTION refuser_modification();
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
