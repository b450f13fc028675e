package db

import (
	"fmt"
)

// Migrate creates/updates the schema and the composite issue index.
func (h *Handle) Migrate() error {
	gdb := h.DB

	if err := gdb.AutoMigrate(
		&PriceTemplate{},
		&CatalogProduct{},
		&CurrencyRate{},
		&MediaFile{},
		&MatchIssue{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}

	// Composite uniqueness for issue upserts; AutoMigrate only builds the
	// single-column indexes declared in tags.
	if !gdb.Migrator().HasIndex(&MatchIssue{}, "uniq_match_issue_key") {
		if err := gdb.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS uniq_match_issue_key
			ON match_issues(template_id, product_id, reason, code);
		`).Error; err != nil {
			return fmt.Errorf("create index uniq_match_issue_key: %w", err)
		}
	}

	return nil
}
