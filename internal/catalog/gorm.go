package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/artiss27/pricelist-sync/internal/db"
)

// GormStore is the reference Store backed by the catalog_products table.
type GormStore struct {
	log zerolog.Logger
	db  *gorm.DB
}

func NewGormStore(log zerolog.Logger, gdb *gorm.DB) *GormStore {
	return &GormStore{log: log.With().Str("component", "catalog").Logger(), db: gdb}
}

func (s *GormStore) FindProducts(ctx context.Context, f Filter) ([]Product, error) {
	q := s.db.WithContext(ctx).Model(&db.CatalogProduct{}).Order("id")
	if len(f.Categories) > 0 {
		q = q.Where("category IN ?", f.Categories)
	}
	if len(f.Manufacturers) > 0 {
		q = q.Where("manufacturer IN ?", f.Manufacturers)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []db.CatalogProduct
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}

	out := make([]Product, 0, len(rows))
	for _, r := range rows {
		p := fromRow(r)
		// Attributes live in a JSON column, so equality filters are
		// applied here rather than in SQL.
		if !matchesAttributes(p.Attributes, f.AttributeEquals) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateProducts applies the whole batch inside one transaction; any
// failing row rolls the batch back.
func (s *GormStore) UpdateProducts(ctx context.Context, batch []ProductPatch) error {
	if len(batch) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, patch := range batch {
			var row db.CatalogProduct
			if err := tx.Take(&row, "id = ?", patch.ProductID).Error; err != nil {
				return fmt.Errorf("product %d: %w", patch.ProductID, err)
			}

			if len(patch.Attributes) > 0 {
				attrs := map[string]string{}
				if row.Attributes != "" {
					_ = json.Unmarshal([]byte(row.Attributes), &attrs)
				}
				for k, v := range patch.Attributes {
					attrs[k] = v
				}
				b, _ := json.Marshal(attrs)
				row.Attributes = string(b)
			}
			if patch.Prices != nil {
				b, _ := json.Marshal(patch.Prices)
				row.Prices = string(b)
			}
			if patch.Stock != nil {
				row.Stock = *patch.Stock
			}
			row.UpdatedAt = time.Now()

			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("save product %d: %w", patch.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Int("n", len(batch)).Msg("catalog batch updated")
	return nil
}

func (s *GormStore) LoadCurrencyFactors(ctx context.Context) (map[string]float64, error) {
	var rows []db.CurrencyRate
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load currency factors: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Code] = r.Factor
	}
	return out, nil
}

func fromRow(r db.CatalogProduct) Product {
	p := Product{
		ID:         r.ID,
		Name:       r.Name,
		Stock:      r.Stock,
		Attributes: map[string]string{},
	}
	if r.Attributes != "" {
		_ = json.Unmarshal([]byte(r.Attributes), &p.Attributes)
	}
	if r.Prices != "" {
		_ = json.Unmarshal([]byte(r.Prices), &p.Prices)
	}
	return p
}

func matchesAttributes(attrs, want map[string]string) bool {
	for k, v := range want {
		if attrs[k] != v {
			return false
		}
	}
	return true
}
