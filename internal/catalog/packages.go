package catalog

import (
	"context"
	"fmt"
)

// PackageFilter narrows a package search. Zero fields are unconstrained.
type PackageFilter struct {
	Destination  string
	Country      string
	Category     string
	MinPrice     float64
	MaxPrice     float64
	DurationDays int
	Limit        int
}

// CheapestLimit is the number of packages [SQLStore.CheapestPackages]
// returns when the caller gives no limit.
const CheapestLimit = 5

const packageColumns = `id, name, destination, country, category, duration_days, price, currency,
	max_participants, available_slots, rating, reviews_count, included_services, description, is_active`

func scanPackage(r rowScanner) (Package, error) {
	var p Package
	err := r.Scan(&p.ID, &p.Name, &p.Destination, &p.Country, &p.Category, &p.DurationDays, &p.Price,
		&p.Currency, &p.MaxParticipants, &p.AvailableSlots, &p.Rating, &p.ReviewsCount,
		&p.IncludedServices, &p.Description, &p.IsActive)
	return p, err
}

// bookable restricts to packages that can currently be sold.
func bookable() *where {
	w := &where{}
	w.add("is_active = TRUE")
	w.add("available_slots > 0")
	return w
}

// SearchPackages returns bookable packages matching f, best rated first.
func (s *SQLStore) SearchPackages(ctx context.Context, f PackageFilter) ([]Package, error) {
	w := bookable()
	w.like("destination", f.Destination)
	w.like("country", f.Country)
	w.like("category", f.Category)
	if f.MinPrice > 0 {
		w.add("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		w.add("price <= ?", f.MaxPrice)
	}
	if f.DurationDays > 0 {
		w.add("duration_days = ?", f.DurationDays)
	}

	q := `SELECT ` + packageColumns + ` FROM packages` + w.String() +
		` ORDER BY rating DESC, name LIMIT ?`
	args := append(w.args, limitOr(f.Limit, DefaultSearchLimit))

	pkgs, err := queryList(ctx, s, q, args, scanPackage)
	if err != nil {
		return nil, fmt.Errorf("search packages: %w", err)
	}
	return pkgs, nil
}

// Package returns the package with id, active or not, or [ErrNotFound].
func (s *SQLStore) Package(ctx context.Context, id string) (*Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages WHERE id = ?`
	p, err := queryOne(ctx, s, q, []any{id}, scanPackage)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", id, err)
	}
	return &p, nil
}

// CheapestPackages returns the lowest priced bookable packages.
func (s *SQLStore) CheapestPackages(ctx context.Context, limit int) ([]Package, error) {
	w := bookable()
	q := `SELECT ` + packageColumns + ` FROM packages` + w.String() + ` ORDER BY price ASC, name LIMIT ?`
	pkgs, err := queryList(ctx, s, q, append(w.args, limitOr(limit, CheapestLimit)), scanPackage)
	if err != nil {
		return nil, fmt.Errorf("cheapest packages: %w", err)
	}
	return pkgs, nil
}

// PackagesByPrice returns bookable packages sorted by price.
func (s *SQLStore) PackagesByPrice(ctx context.Context, order SortOrder, limit int) ([]Package, error) {
	w := bookable()
	q := `SELECT ` + packageColumns + ` FROM packages` + w.String() +
		` ORDER BY price ` + order.sql() + `, name LIMIT ?`
	pkgs, err := queryList(ctx, s, q, append(w.args, limitOr(limit, DefaultSearchLimit)), scanPackage)
	if err != nil {
		return nil, fmt.Errorf("packages by price: %w", err)
	}
	return pkgs, nil
}
