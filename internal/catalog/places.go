package catalog

import (
	"context"
	"fmt"
)

// PlaceFilter narrows a place search. Empty fields are unconstrained.
type PlaceFilter struct {
	Country  string
	City     string
	Category string
	// NearCity matches either the city or the state/province.
	NearCity string
	Featured *bool
	Limit    int
}

const placeColumns = `id, name, city, state_province, country, category, rating, famous_for, activities,
	best_time_to_visit, description, popular_ranking, visit_count, is_active, is_featured`

func scanPlace(r rowScanner) (Place, error) {
	var p Place
	err := r.Scan(&p.ID, &p.Name, &p.City, &p.StateProvince, &p.Country, &p.Category, &p.Rating,
		&p.FamousFor, &p.Activities, &p.BestTimeToVisit, &p.Description, &p.PopularRanking,
		&p.VisitCount, &p.IsActive, &p.IsFeatured)
	return p, err
}

// SearchPlaces returns active places matching f, most popular first.
func (s *SQLStore) SearchPlaces(ctx context.Context, f PlaceFilter) ([]Place, error) {
	w := &where{}
	w.add("is_active = TRUE")
	w.like("country", f.Country)
	w.like("city", f.City)
	w.like("category", f.Category)
	if f.NearCity != "" {
		pattern := "%" + f.NearCity + "%"
		w.add("(LOWER(city) LIKE LOWER(?) OR LOWER(state_province) LIKE LOWER(?))", pattern, pattern)
	}
	if f.Featured != nil {
		w.add("is_featured = ?", *f.Featured)
	}

	q := `SELECT ` + placeColumns + ` FROM places` + w.String() +
		` ORDER BY popular_ranking DESC, name LIMIT ?`
	args := append(w.args, limitOr(f.Limit, DefaultSearchLimit))

	places, err := queryList(ctx, s, q, args, scanPlace)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	return places, nil
}

// PopularPlaces returns active places by ranking, then visit count.
func (s *SQLStore) PopularPlaces(ctx context.Context, limit int) ([]Place, error) {
	q := `SELECT ` + placeColumns + ` FROM places
		WHERE is_active = TRUE
		ORDER BY popular_ranking DESC, visit_count DESC
		LIMIT ?`
	places, err := queryList(ctx, s, q, []any{limitOr(limit, DefaultSearchLimit)}, scanPlace)
	if err != nil {
		return nil, fmt.Errorf("popular places: %w", err)
	}
	return places, nil
}
