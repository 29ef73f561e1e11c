package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixtures is seed data for a catalog, loaded from YAML.
type Fixtures struct {
	Hotels   []Hotel          `yaml:"hotels"`
	Packages []packageFixture `yaml:"packages"`
	Places   []placeFixture   `yaml:"places"`
}

type packageFixture struct {
	Package `yaml:",inline"`
	Active  *bool `yaml:"is_active"`
}

type placeFixture struct {
	Place  `yaml:",inline"`
	Active *bool `yaml:"is_active"`
}

// SeedResult counts rows inserted by [SQLStore.Seed]. Rows whose ID
// already exists are skipped.
type SeedResult struct {
	Hotels   int
	Rooms    int
	Packages int
	Places   int
}

// LoadFixtures decodes catalog seed data. Missing IDs are generated,
// missing currencies default to BDT, and packages and places are active
// unless is_active is false.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	for i := range f.Hotels {
		h := &f.Hotels[i]
		if h.Name == "" {
			return nil, fmt.Errorf("hotels[%d]: name is required", i)
		}
		fillID(&h.ID)
		h.Currency = currencyOr(h.Currency)
		for j := range h.Rooms {
			rm := &h.Rooms[j]
			fillID(&rm.ID)
			rm.HotelID = h.ID
			if rm.Currency == "" {
				rm.Currency = h.Currency
			}
		}
	}
	for i := range f.Packages {
		p := &f.Packages[i]
		if p.Name == "" {
			return nil, fmt.Errorf("packages[%d]: name is required", i)
		}
		fillID(&p.ID)
		p.Currency = currencyOr(p.Currency)
		p.IsActive = p.Active == nil || *p.Active
	}
	for i := range f.Places {
		p := &f.Places[i]
		if p.Name == "" {
			return nil, fmt.Errorf("places[%d]: name is required", i)
		}
		fillID(&p.ID)
		p.IsActive = p.Active == nil || *p.Active
	}
	return &f, nil
}

func fillID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func currencyOr(c string) string {
	if c == "" {
		return "BDT"
	}
	return c
}

// Seed inserts fixtures in a single transaction.
func (s *SQLStore) Seed(ctx context.Context, f *Fixtures) (SeedResult, error) {
	var res SeedResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	exec := func(query string, args ...any) (int, error) {
		r, err := tx.ExecContext(ctx, s.rebind(query+" ON CONFLICT (id) DO NOTHING"), args...)
		if err != nil {
			return 0, err
		}
		n, err := r.RowsAffected()
		return int(n), err
	}

	for _, h := range f.Hotels {
		n, err := exec(`INSERT INTO hotels (id, name, city, country, address, rating, reviews_count,
			phone, contact_email, description, currency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.Name, h.City, h.Country, h.Address, h.Rating, h.ReviewsCount,
			h.Phone, h.ContactEmail, h.Description, h.Currency)
		if err != nil {
			return res, fmt.Errorf("seed hotel %q: %w", h.Name, err)
		}
		res.Hotels += n

		for _, rm := range h.Rooms {
			n, err := exec(`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rm.ID, rm.HotelID, rm.RoomType, rm.PricePerNight, rm.Currency, rm.Capacity,
				rm.BedType, rm.Amenities, rm.AvailableCount)
			if err != nil {
				return res, fmt.Errorf("seed room %q of %q: %w", rm.RoomType, h.Name, err)
			}
			res.Rooms += n
		}
	}

	for _, p := range f.Packages {
		n, err := exec(`INSERT INTO packages (`+packageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Destination, p.Country, p.Category, p.DurationDays, p.Price, p.Currency,
			p.MaxParticipants, p.AvailableSlots, p.Rating, p.ReviewsCount, p.IncludedServices,
			p.Description, p.IsActive)
		if err != nil {
			return res, fmt.Errorf("seed package %q: %w", p.Name, err)
		}
		res.Packages += n
	}

	for _, p := range f.Places {
		n, err := exec(`INSERT INTO places (`+placeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.City, p.StateProvince, p.Country, p.Category, p.Rating,
			p.FamousFor, p.Activities, p.BestTimeToVisit, p.Description, p.PopularRanking,
			p.VisitCount, p.IsActive, p.IsFeatured)
		if err != nil {
			return res, fmt.Errorf("seed place %q: %w", p.Name, err)
		}
		res.Places += n
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit seed: %w", err)
	}
	s.logger.Info("catalog seeded",
		"hotels", res.Hotels,
		"rooms", res.Rooms,
		"packages", res.Packages,
		"places", res.Places,
	)
	return res, nil
}
