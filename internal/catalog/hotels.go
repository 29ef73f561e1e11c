package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// HotelFilter narrows a hotel search. Empty fields are unconstrained.
type HotelFilter struct {
	City      string
	Country   string
	MinRating float64
	Limit     int
}

// SortOrder is a price sort direction.
type SortOrder string

// Price sort directions.
const (
	LowToHigh SortOrder = "low_to_high"
	HighToLow SortOrder = "high_to_low"
)

func (o SortOrder) sql() string {
	if o == HighToLow {
		return "DESC"
	}
	return "ASC"
}

const hotelColumns = `h.id, h.name, h.city, h.country, h.address, h.rating, h.reviews_count,
	h.phone, h.contact_email, h.description, h.currency`

func scanHotel(r rowScanner) (Hotel, error) {
	var h Hotel
	err := r.Scan(&h.ID, &h.Name, &h.City, &h.Country, &h.Address, &h.Rating, &h.ReviewsCount,
		&h.Phone, &h.ContactEmail, &h.Description, &h.Currency)
	return h, err
}

func hotelWhere(f HotelFilter) *where {
	w := &where{}
	w.like("h.city", f.City)
	w.like("h.country", f.Country)
	if f.MinRating > 0 {
		w.add("h.rating >= ?", f.MinRating)
	}
	return w
}

// SearchHotels returns hotels matching f, best rated first.
func (s *SQLStore) SearchHotels(ctx context.Context, f HotelFilter) ([]Hotel, error) {
	w := hotelWhere(f)
	q := `SELECT ` + hotelColumns + ` FROM hotels h` + w.String() +
		` ORDER BY h.rating DESC, h.name LIMIT ?`
	args := append(w.args, limitOr(f.Limit, DefaultSearchLimit))

	hotels, err := queryList(ctx, s, q, args, scanHotel)
	if err != nil {
		return nil, fmt.Errorf("search hotels: %w", err)
	}
	return hotels, nil
}

// Hotel returns the hotel with id, or [ErrNotFound].
func (s *SQLStore) Hotel(ctx context.Context, id string) (*Hotel, error) {
	q := `SELECT ` + hotelColumns + ` FROM hotels h WHERE h.id = ?`
	h, err := queryOne(ctx, s, q, []any{id}, scanHotel)
	if err != nil {
		return nil, fmt.Errorf("hotel %s: %w", id, err)
	}
	return &h, nil
}

// HotelsByPrice returns hotels matching f ordered by their cheapest
// available room rate. Hotels with no available rooms sort last in
// either direction.
func (s *SQLStore) HotelsByPrice(ctx context.Context, f HotelFilter, order SortOrder) ([]Hotel, error) {
	w := hotelWhere(f)
	q := `SELECT ` + hotelColumns + `, r.min_price
		FROM hotels h
		LEFT JOIN (
			SELECT hotel_id, MIN(price_per_night) AS min_price
			FROM rooms
			WHERE available_count > 0
			GROUP BY hotel_id
		) r ON r.hotel_id = h.id` + w.String() + `
		ORDER BY (r.min_price IS NULL), r.min_price ` + order.sql() + `, h.name
		LIMIT ?`
	args := append(w.args, limitOr(f.Limit, DefaultSearchLimit))

	hotels, err := queryList(ctx, s, q, args, func(r rowScanner) (Hotel, error) {
		var h Hotel
		var minPrice sql.NullFloat64
		err := r.Scan(&h.ID, &h.Name, &h.City, &h.Country, &h.Address, &h.Rating, &h.ReviewsCount,
			&h.Phone, &h.ContactEmail, &h.Description, &h.Currency, &minPrice)
		if minPrice.Valid {
			h.MinPricePerNight = &minPrice.Float64
		}
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("hotels by price: %w", err)
	}
	return hotels, nil
}

const roomColumns = `id, hotel_id, room_type, price_per_night, currency, capacity, bed_type,
	amenities, available_count`

func scanRoom(r rowScanner) (Room, error) {
	var rm Room
	err := r.Scan(&rm.ID, &rm.HotelID, &rm.RoomType, &rm.PricePerNight, &rm.Currency, &rm.Capacity,
		&rm.BedType, &rm.Amenities, &rm.AvailableCount)
	return rm, err
}

// HotelRooms returns the hotel's rooms with availability, cheapest first.
func (s *SQLStore) HotelRooms(ctx context.Context, hotelID string) ([]Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms
		WHERE hotel_id = ? AND available_count > 0
		ORDER BY price_per_night, room_type`
	rooms, err := queryList(ctx, s, q, []any{hotelID}, scanRoom)
	if err != nil {
		return nil, fmt.Errorf("rooms for hotel %s: %w", hotelID, err)
	}
	return rooms, nil
}
