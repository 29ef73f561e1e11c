package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Hotel is a bookable property.
type Hotel struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	City         string  `json:"city" yaml:"city"`
	Country      string  `json:"country" yaml:"country"`
	Address      string  `json:"address" yaml:"address"`
	Rating       float64 `json:"rating" yaml:"rating"`
	ReviewsCount int     `json:"reviews_count" yaml:"reviews_count"`
	Phone        string  `json:"phone" yaml:"phone"`
	ContactEmail string  `json:"contact_email" yaml:"contact_email"`
	Description  string  `json:"description" yaml:"description"`
	Currency     string  `json:"currency" yaml:"currency"`

	// MinPricePerNight is the cheapest available room rate. It is only
	// populated by [SQLStore.HotelsByPrice] and is nil when the hotel has
	// no available rooms.
	MinPricePerNight *float64 `json:"min_price_per_night,omitempty" yaml:"-"`

	Rooms []Room `json:"-" yaml:"rooms,omitempty"`
}

// Room is a room type offered by a hotel.
type Room struct {
	ID             string     `json:"id" yaml:"id"`
	HotelID        string     `json:"hotel_id" yaml:"-"`
	RoomType       string     `json:"room_type" yaml:"room_type"`
	PricePerNight  float64    `json:"price_per_night" yaml:"price_per_night"`
	Currency       string     `json:"currency" yaml:"currency"`
	Capacity       int        `json:"capacity" yaml:"capacity"`
	BedType        string     `json:"bed_type" yaml:"bed_type"`
	Amenities      StringList `json:"amenities" yaml:"amenities"`
	AvailableCount int        `json:"available_count" yaml:"available_count"`
}

// Package is a bookable tour.
type Package struct {
	ID               string     `json:"id" yaml:"id"`
	Name             string     `json:"name" yaml:"name"`
	Destination      string     `json:"destination" yaml:"destination"`
	Country          string     `json:"country" yaml:"country"`
	Category         string     `json:"category" yaml:"category"`
	DurationDays     int        `json:"duration_days" yaml:"duration_days"`
	Price            float64    `json:"price" yaml:"price"`
	Currency         string     `json:"currency" yaml:"currency"`
	MaxParticipants  int        `json:"max_participants" yaml:"max_participants"`
	AvailableSlots   int        `json:"available_slots" yaml:"available_slots"`
	Rating           float64    `json:"rating" yaml:"rating"`
	ReviewsCount     int        `json:"reviews_count" yaml:"reviews_count"`
	IncludedServices StringList `json:"included_services" yaml:"included_services"`
	Description      string     `json:"description" yaml:"description"`
	IsActive         bool       `json:"is_active" yaml:"-"`
}

// Place is a point of interest.
type Place struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	City            string     `json:"city" yaml:"city"`
	StateProvince   string     `json:"state_province" yaml:"state_province"`
	Country         string     `json:"country" yaml:"country"`
	Category        string     `json:"category" yaml:"category"`
	Rating          float64    `json:"rating" yaml:"rating"`
	FamousFor       StringList `json:"famous_for" yaml:"famous_for"`
	Activities      StringList `json:"activities" yaml:"activities"`
	BestTimeToVisit string     `json:"best_time_to_visit" yaml:"best_time_to_visit"`
	Description     string     `json:"description" yaml:"description"`
	PopularRanking  int        `json:"popular_ranking" yaml:"popular_ranking"`
	VisitCount      int        `json:"visit_count" yaml:"visit_count"`
	IsActive        bool       `json:"is_active" yaml:"-"`
	IsFeatured      bool       `json:"is_featured" yaml:"is_featured"`
}

// Favorite is an item a user saved.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemType  string    `json:"item_type"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking statuses.
const (
	StatusPending = "pending"
)

// Booking kinds.
const (
	KindPackage = "package"
	KindHotel   = "hotel"
)

// Booking is a reservation of a package or hotel.
type Booking struct {
	ID                string    `json:"id"`
	Reference         string    `json:"booking_reference"`
	UserID            string    `json:"user_id"`
	Kind              string    `json:"booking_type"`
	ItemID            string    `json:"item_id"`
	GuestName         string    `json:"primary_guest_name"`
	GuestEmail        string    `json:"primary_guest_email"`
	GuestPhone        string    `json:"primary_guest_phone"`
	TotalParticipants int       `json:"total_participants"`
	BasePrice         float64   `json:"base_price"`
	TotalAmount       float64   `json:"total_amount"`
	Currency          string    `json:"currency"`
	BookingStatus     string    `json:"booking_status"`
	PaymentStatus     string    `json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
}

// StringList is a list column stored as a JSON array in a text column.
type StringList []string

// Value implements [driver.Valuer].
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// timeLayout is fixed-width so lexical order matches chronological
// order in text columns.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// scanTime accepts the representations drivers return for timestamp
// columns: time.Time from lib/pq, text from the sqlite drivers.
type scanTime struct {
	t *time.Time
}

func (s scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (s scanTime) parse(v string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognized format %q", v)
}
