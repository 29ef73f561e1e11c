package tools

import (
	"time"

	"github.com/nugget/gotravel-agent/internal/catalog"
)

// Views are the record shapes shown to the model. They drop columns the
// model has no use for and shorten long descriptions.

type hotelView struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	City             string   `json:"city"`
	Country          string   `json:"country"`
	Address          string   `json:"address"`
	Rating           float64  `json:"rating"`
	ReviewsCount     int      `json:"reviews_count"`
	Phone            string   `json:"phone"`
	Email            string   `json:"email"`
	Currency         string   `json:"currency"`
	MinPricePerNight *float64 `json:"min_price_per_night,omitempty"`
	Description      string   `json:"description"`
}

func newHotelView(h catalog.Hotel) hotelView {
	return hotelView{
		ID:               h.ID,
		Name:             h.Name,
		City:             h.City,
		Country:          h.Country,
		Address:          h.Address,
		Rating:           h.Rating,
		ReviewsCount:     h.ReviewsCount,
		Phone:            h.Phone,
		Email:            h.ContactEmail,
		Currency:         h.Currency,
		MinPricePerNight: h.MinPricePerNight,
		Description:      truncate(h.Description, searchDescLen),
	}
}

type roomView struct {
	ID             string   `json:"id"`
	RoomType       string   `json:"room_type"`
	PricePerNight  float64  `json:"price_per_night"`
	Currency       string   `json:"currency"`
	Capacity       int      `json:"capacity"`
	BedType        string   `json:"bed_type"`
	Amenities      []string `json:"amenities"`
	AvailableCount int      `json:"available_count"`
}

func newRoomView(r catalog.Room) roomView {
	return roomView{
		ID:             r.ID,
		RoomType:       r.RoomType,
		PricePerNight:  r.PricePerNight,
		Currency:       r.Currency,
		Capacity:       r.Capacity,
		BedType:        r.BedType,
		Amenities:      nonNil(r.Amenities),
		AvailableCount: r.AvailableCount,
	}
}

type packageView struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Destination      string   `json:"destination"`
	Country          string   `json:"country"`
	Category         string   `json:"category"`
	DurationDays     int      `json:"duration_days"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
	MaxParticipants  int      `json:"max_participants"`
	AvailableSlots   int      `json:"available_slots"`
	Rating           float64  `json:"rating"`
	ReviewsCount     int      `json:"reviews_count"`
	IncludedServices []string `json:"included_services"`
	Description      string   `json:"description"`
}

func newPackageView(p catalog.Package) packageView {
	return packageView{
		ID:               p.ID,
		Name:             p.Name,
		Destination:      p.Destination,
		Country:          p.Country,
		Category:         p.Category,
		DurationDays:     p.DurationDays,
		Price:            p.Price,
		Currency:         p.Currency,
		MaxParticipants:  p.MaxParticipants,
		AvailableSlots:   p.AvailableSlots,
		Rating:           p.Rating,
		ReviewsCount:     p.ReviewsCount,
		IncludedServices: nonNil(p.IncludedServices),
		Description:      truncate(p.Description, searchDescLen),
	}
}

// packageSummary is the shorter package shape used by the price lists.
type packageSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Destination    string   `json:"destination"`
	DurationDays   int      `json:"duration_days"`
	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	Category       string   `json:"category"`
	AvailableSlots int      `json:"available_slots"`
	Rating         *float64 `json:"rating,omitempty"`
	ReviewsCount   *int     `json:"reviews_count,omitempty"`
	Description    string   `json:"description"`
}

func newPackageSummary(p catalog.Package) packageSummary {
	return packageSummary{
		ID:             p.ID,
		Name:           p.Name,
		Destination:    p.Destination,
		DurationDays:   p.DurationDays,
		Price:          p.Price,
		Currency:       p.Currency,
		Category:       p.Category,
		AvailableSlots: p.AvailableSlots,
		Description:    truncate(p.Description, listDescLen),
	}
}

type placeView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	City            string   `json:"city"`
	Country         string   `json:"country"`
	Category        string   `json:"category"`
	Rating          float64  `json:"rating"`
	FamousFor       []string `json:"famous_for"`
	Activities      []string `json:"activities"`
	BestTimeToVisit string   `json:"best_time_to_visit"`
	Description     string   `json:"description"`
}

func newPlaceView(p catalog.Place) placeView {
	return placeView{
		ID:              p.ID,
		Name:            p.Name,
		City:            p.City,
		Country:         p.Country,
		Category:        p.Category,
		Rating:          p.Rating,
		FamousFor:       nonNil(p.FamousFor),
		Activities:      nonNil(p.Activities),
		BestTimeToVisit: p.BestTimeToVisit,
		Description:     truncate(p.Description, searchDescLen),
	}
}

type popularPlace struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	City           string   `json:"city"`
	Country        string   `json:"country"`
	Category       string   `json:"category"`
	Rating         float64  `json:"rating"`
	PopularRanking int      `json:"popular_ranking"`
	FamousFor      []string `json:"famous_for"`
	Description    string   `json:"description"`
}

func newPopularPlace(p catalog.Place) popularPlace {
	return popularPlace{
		ID:             p.ID,
		Name:           p.Name,
		City:           p.City,
		Country:        p.Country,
		Category:       p.Category,
		Rating:         p.Rating,
		PopularRanking: p.PopularRanking,
		FamousFor:      nonNil(p.FamousFor),
		Description:    truncate(p.Description, listDescLen),
	}
}

type favoriteView struct {
	ID        string    `json:"id"`
	ItemType  string    `json:"item_type"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newFavoriteView(f catalog.Favorite) favoriteView {
	return favoriteView{ID: f.ID, ItemType: f.ItemType, ItemID: f.ItemID, CreatedAt: f.CreatedAt}
}

type bookingConfirmation struct {
	Reference     string  `json:"booking_reference"`
	Kind          string  `json:"booking_type"`
	GuestName     string  `json:"guest_name"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
}

type bookingView struct {
	Reference         string    `json:"booking_reference"`
	Kind              string    `json:"booking_type"`
	ItemID            string    `json:"item_id"`
	GuestName         string    `json:"guest_name"`
	TotalParticipants int       `json:"total_participants"`
	TotalAmount       float64   `json:"total_amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
}

func newBookingView(b catalog.Booking) bookingView {
	return bookingView{
		Reference:         b.Reference,
		Kind:              b.Kind,
		ItemID:            b.ItemID,
		GuestName:         b.GuestName,
		TotalParticipants: b.TotalParticipants,
		TotalAmount:       b.TotalAmount,
		Currency:          b.Currency,
		Status:            b.BookingStatus,
		PaymentStatus:     b.PaymentStatus,
		CreatedAt:         b.CreatedAt,
	}
}

// truncate shortens s to n runes and marks it with "...". Empty
// descriptions stay empty.
func truncate(s string, n int) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

func nonNil(l catalog.StringList) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func mapSlice[T, V any](in []T, f func(T) V) []V {
	out := make([]V, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
