package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/gotravel-agent/internal/booking"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/weather"
)

// Description truncation lengths for list results.
const (
	searchDescLen = 200
	listDescLen   = 150
)

// popularPlacesLimit and priceListLimit bound the unfiltered list tools.
const (
	popularPlacesLimit = 10
	priceListLimit     = 10
)

// Catalog is the catalog surface the travel tools read and write.
type Catalog interface {
	SearchHotels(ctx context.Context, f catalog.HotelFilter) ([]catalog.Hotel, error)
	HotelRooms(ctx context.Context, hotelID string) ([]catalog.Room, error)
	HotelsByPrice(ctx context.Context, f catalog.HotelFilter, order catalog.SortOrder) ([]catalog.Hotel, error)
	SearchPackages(ctx context.Context, f catalog.PackageFilter) ([]catalog.Package, error)
	CheapestPackages(ctx context.Context, limit int) ([]catalog.Package, error)
	PackagesByPrice(ctx context.Context, order catalog.SortOrder, limit int) ([]catalog.Package, error)
	SearchPlaces(ctx context.Context, f catalog.PlaceFilter) ([]catalog.Place, error)
	PopularPlaces(ctx context.Context, limit int) ([]catalog.Place, error)
	Favorites(ctx context.Context, userID, itemType string, limit int) ([]catalog.Favorite, error)
	AddFavorite(ctx context.Context, userID, itemType, itemID string) (*catalog.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, itemType, itemID string) (bool, error)
}

// WeatherProvider looks up current conditions.
type WeatherProvider interface {
	Configured() bool
	Current(ctx context.Context, city string) (*weather.Conditions, error)
}

// Bookings creates and reads bookings.
type Bookings interface {
	Create(ctx context.Context, req booking.Request) (*catalog.Booking, error)
	Lookup(ctx context.Context, reference string) (*catalog.Booking, error)
	ForUser(ctx context.Context, userID string, limit int) ([]catalog.Booking, error)
}

// Deps are the collaborators behind the travel tools. Weather may be
// nil, in which case get_weather reports that it is not configured.
type Deps struct {
	Catalog  Catalog
	Weather  WeatherProvider
	Bookings Bookings
}

var (
	sortOrderParam = Param{
		Name:        "sort_order",
		Type:        String,
		Description: `Sort order: "low_to_high" for cheapest first, "high_to_low" for most expensive first`,
		Enum:        []string{string(catalog.LowToHigh), string(catalog.HighToLow)},
		Default:     string(catalog.LowToHigh),
	}
	itemTypeEnum = []string{catalog.ItemHotel, catalog.ItemPackage, catalog.ItemPlace}
)

// Travel returns the travel tools in the order they are offered to the
// model.
func Travel(d Deps) []Tool {
	return []Tool{
		{
			Name:        "search_hotels",
			Description: "Search for hotels by location. Use when the user asks about hotels, accommodation, or places to stay in a city or country.",
			Params: []Param{
				{Name: "city", Type: String, Description: `City name (e.g. "Dhaka", "Cox's Bazar")`},
				{Name: "country", Type: String, Description: `Country name (e.g. "Bangladesh")`},
				{Name: "min_rating", Type: Number, Description: "Minimum hotel rating from 0 to 5", Minimum: bound(0), Maximum: bound(5)},
			},
			Handler: d.searchHotels,
		},
		{
			Name:        "get_hotel_rooms",
			Description: "Get available rooms for a hotel: room types, nightly prices, capacity, and amenities.",
			Params: []Param{
				{Name: "hotel_id", Type: String, Description: "The hotel's ID from a previous hotel search", Required: true},
			},
			Handler: d.hotelRooms,
		},
		{
			Name:        "get_hotels_by_price",
			Description: "List hotels sorted by their cheapest available nightly room rate. Use for budget-to-luxury comparisons.",
			Params: []Param{
				{Name: "city", Type: String, Description: `City name to filter by (e.g. "Dhaka")`},
				{Name: "country", Type: String, Description: `Country name to filter by (e.g. "Bangladesh")`},
				sortOrderParam,
			},
			Handler: d.hotelsByPrice,
		},
		{
			Name:        "search_packages",
			Description: "Search travel packages by destination, country, category, price, or duration.",
			Params: []Param{
				{Name: "destination", Type: String, Description: `Destination name (e.g. "Sylhet", "Sundarbans")`},
				{Name: "country", Type: String, Description: `Country name (e.g. "Bangladesh")`},
				{Name: "category", Type: String, Description: `Package category (e.g. "adventure", "luxury", "beach", "cultural")`},
				{Name: "min_price", Type: Number, Description: "Minimum price", Minimum: bound(0)},
				{Name: "max_price", Type: Number, Description: "Maximum price", Minimum: bound(0)},
				{Name: "duration_days", Type: Integer, Description: "Package duration in days", Minimum: bound(1)},
			},
			Handler: d.searchPackages,
		},
		{
			Name:        "get_cheapest_packages",
			Description: "Get the cheapest available travel packages. Use for budget or affordable trip questions.",
			Handler:     d.cheapestPackages,
		},
		{
			Name:        "get_packages_by_price",
			Description: "List available travel packages sorted by price.",
			Params:      []Param{sortOrderParam},
			Handler:     d.packagesByPrice,
		},
		{
			Name:        "search_places",
			Description: "Search tourist places and attractions by country, city, category, or proximity to a city.",
			Params: []Param{
				{Name: "country", Type: String, Description: `Country name (e.g. "Bangladesh")`},
				{Name: "city", Type: String, Description: `City name (e.g. "Dhaka")`},
				{Name: "category", Type: String, Description: `Place category (e.g. "beach", "mountain", "historical", "cultural")`},
				{Name: "near_city", Type: String, Description: "Find places in or around this city or region"},
			},
			Handler: d.searchPlaces,
		},
		{
			Name:        "get_popular_places",
			Description: "Get the most popular tourist places and top attractions.",
			Handler:     d.popularPlaces,
		},
		{
			Name:        "get_user_favorites",
			Description: "Get a user's saved favorite hotels, packages, or places.",
			Params: []Param{
				{Name: "user_id", Type: String, Description: "The user's ID", Required: true},
				{Name: "item_type", Type: String, Description: "Only return this kind of item", Enum: itemTypeEnum},
			},
			Handler: d.favorites,
		},
		{
			Name:        "add_favorite",
			Description: "Save a hotel, package, or place to the user's favorites.",
			Params: []Param{
				{Name: "user_id", Type: String, Description: "The user's ID", Required: true},
				{Name: "item_type", Type: String, Description: "Kind of item", Required: true, Enum: itemTypeEnum},
				{Name: "item_id", Type: String, Description: "ID of the hotel, package, or place", Required: true},
			},
			Handler: d.addFavorite,
		},
		{
			Name:        "remove_favorite",
			Description: "Remove a hotel, package, or place from the user's favorites.",
			Params: []Param{
				{Name: "user_id", Type: String, Description: "The user's ID", Required: true},
				{Name: "item_type", Type: String, Description: "Kind of item", Required: true, Enum: itemTypeEnum},
				{Name: "item_id", Type: String, Description: "ID of the hotel, package, or place", Required: true},
			},
			Handler: d.removeFavorite,
		},
		{
			Name:        "get_weather",
			Description: "Get current weather for a city: temperature, humidity, conditions, and wind.",
			Params: []Param{
				{Name: "city", Type: String, Description: `City name (e.g. "Dhaka", "Cox's Bazar")`, Required: true},
			},
			Handler: d.weather,
		},
		{
			Name:        "create_booking",
			Description: "Book a travel package or hotel. Collect the guest's name, email, and phone before calling.",
			Params: []Param{
				{Name: "booking_type", Type: String, Description: `Either "package" or "hotel"`, Required: true, Enum: []string{catalog.KindPackage, catalog.KindHotel}},
				{Name: "item_id", Type: String, Description: "ID of the package or hotel", Required: true},
				{Name: "guest_name", Type: String, Description: "Full name of the primary guest", Required: true},
				{Name: "guest_email", Type: String, Description: "Email address of the primary guest", Required: true},
				{Name: "guest_phone", Type: String, Description: "Phone number of the primary guest", Required: true},
				{Name: "total_participants", Type: Integer, Description: "Number of people in the booking", Default: 1,
					Minimum: bound(booking.MinParticipants), Maximum: bound(booking.MaxParticipants)},
				{Name: "user_id", Type: String, Description: "The user's ID, if known"},
			},
			Handler: d.createBooking,
		},
		{
			Name:        "get_booking",
			Description: "Look up a booking by its reference (e.g. BK1A2B3C4D).",
			Params: []Param{
				{Name: "booking_reference", Type: String, Description: "The booking reference", Required: true},
			},
			Handler: d.getBooking,
		},
		{
			Name:        "get_user_bookings",
			Description: "List a user's most recent bookings.",
			Params: []Param{
				{Name: "user_id", Type: String, Description: "The user's ID", Required: true},
			},
			Handler: d.userBookings,
		},
	}
}

// --- Hotels ---

type hotelArgs struct {
	City      string            `json:"city"`
	Country   string            `json:"country"`
	MinRating float64           `json:"min_rating"`
	SortOrder catalog.SortOrder `json:"sort_order"`
}

func (d Deps) searchHotels(ctx context.Context, args map[string]any) Result {
	a, err := bind[hotelArgs](args)
	if err != nil {
		return Failed(err)
	}
	hotels, err := d.Catalog.SearchHotels(ctx, catalog.HotelFilter{
		City: a.City, Country: a.Country, MinRating: a.MinRating, Limit: catalog.DefaultSearchLimit,
	})
	if err != nil {
		return Failed(err)
	}
	if len(hotels) == 0 {
		return NotFound("No hotels found matching the criteria" + describeFilters(
			"city", a.City, "country", a.Country))
	}
	return Found(mapSlice(hotels, newHotelView))
}

func (d Deps) hotelRooms(ctx context.Context, args map[string]any) Result {
	hotelID, _ := args["hotel_id"].(string)
	rooms, err := d.Catalog.HotelRooms(ctx, hotelID)
	if err != nil {
		return Failed(err)
	}
	if len(rooms) == 0 {
		return NotFound("No available rooms found for hotel ID: " + hotelID)
	}
	return Found(mapSlice(rooms, newRoomView))
}

func (d Deps) hotelsByPrice(ctx context.Context, args map[string]any) Result {
	a, err := bind[hotelArgs](args)
	if err != nil {
		return Failed(err)
	}
	hotels, err := d.Catalog.HotelsByPrice(ctx, catalog.HotelFilter{
		City: a.City, Country: a.Country, Limit: priceListLimit,
	}, a.SortOrder)
	if err != nil {
		return Failed(err)
	}
	if len(hotels) == 0 {
		return NotFound("No hotels found")
	}
	res := Found(mapSlice(hotels, newHotelView))
	res.SortOrder = string(a.SortOrder)
	return res
}

// --- Packages ---

type packageArgs struct {
	Destination  string            `json:"destination"`
	Country      string            `json:"country"`
	Category     string            `json:"category"`
	MinPrice     float64           `json:"min_price"`
	MaxPrice     float64           `json:"max_price"`
	DurationDays int               `json:"duration_days"`
	SortOrder    catalog.SortOrder `json:"sort_order"`
}

func (d Deps) searchPackages(ctx context.Context, args map[string]any) Result {
	a, err := bind[packageArgs](args)
	if err != nil {
		return Failed(err)
	}
	pkgs, err := d.Catalog.SearchPackages(ctx, catalog.PackageFilter{
		Destination: a.Destination, Country: a.Country, Category: a.Category,
		MinPrice: a.MinPrice, MaxPrice: a.MaxPrice, DurationDays: a.DurationDays,
		Limit: catalog.DefaultSearchLimit,
	})
	if err != nil {
		return Failed(err)
	}
	if len(pkgs) == 0 {
		return NotFound("No packages found matching the criteria")
	}
	return Found(mapSlice(pkgs, newPackageView))
}

func (d Deps) cheapestPackages(ctx context.Context, _ map[string]any) Result {
	pkgs, err := d.Catalog.CheapestPackages(ctx, catalog.CheapestLimit)
	if err != nil {
		return Failed(err)
	}
	if len(pkgs) == 0 {
		return NotFound("No packages available")
	}
	return Found(mapSlice(pkgs, newPackageSummary))
}

func (d Deps) packagesByPrice(ctx context.Context, args map[string]any) Result {
	a, err := bind[packageArgs](args)
	if err != nil {
		return Failed(err)
	}
	pkgs, err := d.Catalog.PackagesByPrice(ctx, a.SortOrder, priceListLimit)
	if err != nil {
		return Failed(err)
	}
	if len(pkgs) == 0 {
		return NotFound("No packages available")
	}
	res := Found(mapSlice(pkgs, func(p catalog.Package) packageSummary {
		s := newPackageSummary(p)
		s.Rating, s.ReviewsCount = &p.Rating, &p.ReviewsCount
		return s
	}))
	res.SortOrder = string(a.SortOrder)
	return res
}

// --- Places ---

func (d Deps) searchPlaces(ctx context.Context, args map[string]any) Result {
	a, err := bind[struct {
		Country  string `json:"country"`
		City     string `json:"city"`
		Category string `json:"category"`
		NearCity string `json:"near_city"`
	}](args)
	if err != nil {
		return Failed(err)
	}
	places, err := d.Catalog.SearchPlaces(ctx, catalog.PlaceFilter{
		Country: a.Country, City: a.City, Category: a.Category, NearCity: a.NearCity,
		Limit: catalog.DefaultSearchLimit,
	})
	if err != nil {
		return Failed(err)
	}
	if len(places) == 0 {
		return NotFound("No places found matching the criteria")
	}
	return Found(mapSlice(places, newPlaceView))
}

func (d Deps) popularPlaces(ctx context.Context, _ map[string]any) Result {
	places, err := d.Catalog.PopularPlaces(ctx, popularPlacesLimit)
	if err != nil {
		return Failed(err)
	}
	if len(places) == 0 {
		return NotFound("No popular places found")
	}
	return Found(mapSlice(places, newPopularPlace))
}

// --- Favorites ---

type favoriteArgs struct {
	UserID   string `json:"user_id"`
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
}

func (d Deps) favorites(ctx context.Context, args map[string]any) Result {
	a, err := bind[favoriteArgs](args)
	if err != nil {
		return Failed(err)
	}
	favs, err := d.Catalog.Favorites(ctx, a.UserID, a.ItemType, catalog.FavoritesLimit)
	if err != nil {
		return Failed(err)
	}
	if len(favs) == 0 {
		return NotFound("No favorites found")
	}
	res := Found(mapSlice(favs, newFavoriteView))
	res.Message = fmt.Sprintf("Found %d favorite items", len(favs))
	return res
}

func (d Deps) addFavorite(ctx context.Context, args map[string]any) Result {
	a, err := bind[favoriteArgs](args)
	if err != nil {
		return Failed(err)
	}
	fav, err := d.Catalog.AddFavorite(ctx, a.UserID, a.ItemType, a.ItemID)
	if err != nil {
		return Failed(err)
	}
	res := Item(newFavoriteView(*fav))
	res.Message = fmt.Sprintf("Saved %s %s to favorites", a.ItemType, a.ItemID)
	return res
}

func (d Deps) removeFavorite(ctx context.Context, args map[string]any) Result {
	a, err := bind[favoriteArgs](args)
	if err != nil {
		return Failed(err)
	}
	removed, err := d.Catalog.RemoveFavorite(ctx, a.UserID, a.ItemType, a.ItemID)
	if err != nil {
		return Failed(err)
	}
	if !removed {
		return Missing(fmt.Sprintf("%s %s is not in the user's favorites", a.ItemType, a.ItemID))
	}
	return Result{Success: true, Message: fmt.Sprintf("Removed %s %s from favorites", a.ItemType, a.ItemID)}
}

// --- Weather ---

func (d Deps) weather(ctx context.Context, args map[string]any) Result {
	city, _ := args["city"].(string)
	if d.Weather == nil || !d.Weather.Configured() {
		return Result{Success: false, Message: "Weather API key not configured"}
	}
	cond, err := d.Weather.Current(ctx, city)
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		return Result{Success: false, Message: fmt.Sprintf("City '%s' not found", city)}
	case errors.Is(err, weather.ErrNotConfigured):
		return Result{Success: false, Message: "Weather API key not configured"}
	case err != nil:
		return Failed(err)
	}
	return Item(cond)
}

// --- Bookings ---

func (d Deps) createBooking(ctx context.Context, args map[string]any) Result {
	req, err := bind[booking.Request](args)
	if err != nil {
		return Failed(err)
	}
	if req.UserID == "" {
		req.UserID = UserIDFromContext(ctx)
	}

	b, err := d.Bookings.Create(ctx, req)
	var ve *booking.ValidationError
	var nf *booking.ItemNotFoundError
	switch {
	case errors.As(err, &ve):
		return Result{Success: false, Message: strings.Join(ve.Problems, "; ")}
	case errors.As(err, &nf):
		return Result{Success: false, Message: nf.Error()}
	case err != nil:
		return Failed(err)
	}

	return Result{
		Success: true,
		Message: "Booking created successfully",
		Data: bookingConfirmation{
			Reference:     b.Reference,
			Kind:          b.Kind,
			GuestName:     b.GuestName,
			TotalAmount:   b.TotalAmount,
			Currency:      b.Currency,
			Status:        b.BookingStatus,
			PaymentStatus: b.PaymentStatus,
		},
	}
}

func (d Deps) getBooking(ctx context.Context, args map[string]any) Result {
	ref, _ := args["booking_reference"].(string)
	b, err := d.Bookings.Lookup(ctx, strings.TrimSpace(ref))
	if errors.Is(err, catalog.ErrNotFound) {
		return Missing(fmt.Sprintf("Booking %s not found", ref))
	}
	if err != nil {
		return Failed(err)
	}
	return Item(newBookingView(*b))
}

func (d Deps) userBookings(ctx context.Context, args map[string]any) Result {
	userID, _ := args["user_id"].(string)
	list, err := d.Bookings.ForUser(ctx, userID, catalog.BookingsLimit)
	if err != nil {
		return Failed(err)
	}
	if len(list) == 0 {
		return NotFound("No bookings found")
	}
	return Found(mapSlice(list, newBookingView))
}

// describeFilters renders non-empty key/value pairs as ": k=v, k=v".
func describeFilters(kv ...string) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			parts = append(parts, kv[i]+"="+kv[i+1])
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return ": " + strings.Join(parts, ", ")
}
