// Package booking creates and looks up reservations of packages and
// hotels. Both the chat tools and the direct HTTP endpoint go through
// [Service] so validation and pricing are applied in one place.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nugget/gotravel-agent/internal/catalog"
)

// HotelPlaceholderAmount is the total charged for a hotel booking. Hotel
// bookings do not select a room, so no nightly rate is applied.
const HotelPlaceholderAmount = 5000.0

// Participant and field bounds.
const (
	MinParticipants = 1
	MaxParticipants = 50
	minNameLen      = 2
	maxNameLen      = 255
	minPhoneLen     = 10
	maxPhoneLen     = 20
)

// Catalog is the subset of the catalog store bookings need.
type Catalog interface {
	Package(ctx context.Context, id string) (*catalog.Package, error)
	Hotel(ctx context.Context, id string) (*catalog.Hotel, error)
	CreateBooking(ctx context.Context, b *catalog.Booking) error
	BookingByReference(ctx context.Context, ref string) (*catalog.Booking, error)
	UserBookings(ctx context.Context, userID string, limit int) ([]catalog.Booking, error)
}

// Notifier is told about each booking after it is stored. Failures are
// the notifier's concern; they never fail the booking.
type Notifier interface {
	BookingCreated(ctx context.Context, b catalog.Booking)
}

// Request describes a booking to create.
type Request struct {
	Kind         string `json:"booking_type"`
	ItemID       string `json:"item_id"`
	GuestName    string `json:"guest_name"`
	GuestEmail   string `json:"guest_email"`
	GuestPhone   string `json:"guest_phone"`
	Participants int    `json:"total_participants"`
	UserID       string `json:"user_id,omitempty"`
}

// ValidationError lists every problem with a [Request].
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid booking: " + strings.Join(e.Problems, "; ")
}

// ItemNotFoundError reports that the package or hotel does not exist.
type ItemNotFoundError struct {
	Kind   string
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	name := "Package"
	if e.Kind == catalog.KindHotel {
		name = "Hotel"
	}
	return fmt.Sprintf("%s with ID %s not found", name, e.ItemID)
}

// Is lets callers match with errors.Is(err, catalog.ErrNotFound).
func (e *ItemNotFoundError) Is(target error) bool {
	return target == catalog.ErrNotFound
}

// Service creates bookings against a catalog.
type Service struct {
	catalog  Catalog
	notifier Notifier
	logger   *slog.Logger
	newUser  func() string
}

// NewService creates a booking service. notifier may be nil.
func NewService(c Catalog, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  c,
		notifier: notifier,
		logger:   logger,
		newUser:  uuid.NewString,
	}
}

// Validate checks a request without touching the catalog. A zero
// Participants is treated as one.
func (r *Request) Validate() error {
	var problems []string

	if r.Participants == 0 {
		r.Participants = MinParticipants
	}
	r.GuestName = strings.TrimSpace(r.GuestName)
	r.GuestEmail = strings.TrimSpace(r.GuestEmail)
	r.GuestPhone = strings.TrimSpace(r.GuestPhone)

	switch r.Kind {
	case catalog.KindPackage, catalog.KindHotel:
	default:
		problems = append(problems, "Invalid booking type. Must be 'package' or 'hotel'")
	}
	if strings.TrimSpace(r.ItemID) == "" {
		problems = append(problems, "item_id is required")
	}
	if n := utf8.RuneCountInString(r.GuestName); n < minNameLen || n > maxNameLen {
		problems = append(problems, fmt.Sprintf("guest_name must be %d to %d characters", minNameLen, maxNameLen))
	}
	if addr, err := mail.ParseAddress(r.GuestEmail); err != nil || addr.Address != r.GuestEmail {
		problems = append(problems, "guest_email must be a valid email address")
	}
	if n := utf8.RuneCountInString(r.GuestPhone); n < minPhoneLen || n > maxPhoneLen {
		problems = append(problems, fmt.Sprintf("guest_phone must be %d to %d characters", minPhoneLen, maxPhoneLen))
	}
	if r.Participants < MinParticipants || r.Participants > MaxParticipants {
		problems = append(problems, fmt.Sprintf("total_participants must be between %d and %d", MinParticipants, MaxParticipants))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Create validates req, prices it, and stores a pending booking.
func (s *Service) Create(ctx context.Context, req Request) (*catalog.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b := &catalog.Booking{
		UserID:            req.UserID,
		Kind:              req.Kind,
		ItemID:            req.ItemID,
		GuestName:         req.GuestName,
		GuestEmail:        req.GuestEmail,
		GuestPhone:        req.GuestPhone,
		TotalParticipants: req.Participants,
	}

	switch req.Kind {
	case catalog.KindPackage:
		pkg, err := s.catalog.Package(ctx, req.ItemID)
		if err != nil {
			return nil, s.lookupErr(req, err)
		}
		b.TotalAmount = pkg.Price * float64(req.Participants)
		b.Currency = pkg.Currency
	case catalog.KindHotel:
		hotel, err := s.catalog.Hotel(ctx, req.ItemID)
		if err != nil {
			return nil, s.lookupErr(req, err)
		}
		b.TotalAmount = HotelPlaceholderAmount
		b.Currency = hotel.Currency
	}
	b.BasePrice = b.TotalAmount

	if b.UserID == "" {
		b.UserID = s.newUser()
	}

	if err := s.catalog.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("booking created",
		"reference", b.Reference,
		"type", b.Kind,
		"item_id", b.ItemID,
		"participants", b.TotalParticipants,
		"total", b.TotalAmount,
		"currency", b.Currency,
	)

	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, *b)
	}
	return b, nil
}

func (s *Service) lookupErr(req Request, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return &ItemNotFoundError{Kind: req.Kind, ItemID: req.ItemID}
	}
	return fmt.Errorf("look up %s %s: %w", req.Kind, req.ItemID, err)
}

// Lookup returns the booking with the given reference.
func (s *Service) Lookup(ctx context.Context, reference string) (*catalog.Booking, error) {
	return s.catalog.BookingByReference(ctx, reference)
}

// ForUser returns a user's most recent bookings.
func (s *Service) ForUser(ctx context.Context, userID string, limit int) ([]catalog.Booking, error) {
	return s.catalog.UserBookings(ctx, userID, limit)
}
