package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BookingsLimit is the default number of bookings returned per user.
const BookingsLimit = 10

// referenceAttempts bounds retries when a generated reference collides.
const referenceAttempts = 3

// NewBookingReference returns "BK" followed by eight uppercase hex
// digits from a random UUID.
func NewBookingReference() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK" + strings.ToUpper(hex[:8])
}

const bookingColumns = `id, booking_reference, user_id, booking_type, item_id,
	primary_guest_name, primary_guest_email, primary_guest_phone, total_participants,
	base_price, total_amount, currency, booking_status, payment_status, created_at`

func scanBooking(r rowScanner) (Booking, error) {
	var b Booking
	err := r.Scan(&b.ID, &b.Reference, &b.UserID, &b.Kind, &b.ItemID,
		&b.GuestName, &b.GuestEmail, &b.GuestPhone, &b.TotalParticipants,
		&b.BasePrice, &b.TotalAmount, &b.Currency, &b.BookingStatus, &b.PaymentStatus,
		scanTime{&b.CreatedAt})
	return b, err
}

// CreateBooking inserts b. ID, Reference, CreatedAt and empty statuses
// are filled in; b is updated in place.
func (s *SQLStore) CreateBooking(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate booking ID: %w", err)
		}
		b.ID = id.String()
	}
	if b.BookingStatus == "" {
		b.BookingStatus = StatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}

	insert := s.rebind(`INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var err error
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		b.Reference = s.newRef()
		_, err = s.db.ExecContext(ctx, insert,
			b.ID, b.Reference, b.UserID, b.Kind, b.ItemID,
			b.GuestName, b.GuestEmail, b.GuestPhone, b.TotalParticipants,
			b.BasePrice, b.TotalAmount, b.Currency, b.BookingStatus, b.PaymentStatus,
			s.timeArg(b.CreatedAt))
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			break
		}
		s.logger.Warn("booking reference collision, regenerating",
			"reference", b.Reference,
			"attempt", attempt,
		)
	}
	b.Reference = ""
	return fmt.Errorf("create booking: %w", err)
}

// BookingByReference returns the booking with ref, or [ErrNotFound].
func (s *SQLStore) BookingByReference(ctx context.Context, ref string) (*Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = ?`
	b, err := queryOne(ctx, s, q, []any{strings.ToUpper(ref)}, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", ref, err)
	}
	return &b, nil
}

// UserBookings returns a user's bookings, newest first.
func (s *SQLStore) UserBookings(ctx context.Context, userID string, limit int) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`
	bookings, err := queryList(ctx, s, q, []any{userID, limitOr(limit, BookingsLimit)}, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("bookings for %s: %w", userID, err)
	}
	return bookings, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}
