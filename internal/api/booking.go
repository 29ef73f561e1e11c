package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/nugget/gotravel-agent/internal/booking"
	"github.com/nugget/gotravel-agent/internal/catalog"
)

// BookingResponse confirms a created booking.
type BookingResponse struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	BookingReference string  `json:"booking_reference"`
	BookingType      string  `json:"booking_type"`
	TotalAmount      float64 `json:"total_amount"`
	Currency         string  `json:"currency"`
}

// BookingView is the public projection of a stored booking. Guest
// contact details are left out; the reference alone grants access.
type BookingView struct {
	BookingReference  string    `json:"booking_reference"`
	BookingType       string    `json:"booking_type"`
	ItemID            string    `json:"item_id"`
	GuestName         string    `json:"guest_name"`
	TotalParticipants int       `json:"total_participants"`
	TotalAmount       float64   `json:"total_amount"`
	Currency          string    `json:"currency"`
	BookingStatus     string    `json:"booking_status"`
	PaymentStatus     string    `json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
}

func viewOf(b *catalog.Booking) BookingView {
	return BookingView{
		BookingReference:  b.Reference,
		BookingType:       b.Kind,
		ItemID:            b.ItemID,
		GuestName:         b.GuestName,
		TotalParticipants: b.TotalParticipants,
		TotalAmount:       b.TotalAmount,
		Currency:          b.Currency,
		BookingStatus:     b.BookingStatus,
		PaymentStatus:     b.PaymentStatus,
		CreatedAt:         b.CreatedAt,
	}
}

func (s *Server) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Kind != catalog.KindPackage && req.Kind != catalog.KindHotel {
		s.errorResponse(w, http.StatusBadRequest, "Invalid booking type. Must be 'package' or 'hotel'")
		return
	}

	b, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		var verr *booking.ValidationError
		var nf *booking.ItemNotFoundError
		switch {
		case errors.As(err, &verr):
			s.writeError(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "Invalid booking request",
				Details: verr.Problems,
			})
		case errors.As(err, &nf):
			s.errorResponse(w, http.StatusNotFound, nf.Error())
		default:
			s.logger.Error("booking failed", "type", req.Kind, "item_id", req.ItemID, "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "Failed to create booking")
		}
		return
	}

	s.writeOK(w, BookingResponse{
		Success:          true,
		Message:          "Booking created successfully",
		BookingReference: b.Reference,
		BookingType:      b.Kind,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
	})
}

// lookupBooking resolves the {reference} path value, writing the error
// response itself when the booking cannot be returned.
func (s *Server) lookupBooking(w http.ResponseWriter, r *http.Request) (*catalog.Booking, bool) {
	ref := r.PathValue("reference")
	b, err := s.bookings.Lookup(r.Context(), ref)
	if errors.Is(err, catalog.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Booking not found: "+ref)
		return nil, false
	}
	if err != nil {
		s.logger.Error("booking lookup failed", "reference", ref, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to look up booking")
		return nil, false
	}
	return b, true
}

func (s *Server) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBooking(w, r)
	if !ok {
		return
	}
	s.writeOK(w, viewOf(b))
}

// QR code size bounds in pixels.
const (
	qrDefaultSize = 256
	qrMinSize     = 128
	qrMaxSize     = 512
)

// handleBookingQR renders the booking reference as a PNG QR code for
// check-in desks.
func (s *Server) handleBookingQR(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBooking(w, r)
	if !ok {
		return
	}

	size := qrDefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			size = min(max(n, qrMinSize), qrMaxSize)
		}
	}

	png, err := qrcode.Encode(b.Reference, qrcode.Medium, size)
	if err != nil {
		s.logger.Error("QR render failed", "reference", b.Reference, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
