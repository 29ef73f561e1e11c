package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres, nil), mock
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres, nil)
	got := pg.rebind("SELECT * FROM t WHERE a = ? AND (b LIKE ? OR c LIKE ?) LIMIT ?")
	want := "SELECT * FROM t WHERE a = $1 AND (b LIKE $2 OR c LIKE $3) LIMIT $4"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := New(nil, SQLite, nil)
	if q := "SELECT ?"; lite.rebind(q) != q {
		t.Error("sqlite queries must not be rewritten")
	}
}

func TestDialectFor(t *testing.T) {
	for driver, want := range map[string]Dialect{"postgres": Postgres, "sqlite3": SQLite, "sqlite": SQLite} {
		got, err := DialectFor(driver)
		if err != nil || got != want {
			t.Errorf("DialectFor(%q) = %v, %v", driver, got, err)
		}
	}
	if _, err := DialectFor("mysql"); err == nil {
		t.Error("mysql should be rejected")
	}
}

func TestPostgres_SearchHotels(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "name", "city", "country", "address", "rating", "reviews_count",
		"phone", "contact_email", "description", "currency"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM hotels h WHERE LOWER(h.city) LIKE LOWER($1) AND h.rating >= $2 ORDER BY h.rating DESC, h.name LIMIT $3`)).
		WithArgs("%Dhaka%", 4.0, DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("h1", "Pan Pacific Sonargaon", "Dhaka", "Bangladesh", "", []byte("4.50"), 120, "", "", "", "BDT"))

	got, err := s.SearchHotels(context.Background(), HotelFilter{City: "Dhaka", MinRating: 4})
	if err != nil {
		t.Fatalf("SearchHotels: %v", err)
	}
	if len(got) != 1 || got[0].Rating != 4.5 {
		t.Errorf("hotels = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_QueryErrorIsNotNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM packages WHERE id = \\$1").
		WithArgs("p1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Package(context.Background(), "p1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want a query error distinct from ErrNotFound", err)
	}
}

func TestPostgres_CreateBookingRetriesUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	refs := []string{"BK11111111", "BK22222222"}
	s.newRef = func() string {
		r := refs[0]
		refs = refs[1:]
		return r
	}

	insert := regexp.QuoteMeta("INSERT INTO bookings")
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "BK11111111", "u1", KindPackage, "p1", "Guest", "g@example.com", "01712345678",
			2, 30000.0, 30000.0, "BDT", StatusPending, StatusPending, created).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "BK22222222", "u1", KindPackage, "p1", "Guest", "g@example.com", "01712345678",
			2, 30000.0, 30000.0, "BDT", StatusPending, StatusPending, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b := &Booking{
		UserID: "u1", Kind: KindPackage, ItemID: "p1",
		GuestName: "Guest", GuestEmail: "g@example.com", GuestPhone: "01712345678",
		TotalParticipants: 2, BasePrice: 30000, TotalAmount: 30000, Currency: "BDT",
	}
	if err := s.CreateBooking(context.Background(), b); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Reference != "BK22222222" {
		t.Errorf("reference = %q", b.Reference)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_CreateBookingOtherErrorNotRetried(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(errors.New("permission denied"))

	b := &Booking{UserID: "u1", Kind: KindHotel, ItemID: "h1"}
	if err := s.CreateBooking(context.Background(), b); err == nil {
		t.Fatal("expected error")
	}
	if b.Reference != "" {
		t.Errorf("reference should be cleared on failure, got %q", b.Reference)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)
	for range schemaStatements(Postgres) {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
