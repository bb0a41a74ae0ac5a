package availability

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

// 2026-06-01 is a Monday; the fixture template only opens Mondays.
const (
	fixedToday = "2026-06-01"
	pastDay    = "2026-05-31"
	closedDay  = "2026-06-02"
)

func newTestChecker(t *testing.T) (*Checker, *repository.BookingRepo, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bookings := repository.NewBookingRepo(gdb)
	c := NewChecker(repository.NewCatalogRepo(gdb), bookings)
	c.now = func() time.Time {
		return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	return c, bookings, gdb
}

func seedService(t *testing.T, gdb *gorm.DB, maintenance bool) {
	t.Helper()
	svc := domain.Service{
		ID:           "svc-collagen",
		Slug:         "collagen-boost",
		Name:         "Collagen Boost",
		DurationMin:  30,
		PriceCents:   4500,
		Maintenance:  maintenance,
		SlotTemplate: datatypes.JSON(`{"monday": ["10:00", "10:45", "11:30"]}`),
	}
	if err := gdb.Create(&svc).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
}

func TestListSlots_FullTemplateWhenFree(t *testing.T) {
	c, _, gdb := newTestChecker(t)
	seedService(t, gdb, false)

	slots, err := c.ListSlots(context.Background(), "svc-collagen", fixedToday)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"10:00", "10:45", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
}

func TestListSlots_OccupiedExcluded(t *testing.T) {
	c, bookings, gdb := newTestChecker(t)
	seedService(t, gdb, false)
	ctx := context.Background()

	_, err := bookings.CreateOccupying(ctx, &domain.Booking{
		ServiceID: "svc-collagen", Date: fixedToday, StartTime: "10:45",
		DurationMin: 30, Status: domain.BookingConfirmed, Method: domain.MethodCard,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err := c.ListSlots(ctx, "svc-collagen", fixedToday)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"10:00", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
}

func TestListSlots_CancelledBookingFreesSlot(t *testing.T) {
	c, bookings, gdb := newTestChecker(t)
	seedService(t, gdb, false)
	ctx := context.Background()

	b, err := bookings.CreateOccupying(ctx, &domain.Booking{
		ServiceID: "svc-collagen", Date: fixedToday, StartTime: "10:00",
		DurationMin: 30, Status: domain.BookingConfirmed, Method: domain.MethodCard,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := bookings.Cancel(ctx, b.ID, "client called"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := c.ListSlots(ctx, "svc-collagen", fixedToday)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"10:00", "10:45", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
}

func TestListSlots_Rejections(t *testing.T) {
	c, _, gdb := newTestChecker(t)
	seedService(t, gdb, false)
	ctx := context.Background()

	if _, err := c.ListSlots(ctx, "svc-collagen", pastDay); !errors.Is(err, domain.ErrPastDate) {
		t.Fatalf("past date: want ErrPastDate, got %v", err)
	}
	if _, err := c.ListSlots(ctx, "svc-collagen", "not-a-date"); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("bad date: want ErrMissingField, got %v", err)
	}
	if _, err := c.ListSlots(ctx, "no-such-service", fixedToday); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown service: want ErrNotFound, got %v", err)
	}
}

func TestListSlots_MaintenanceRejected(t *testing.T) {
	c, _, gdb := newTestChecker(t)
	seedService(t, gdb, true)

	if _, err := c.ListSlots(context.Background(), "svc-collagen", fixedToday); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("want ErrServiceUnavailable, got %v", err)
	}
}

func TestListSlots_ClosedWeekdayEmpty(t *testing.T) {
	c, _, gdb := newTestChecker(t)
	seedService(t, gdb, false)

	slots, err := c.ListSlots(context.Background(), "svc-collagen", closedDay)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("closed day should have no slots, got %v", slots)
	}
}

func TestListSlots_BySlug(t *testing.T) {
	c, _, gdb := newTestChecker(t)
	seedService(t, gdb, false)

	slots, err := c.ListSlots(context.Background(), "collagen-boost", fixedToday)
	if err != nil {
		t.Fatalf("list by slug: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("slots = %v, want 3 entries", slots)
	}
}
