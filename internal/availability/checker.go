// Package availability answers "which slots can still be booked" for a
// service and date. The answer is a hint: the unique slot index on the
// bookings table is the real double-booking guard (two clients can both
// see a free slot here; only one insert wins).
package availability

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type Checker struct {
	catalog  *repository.CatalogRepo
	bookings *repository.BookingRepo
	now      func() time.Time
}

func NewChecker(catalog *repository.CatalogRepo, bookings *repository.BookingRepo) *Checker {
	return &Checker{catalog: catalog, bookings: bookings, now: time.Now}
}

const dateLayout = "2006-01-02"

// ListSlots returns the bookable "HH:MM" start times for a service on a
// date, ascending. Past dates, unknown services and services in
// maintenance are rejected; slots held by a PENDING or CONFIRMED booking
// are removed (capacity 1), cancelled bookings free their slot.
func (c *Checker) ListSlots(ctx context.Context, serviceID, date string) ([]string, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, domain.ErrMissingField
	}
	today := c.now().UTC().Truncate(24 * time.Hour)
	if d.Before(today) {
		return nil, domain.ErrPastDate
	}

	svc, err := c.catalog.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Maintenance {
		return nil, domain.ErrServiceUnavailable
	}

	template, err := slotsForWeekday(svc, d.Weekday())
	if err != nil {
		return nil, err
	}
	if len(template) == 0 {
		return []string{}, nil
	}

	occupied, err := c.bookings.OccupiedTimes(ctx, svc.ID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	free := make([]string, 0, len(template))
	for _, t := range template {
		if _, ok := taken[t]; !ok {
			free = append(free, t)
		}
	}
	sort.Strings(free) // "HH:MM" sorts chronologically
	return free, nil
}

// slotsForWeekday reads the day's start times out of the service's JSON
// template; a missing weekday means the studio is closed that day.
func slotsForWeekday(svc *domain.Service, wd time.Weekday) ([]string, error) {
	if len(svc.SlotTemplate) == 0 {
		return nil, nil
	}
	var tmpl map[string][]string
	if err := json.Unmarshal(svc.SlotTemplate, &tmpl); err != nil {
		return nil, err
	}
	return tmpl[strings.ToLower(wd.String())], nil
}
