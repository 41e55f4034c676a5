package services

import (
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
)

// Trading-day offsets of the standard IPO schedule
const (
	CloseOffsetDays     = 2
	AllotmentOffsetDays = 1
	ListingOffsetDays   = 3
)

// Timeline is the schedule derived from an open date
type Timeline struct {
	Open      time.Time `json:"open_date"`
	Close     time.Time `json:"close_date"`
	Allotment time.Time `json:"allotment_date"`
	Refund    time.Time `json:"refund_date"`
	Listing   time.Time `json:"listing_date"`
}

// IsTradingDay reports whether t falls on Monday to Friday. Holidays are not modelled.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddTradingDays advances date one calendar day at a time, counting only
// trading days, until n have been counted. n <= 0 returns date unchanged.
func AddTradingDays(date time.Time, n int) time.Time {
	current := date
	counted := 0
	for counted < n {
		current = current.AddDate(0, 0, 1)
		if IsTradingDay(current) {
			counted++
		}
	}
	return current
}

// DeriveTimeline computes close, allotment, refund and listing dates from open.
// Refund shares the allotment day; listing counts from close, not from allotment.
func DeriveTimeline(open time.Time) Timeline {
	closeDate := AddTradingDays(open, CloseOffsetDays)
	allotment := AddTradingDays(closeDate, AllotmentOffsetDays)
	return Timeline{
		Open:      open,
		Close:     closeDate,
		Allotment: allotment,
		Refund:    allotment,
		Listing:   AddTradingDays(closeDate, ListingOffsetDays),
	}
}

// TimelineOf reads the stored schedule of a view model
func TimelineOf(vm models.IPOViewModel) Timeline {
	return Timeline{
		Open:      vm.OpenDate,
		Close:     vm.CloseDate,
		Allotment: vm.AllotmentDate,
		Refund:    vm.RefundDate,
		Listing:   vm.ListingDate,
	}
}

// SuggestedStatus is the status the schedule implies on now's calendar day.
// It is a hint for table rows and never replaces the stored status.
func SuggestedStatus(tl Timeline, now time.Time) models.IPOStatus {
	today := truncateToDay(now)

	switch {
	case !tl.Listing.IsZero() && !today.Before(truncateToDay(tl.Listing)):
		return models.StatusListed
	case !tl.Close.IsZero() && today.After(truncateToDay(tl.Close)):
		return models.StatusClosed
	case !tl.Open.IsZero() && !today.Before(truncateToDay(tl.Open)):
		return models.StatusOpen
	default:
		return models.StatusUpcoming
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
