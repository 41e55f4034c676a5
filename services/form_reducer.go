package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
)

// FormEvent is one field change on the IPO form
type FormEvent struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// RegistrarDirectory resolves a registrar by name
type RegistrarDirectory interface {
	Resolve(name string) (models.Registrar, bool)
}

// StaticRegistrarDirectory is a fixed in-memory directory
type StaticRegistrarDirectory []models.Registrar

// Resolve implements RegistrarDirectory
func (d StaticRegistrarDirectory) Resolve(name string) (models.Registrar, bool) {
	for _, r := range d {
		if r.Matches(name) {
			return r, true
		}
	}
	return models.Registrar{}, false
}

// FormContext carries what the reducer needs besides the state
type FormContext struct {
	// IsEdit disables slug generation; an existing record keeps its slug
	IsEdit     bool
	Registrars RegistrarDirectory
}

// FormSummary holds display-only derived values
type FormSummary struct {
	EstimatedGain    float64  `json:"estimatedGain"`
	GainSign         string   `json:"gainSign"`
	GainPercent      *float64 `json:"gainPercent"`
	GainPercentLabel string   `json:"gainPercentLabel"`
	NIIFromSplit     bool     `json:"niiFromSplit"`
	AllotmentEnabled bool     `json:"allotmentEnabled"`
	RegistrarNeeded  bool     `json:"registrarRequired"`
}

var formUtility = NewUtilityService()

// NewIPOForm returns the state of an empty form. Dates default to today.
func NewIPOForm(ipoType models.IPOType, now time.Time) models.IPOViewModel {
	if ipoType != models.IPOTypeSME {
		ipoType = models.IPOTypeMainboard
	}
	today := truncateToDay(now.UTC())
	return models.IPOViewModel{
		IPOType:       ipoType,
		Status:        models.StatusUpcoming,
		OpenDate:      today,
		CloseDate:     today,
		ListingDate:   today,
		RefundDate:    today,
		AllotmentDate: today,
	}
}

// ReduceIPOForm applies event to state and recomputes the derived fields that
// depend on the changed input, in a fixed order:
//
//	companyName      -> slug (create mode, when the slug is empty or auto-generated)
//	max_price        -> lot_price (only while lot_price is 0)
//	bnii, snii       -> nii (only when bnii+snii > 0)
//	qib, nii, retail, employee (and nii via the split) -> total
//	open_date        -> close, allotment, refund, listing
//	registrarName    -> registrarLink (when the name is in the directory)
//
// Edits to derived fields themselves never cascade. On error state is returned unchanged.
func ReduceIPOForm(state models.IPOViewModel, event FormEvent, ctx FormContext) (models.IPOViewModel, error) {
	setter, ok := formSetters[event.Field]
	if !ok {
		return state, fmt.Errorf("unknown form field %q", event.Field)
	}

	next := state
	if err := setter(&next, event.Value); err != nil {
		return state, fmt.Errorf("invalid value for %s: %w", event.Field, err)
	}

	switch event.Field {
	case "companyName":
		if !ctx.IsEdit && strings.TrimSpace(next.CompanyName) != "" && formUtility.IsAutoGeneratedSlug(next.Slug) {
			next.Slug = formUtility.GenerateSlug(next.CompanyName)
		}

	case "max_price":
		if next.MaxPrice != 0 && next.LotPrice == 0 {
			next.LotPrice = next.MaxPrice
		}

	case "subscription_bnii", "subscription_snii":
		nii, changed := CombinedNII(next.SubscriptionBNII, next.SubscriptionSNII, next.SubscriptionNII)
		if changed && nii != next.SubscriptionNII {
			next.SubscriptionNII = nii
			next.SubscriptionTotal = subscriptionTotalOf(next)
		}

	case "subscription_qib", "subscription_nii", "subscription_retail", "subscription_employee":
		next.SubscriptionTotal = subscriptionTotalOf(next)

	case "open_date":
		tl := DeriveTimeline(next.OpenDate)
		next.CloseDate = tl.Close
		next.AllotmentDate = tl.Allotment
		next.RefundDate = tl.Refund
		next.ListingDate = tl.Listing

	case "registrarName":
		if ctx.Registrars != nil {
			if registrar, found := ctx.Registrars.Resolve(next.RegistrarName); found {
				next.RegistrarLink = registrar.WebsiteLink
			}
		}
	}

	return next, nil
}

// ReduceIPOFormEvents folds a sequence of events, stopping at the first error
func ReduceIPOFormEvents(state models.IPOViewModel, events []FormEvent, ctx FormContext) (models.IPOViewModel, error) {
	for _, event := range events {
		next, err := ReduceIPOForm(state, event, ctx)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

// SummarizeIPOForm computes the display-only values of a form state
func SummarizeIPOForm(state models.IPOViewModel) FormSummary {
	estimated := EstimatedListingGain(state.GMP, state.LotSize)
	summary := FormSummary{
		EstimatedGain:    estimated,
		GainSign:         GainSign(estimated),
		GainPercentLabel: "-",
		NIIFromSplit:     state.SubscriptionBNII+state.SubscriptionSNII > 0,
		AllotmentEnabled: state.Status.AllowsAllotment(),
		RegistrarNeeded:  state.Status.AllowsAllotment(),
	}
	if pct, ok := ListingGainPercent(estimated, state.LotPrice); ok {
		summary.GainPercent = &pct
		summary.GainPercentLabel = FormatPercent(pct)
	}
	return summary
}

func subscriptionTotalOf(vm models.IPOViewModel) float64 {
	return SubscriptionTotal(vm.SubscriptionQIB, vm.SubscriptionNII, vm.SubscriptionRetail, vm.SubscriptionEmployee)
}

type fieldSetter func(vm *models.IPOViewModel, value json.RawMessage) error

var formSetters = map[string]fieldSetter{
	"companyName":          stringField(func(vm *models.IPOViewModel) *string { return &vm.CompanyName }),
	"slug":                 stringField(func(vm *models.IPOViewModel) *string { return &vm.Slug }),
	"icon":                 stringField(func(vm *models.IPOViewModel) *string { return &vm.Icon }),
	"bse_code_nse_code":    stringField(func(vm *models.IPOViewModel) *string { return &vm.BSECodeNSECode }),
	"issueSize":            stringField(func(vm *models.IPOViewModel) *string { return &vm.IssueSize }),
	"rhp_pdf":              stringField(func(vm *models.IPOViewModel) *string { return &vm.RHPPdf }),
	"drhp_pdf":             stringField(func(vm *models.IPOViewModel) *string { return &vm.DRHPPdf }),
	"registrarName":        stringField(func(vm *models.IPOViewModel) *string { return &vm.RegistrarName }),
	"registrarLink":        stringField(func(vm *models.IPOViewModel) *string { return &vm.RegistrarLink }),
	"financials_valuation": stringField(func(vm *models.IPOViewModel) *string { return &vm.FinancialsValuation }),

	"subscription_qib":      numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionQIB }),
	"subscription_nii":      numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionNII }),
	"subscription_bnii":     numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionBNII }),
	"subscription_snii":     numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionSNII }),
	"subscription_retail":   numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionRetail }),
	"subscription_employee": numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionEmployee }),
	"subscription_total":    numberField(func(vm *models.IPOViewModel) *float64 { return &vm.SubscriptionTotal }),
	"gmp":                   numberField(func(vm *models.IPOViewModel) *float64 { return &vm.GMP }),
	"lot_price":             numberField(func(vm *models.IPOViewModel) *float64 { return &vm.LotPrice }),
	"min_price":             numberField(func(vm *models.IPOViewModel) *float64 { return &vm.MinPrice }),
	"max_price":             numberField(func(vm *models.IPOViewModel) *float64 { return &vm.MaxPrice }),
	"financials_revenue":    numberField(func(vm *models.IPOViewModel) *float64 { return &vm.FinancialsRevenue }),
	"financials_profit":     numberField(func(vm *models.IPOViewModel) *float64 { return &vm.FinancialsProfit }),
	"financials_eps":        numberField(func(vm *models.IPOViewModel) *float64 { return &vm.FinancialsEPS }),
	"listing_price":         numberField(func(vm *models.IPOViewModel) *float64 { return &vm.ListingPrice }),
	"listing_day_high":      numberField(func(vm *models.IPOViewModel) *float64 { return &vm.ListingDayHigh }),
	"listing_day_low":       numberField(func(vm *models.IPOViewModel) *float64 { return &vm.ListingDayLow }),

	"open_date":      dateField(func(vm *models.IPOViewModel) *time.Time { return &vm.OpenDate }),
	"close_date":     dateField(func(vm *models.IPOViewModel) *time.Time { return &vm.CloseDate }),
	"listing_date":   dateField(func(vm *models.IPOViewModel) *time.Time { return &vm.ListingDate }),
	"refund_date":    dateField(func(vm *models.IPOViewModel) *time.Time { return &vm.RefundDate }),
	"allotment_date": dateField(func(vm *models.IPOViewModel) *time.Time { return &vm.AllotmentDate }),

	"lot_size": func(vm *models.IPOViewModel, value json.RawMessage) error {
		n, err := decodeNumber(value)
		if err != nil {
			return err
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("lot size must be a whole number, got %v", n)
		}
		vm.LotSize = int(n)
		return nil
	},
	"isAllotmentOut": func(vm *models.IPOViewModel, value json.RawMessage) error {
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("expected a boolean")
		}
		vm.IsAllotmentOut = b
		return nil
	},
	"status": func(vm *models.IPOViewModel, value json.RawMessage) error {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("expected a string")
		}
		status := models.IPOStatus(strings.ToUpper(strings.TrimSpace(s)))
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", s)
		}
		vm.Status = status
		return nil
	},
	"ipoType": func(vm *models.IPOViewModel, value json.RawMessage) error {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("expected a string")
		}
		ipoType := models.IPOType(strings.ToUpper(strings.TrimSpace(s)))
		if ipoType != models.IPOTypeMainboard && ipoType != models.IPOTypeSME {
			return fmt.Errorf("unknown ipo type %q", s)
		}
		vm.IPOType = ipoType
		return nil
	},
}

func stringField(target func(*models.IPOViewModel) *string) fieldSetter {
	return func(vm *models.IPOViewModel, value json.RawMessage) error {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("expected a string")
		}
		*target(vm) = s
		return nil
	}
}

func numberField(target func(*models.IPOViewModel) *float64) fieldSetter {
	return func(vm *models.IPOViewModel, value json.RawMessage) error {
		n, err := decodeNumber(value)
		if err != nil {
			return err
		}
		*target(vm) = n
		return nil
	}
}

func dateField(target func(*models.IPOViewModel) *time.Time) fieldSetter {
	return func(vm *models.IPOViewModel, value json.RawMessage) error {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("expected a date string")
		}
		parsed := formUtility.ParseDate(s)
		if parsed == nil {
			return fmt.Errorf("unrecognised date %q", s)
		}
		*target(vm) = *parsed
		return nil
	}
}

// decodeNumber accepts a JSON number, an empty string (0) or a numeric string as typed into an input
func decodeNumber(value json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(value, &n); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("expected a finite number")
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return 0, fmt.Errorf("expected a number")
	}
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	parsed, ok := models.ParseLooseNumber(s)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	return parsed, nil
}
