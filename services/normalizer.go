package services

import (
	"math"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/sirupsen/logrus"
)

// Normalizer maps backend IPO records to the flat form view model and back.
// Both directions are pure apart from debug logging; neither ever fails.
type Normalizer struct {
	utility *UtilityService
	logger  *logrus.Entry
}

// NewNormalizer creates a normalizer using utility for date parsing
func NewNormalizer(utility *UtilityService) *Normalizer {
	if utility == nil {
		utility = NewUtilityService()
	}
	return &Normalizer{
		utility: utility,
		logger:  logrus.WithField("component", "Normalizer"),
	}
}

// ToViewModel reads a raw record as a MAINBOARD form unless the record says otherwise
func (n *Normalizer) ToViewModel(raw models.RawIPO, now time.Time) models.IPOViewModel {
	return n.ToViewModelWithType(raw, models.IPOTypeMainboard, now)
}

// ToViewModelWithType reads a raw record, using defaultType when the record carries no ipoType.
// Missing numbers become 0, missing strings "", and missing or unparseable dates
// become now's calendar day.
func (n *Normalizer) ToViewModelWithType(raw models.RawIPO, defaultType models.IPOType, now time.Time) models.IPOViewModel {
	id := raw.String("id")
	if id == "" {
		id = raw.String("_id")
	}

	sub := raw.SectionShape(models.SubscriptionSection)
	fin := raw.SectionShape(models.FinancialsSection)
	listing := raw.SectionShape(models.ListingInfoSection)

	vm := models.IPOViewModel{
		ID:          id,
		CompanyName: raw.String("companyName"),
		Slug:        raw.String("slug"),
		Icon:        raw.String("icon"),
		IPOType:     n.readType(raw, defaultType),
		Status:      n.readStatus(raw, id),

		SubscriptionQIB:      sub.Number("qib"),
		SubscriptionNII:      sub.Number("nii"),
		SubscriptionBNII:     sub.Number("bnii"),
		SubscriptionSNII:     sub.Number("snii"),
		SubscriptionRetail:   sub.Number("retail"),
		SubscriptionEmployee: sub.Number("employee"),
		SubscriptionTotal:    sub.Number("total"),

		GMP: raw.GMPShape().Latest(),

		OpenDate:      n.readDate(raw, "open_date", id, now),
		CloseDate:     n.readDate(raw, "close_date", id, now),
		ListingDate:   n.readDate(raw, "listing_date", id, now),
		RefundDate:    n.readDate(raw, "refund_date", id, now),
		AllotmentDate: n.readDate(raw, "allotment_date", id, now),

		LotSize:        int(math.Round(raw.Number("lot_size"))),
		LotPrice:       raw.Number("lot_price"),
		MinPrice:       raw.Number("min_price"),
		MaxPrice:       raw.Number("max_price"),
		BSECodeNSECode: raw.String("bse_code_nse_code"),
		IssueSize:      raw.String("issueSize"),
		IsAllotmentOut: raw.Bool("isAllotmentOut"),

		RHPPdf:        raw.String("rhp_pdf"),
		DRHPPdf:       raw.String("drhp_pdf"),
		RegistrarName: raw.String("registrarName"),
		RegistrarLink: raw.String("registrarLink"),

		FinancialsRevenue:   fin.Number("revenue"),
		FinancialsProfit:    fin.Number("profit"),
		FinancialsEPS:       fin.Number("eps"),
		FinancialsValuation: fin.String("valuation"),

		ListingPrice:   listing.Number("listing_price"),
		ListingDayHigh: listing.Number("day_high"),
		ListingDayLow:  listing.Number("day_low"),
	}

	// The allotment flag has no meaning before the issue closes
	if vm.IsAllotmentOut && !vm.Status.AllowsAllotment() {
		n.logger.WithFields(logrus.Fields{"ipo_id": id, "status": vm.Status}).Debug("Cleared allotment flag on record that is not closed or listed")
		vm.IsAllotmentOut = false
	}

	return vm
}

// ToAPIPayload builds the nested payload sent on create and update
func (n *Normalizer) ToAPIPayload(vm models.IPOViewModel, now time.Time) models.IPOPayload {
	listingGain := 0.0
	if vm.ListingPrice != 0 && vm.LotPrice != 0 {
		listingGain = vm.ListingPrice - vm.LotPrice
	}

	status := vm.Status
	if status == "" {
		status = models.StatusUpcoming
	}
	ipoType := vm.IPOType
	if ipoType == "" {
		ipoType = models.IPOTypeMainboard
	}

	return models.IPOPayload{
		CompanyName: vm.CompanyName,
		Slug:        vm.Slug,
		IPOType:     ipoType,
		Status:      status,
		Subscription: models.Subscription{
			QIB:      vm.SubscriptionQIB,
			NII:      vm.SubscriptionNII,
			BNII:     vm.SubscriptionBNII,
			SNII:     vm.SubscriptionSNII,
			Retail:   vm.SubscriptionRetail,
			Employee: vm.SubscriptionEmployee,
			Total:    vm.SubscriptionTotal,
		},
		// The server owns the series; only the new observation is sent
		GMP: []models.GMPEntry{{
			Price:  vm.GMP,
			Kostak: "0",
			Date:   now.UTC(),
		}},
		OpenDate:       vm.OpenDate,
		CloseDate:      vm.CloseDate,
		ListingDate:    vm.ListingDate,
		RefundDate:     vm.RefundDate,
		AllotmentDate:  vm.AllotmentDate,
		LotSize:        vm.LotSize,
		LotPrice:       vm.LotPrice,
		MinPrice:       vm.MinPrice,
		MaxPrice:       vm.MaxPrice,
		BSECodeNSECode: vm.BSECodeNSECode,
		IssueSize:      vm.IssueSize,
		IsAllotmentOut: vm.IsAllotmentOut && status.AllowsAllotment(),
		RHPPdf:         vm.RHPPdf,
		DRHPPdf:        vm.DRHPPdf,
		RegistrarName:  vm.RegistrarName,
		RegistrarLink:  vm.RegistrarLink,
		Financials: models.Financials{
			Revenue:   vm.FinancialsRevenue,
			Profit:    vm.FinancialsProfit,
			EPS:       vm.FinancialsEPS,
			Valuation: vm.FinancialsValuation,
		},
		ListingInfo: models.ListingInfo{
			ListingPrice: vm.ListingPrice,
			ListingGain:  listingGain,
			DayHigh:      vm.ListingDayHigh,
			DayLow:       vm.ListingDayLow,
		},
	}
}

// ToTableRow normalizes a record and computes its derived columns
func (n *Normalizer) ToTableRow(raw models.RawIPO, defaultType models.IPOType, now time.Time) models.IPOTableRow {
	vm := n.ToViewModelWithType(raw, defaultType, now)
	estimated := EstimatedListingGain(vm.GMP, vm.LotSize)

	row := models.IPOTableRow{
		ID:                vm.ID,
		CompanyName:       vm.CompanyName,
		Slug:              vm.Slug,
		Icon:              vm.Icon,
		IPOType:           vm.IPOType,
		Status:            vm.Status,
		SuggestedStatus:   SuggestedStatus(TimelineOf(vm), now),
		GMP:               vm.GMP,
		LotSize:           vm.LotSize,
		LotPrice:          vm.LotPrice,
		IssueSize:         vm.IssueSize,
		SubscriptionTotal: vm.SubscriptionTotal,
		EstimatedProfit:   estimated,
		GainSign:          GainSign(estimated),
		GainPercentLabel:  "-",
		ListingPrice:      vm.ListingPrice,
		IsAllotmentOut:    vm.IsAllotmentOut,
		RegistrarName:     vm.RegistrarName,
		OpenDate:          vm.OpenDate,
		CloseDate:         vm.CloseDate,
		AllotmentDate:     vm.AllotmentDate,
		ListingDate:       vm.ListingDate,
	}

	if pct, ok := ListingGainPercent(estimated, vm.LotPrice); ok {
		row.GainPercent = &pct
		row.GainPercentLabel = FormatPercent(pct)
	}

	basePrice := vm.MaxPrice
	if basePrice == 0 {
		basePrice = vm.MinPrice
	}
	if pct, ok := ListingGainPercent(vm.GMP, basePrice); ok {
		row.GMPPercent = &pct
	}

	if vm.ListingPrice != 0 && vm.LotPrice != 0 {
		gain := vm.ListingPrice - vm.LotPrice
		pct, _ := ListingGainPercent(gain, vm.LotPrice)
		row.ListingGain = &gain
		row.ListingGainPct = &pct
	}

	return row
}

func (n *Normalizer) readType(raw models.RawIPO, defaultType models.IPOType) models.IPOType {
	switch models.IPOType(strings.ToUpper(strings.TrimSpace(raw.String("ipoType")))) {
	case models.IPOTypeSME:
		return models.IPOTypeSME
	case models.IPOTypeMainboard:
		return models.IPOTypeMainboard
	}
	if defaultType == models.IPOTypeSME {
		return models.IPOTypeSME
	}
	return models.IPOTypeMainboard
}

func (n *Normalizer) readStatus(raw models.RawIPO, id string) models.IPOStatus {
	value := strings.ToUpper(strings.TrimSpace(raw.String("status")))
	status := models.IPOStatus(value)
	if status.IsValid() {
		return status
	}
	// Older records use ACTIVE for an open issue
	if value == "ACTIVE" {
		return models.StatusOpen
	}
	if value != "" {
		n.logger.WithFields(logrus.Fields{"ipo_id": id, "status": value}).Debug("Unknown status, defaulting to UPCOMING")
	}
	return models.StatusUpcoming
}

func (n *Normalizer) readDate(raw models.RawIPO, field, id string, now time.Time) time.Time {
	value := raw.String(field)
	if parsed := n.utility.ParseDate(value); parsed != nil {
		return *parsed
	}

	fallback := truncateToDay(now.UTC())
	n.logger.WithFields(logrus.Fields{
		"ipo_id": id,
		"field":  field,
		"value":  value,
	}).Debug("Missing or unparseable date replaced with today")
	return fallback
}
