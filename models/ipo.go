package models

import (
	"encoding/json"
	"time"
)

// ISOMillis is the timestamp layout the backend expects, e.g. 2024-01-05T00:00:00.000Z
const ISOMillis = "2006-01-02T15:04:05.000Z"

// IPOType classifies an issue as a mainboard or SME listing
type IPOType string

const (
	IPOTypeMainboard IPOType = "MAINBOARD"
	IPOTypeSME       IPOType = "SME"
)

// IPOStatus is the lifecycle stage of an IPO
type IPOStatus string

const (
	StatusUpcoming  IPOStatus = "UPCOMING"
	StatusOpen      IPOStatus = "OPEN"
	StatusClosed    IPOStatus = "CLOSED"
	StatusListed    IPOStatus = "LISTED"
	StatusCancelled IPOStatus = "CANCELLED"
)

var statusRank = map[IPOStatus]int{
	StatusUpcoming: 0,
	StatusOpen:     1,
	StatusClosed:   2,
	StatusListed:   3,
}

// IsValid reports whether s is a known lifecycle status
func (s IPOStatus) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is possible
func (s IPOStatus) IsTerminal() bool {
	return s == StatusListed || s == StatusCancelled
}

// AllowsAllotment reports whether the allotment flag and registrar fields apply to s
func (s IPOStatus) AllowsAllotment() bool {
	return s == StatusClosed || s == StatusListed
}

// CanTransitionTo enforces the forward-only lifecycle:
// UPCOMING -> OPEN -> CLOSED -> LISTED, any non-terminal status -> CANCELLED.
func (s IPOStatus) CanTransitionTo(next IPOStatus) bool {
	if s == next {
		return true
	}
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// GMPEntry is one grey market premium observation
type GMPEntry struct {
	Price  float64   `json:"price"`
	Kostak string    `json:"kostak"`
	Date   time.Time `json:"date"`
}

// MarshalJSON renders the date in ISOMillis, as the backend stores it
func (g GMPEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price  float64 `json:"price"`
		Kostak string  `json:"kostak"`
		Date   string  `json:"date"`
	}{g.Price, g.Kostak, g.Date.UTC().Format(ISOMillis)})
}

// Subscription holds subscription multiples per investor category
type Subscription struct {
	QIB      float64 `json:"qib"`
	NII      float64 `json:"nii"`
	BNII     float64 `json:"bnii"`
	SNII     float64 `json:"snii"`
	Retail   float64 `json:"retail"`
	Employee float64 `json:"employee"`
	Total    float64 `json:"total"`
}

// Financials holds optional, free-entry company financials
type Financials struct {
	Revenue   float64 `json:"revenue"`
	Profit    float64 `json:"profit"`
	EPS       float64 `json:"eps"`
	Valuation string  `json:"valuation"`
}

// ListingInfo holds the listing-day outcome of a listed IPO
type ListingInfo struct {
	ListingPrice float64 `json:"listing_price"`
	ListingGain  float64 `json:"listing_gain"`
	DayHigh      float64 `json:"day_high"`
	DayLow       float64 `json:"day_low"`
}

// IPOViewModel is the flat canonical record an edit form operates on.
// Every field is always populated; json names match the dashboard form fields.
type IPOViewModel struct {
	ID          string    `json:"id,omitempty"`
	CompanyName string    `json:"companyName" validate:"required,min=3"`
	Slug        string    `json:"slug"`
	Icon        string    `json:"icon"`
	IPOType     IPOType   `json:"ipoType" validate:"required,oneof=MAINBOARD SME"`
	Status      IPOStatus `json:"status" validate:"required,oneof=UPCOMING OPEN CLOSED LISTED CANCELLED"`

	SubscriptionQIB      float64 `json:"subscription_qib" validate:"gte=0"`
	SubscriptionNII      float64 `json:"subscription_nii" validate:"gte=0"`
	SubscriptionBNII     float64 `json:"subscription_bnii" validate:"gte=0"`
	SubscriptionSNII     float64 `json:"subscription_snii" validate:"gte=0"`
	SubscriptionRetail   float64 `json:"subscription_retail" validate:"gte=0"`
	SubscriptionEmployee float64 `json:"subscription_employee" validate:"gte=0"`
	SubscriptionTotal    float64 `json:"subscription_total" validate:"gte=0"`

	// Latest GMP only; may be negative when the grey market trades at a discount
	GMP float64 `json:"gmp"`

	OpenDate      time.Time `json:"open_date"`
	CloseDate     time.Time `json:"close_date"`
	ListingDate   time.Time `json:"listing_date"`
	RefundDate    time.Time `json:"refund_date"`
	AllotmentDate time.Time `json:"allotment_date"`

	LotSize        int     `json:"lot_size" validate:"gte=0"`
	LotPrice       float64 `json:"lot_price" validate:"gte=0"`
	MinPrice       float64 `json:"min_price" validate:"gte=0"`
	MaxPrice       float64 `json:"max_price" validate:"gte=0"`
	BSECodeNSECode string  `json:"bse_code_nse_code"`
	IssueSize      string  `json:"issueSize"`
	IsAllotmentOut bool    `json:"isAllotmentOut"`

	RHPPdf        string `json:"rhp_pdf"`
	DRHPPdf       string `json:"drhp_pdf"`
	RegistrarName string `json:"registrarName"`
	RegistrarLink string `json:"registrarLink"`

	FinancialsRevenue   float64 `json:"financials_revenue"`
	FinancialsProfit    float64 `json:"financials_profit"`
	FinancialsEPS       float64 `json:"financials_eps"`
	FinancialsValuation string  `json:"financials_valuation"`

	ListingPrice   float64 `json:"listing_price" validate:"gte=0"`
	ListingDayHigh float64 `json:"listing_day_high" validate:"gte=0"`
	ListingDayLow  float64 `json:"listing_day_low" validate:"gte=0"`
}

// IPOPayload is the nested shape sent to the backend on create and update.
// It carries no flat intermediate fields and no icon; the icon travels as an Attachment.
type IPOPayload struct {
	CompanyName    string       `json:"companyName"`
	Slug           string       `json:"slug"`
	IPOType        IPOType      `json:"ipoType"`
	Status         IPOStatus    `json:"status"`
	Subscription   Subscription `json:"subscription"`
	GMP            []GMPEntry   `json:"gmp"`
	OpenDate       time.Time    `json:"open_date"`
	CloseDate      time.Time    `json:"close_date"`
	ListingDate    time.Time    `json:"listing_date"`
	RefundDate     time.Time    `json:"refund_date"`
	AllotmentDate  time.Time    `json:"allotment_date"`
	LotSize        int          `json:"lot_size"`
	LotPrice       float64      `json:"lot_price"`
	MinPrice       float64      `json:"min_price"`
	MaxPrice       float64      `json:"max_price"`
	BSECodeNSECode string       `json:"bse_code_nse_code"`
	IssueSize      string       `json:"issueSize"`
	IsAllotmentOut bool         `json:"isAllotmentOut"`
	RHPPdf         string       `json:"rhp_pdf"`
	DRHPPdf        string       `json:"drhp_pdf"`
	RegistrarName  string       `json:"registrarName"`
	RegistrarLink  string       `json:"registrarLink"`
	Financials     Financials   `json:"financials"`
	ListingInfo    ListingInfo  `json:"listing_info"`
}

// Attachment is a binary file sent as its own multipart part
type Attachment struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
}

// IsEmpty reports whether there is nothing to upload
func (a *Attachment) IsEmpty() bool {
	return a == nil || len(a.Data) == 0
}

// IPOTableRow is a rendered row of an IPO table with its derived columns
type IPOTableRow struct {
	ID                string    `json:"id"`
	CompanyName       string    `json:"companyName"`
	Slug              string    `json:"slug"`
	Icon              string    `json:"icon"`
	IPOType           IPOType   `json:"ipoType"`
	Status            IPOStatus `json:"status"`
	SuggestedStatus   IPOStatus `json:"suggestedStatus"`
	GMP               float64   `json:"gmp"`
	LotSize           int       `json:"lot_size"`
	LotPrice          float64   `json:"lot_price"`
	IssueSize         string    `json:"issueSize"`
	SubscriptionTotal float64   `json:"subscription_total"`
	EstimatedProfit   float64   `json:"est_profit"`
	GainSign          string    `json:"gain_sign"`
	GainPercent       *float64  `json:"gain_percent"`
	GainPercentLabel  string    `json:"gain_percent_label"`
	GMPPercent        *float64  `json:"gmp_percent"`
	ListingPrice      float64   `json:"listing_price"`
	ListingGain       *float64  `json:"listing_gain"`
	ListingGainPct    *float64  `json:"listing_gain_percent"`
	IsAllotmentOut    bool      `json:"isAllotmentOut"`
	RegistrarName     string    `json:"registrarName"`
	OpenDate          time.Time `json:"open_date"`
	CloseDate         time.Time `json:"close_date"`
	AllotmentDate     time.Time `json:"allotment_date"`
	ListingDate       time.Time `json:"listing_date"`
}
