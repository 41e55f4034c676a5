package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// IPOCategories are the three IPO collections the dashboard manages
var IPOCategories = []Resource{ResourceMainboard, ResourceSME, ResourceListed}

// ParseCategory maps a URL segment to an IPO category
func ParseCategory(s string) (Resource, error) {
	switch Resource(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceMainboard:
		return ResourceMainboard, nil
	case ResourceSME:
		return ResourceSME, nil
	case ResourceListed:
		return ResourceListed, nil
	}
	return "", shared.NewServiceError(shared.ErrorCategoryNotFound, "UNKNOWN_CATEGORY",
		fmt.Sprintf("unknown IPO category %q", s), "IPOService", "ParseCategory", false, nil)
}

// DefaultIPOType is the type assumed for records of category that carry none
func DefaultIPOType(category Resource) models.IPOType {
	if category == ResourceSME {
		return models.IPOTypeSME
	}
	return models.IPOTypeMainboard
}

// listKeys are the envelope keys the backends use for IPO arrays
var listKeys = []string{"ipos", "mainboards", "smeIpos", "listedIpos", "data"}

// itemKeys are the envelope keys the backends use for a single IPO
var itemKeys = []string{"ipo", "mainboard", "smeIpo", "listedIpo"}

const defaultBackendLimit = 1000

// TableQuery is a table view request
type TableQuery struct {
	Status  string
	IPOType string
	Page    int
	Limit   int
	Search  string
	Sort    string
	Order   string
}

// backendQuery is the part of the query the backend understands. Only the mainboard
// list filters and pages server side; other lists are fetched whole.
func (q TableQuery) backendQuery(category Resource) url.Values {
	values := url.Values{}
	if category != ResourceMainboard {
		return values
	}
	if q.Status != "" && !strings.EqualFold(q.Status, "all") {
		values.Set("status", strings.ToUpper(q.Status))
	}
	if q.IPOType != "" {
		values.Set("ipoType", strings.ToUpper(q.IPOType))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	} else {
		values.Set("limit", strconv.Itoa(defaultBackendLimit))
	}
	return values
}

// RecordPage is a decoded backend list
type RecordPage struct {
	Records    []models.RawIPO
	Pagination *models.Pagination
}

// TablePage is one page of rendered table rows
type TablePage struct {
	Rows       []models.IPOTableRow `json:"rows"`
	Pagination models.Pagination    `json:"pagination"`
}

// SubmitResult reports the outcome of a create or update
type SubmitResult struct {
	Record  *models.IPOViewModel `json:"record,omitempty"`
	Message string               `json:"message,omitempty"`
	DraftID string               `json:"draftId,omitempty"`
}

// BulkDeleteResult reports which ids were removed
type BulkDeleteResult struct {
	Deleted []string            `json:"deleted"`
	Failed  []BulkDeleteFailure `json:"failed"`
}

// BulkDeleteFailure is one id that could not be removed
type BulkDeleteFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// FormSection is a part of an IPO record edited on its own screen
type FormSection string

const (
	SectionSubscription FormSection = "subscription"
	SectionListing      FormSection = "listing"
	SectionDocuments    FormSection = "documents"
)

// ParseFormSection validates a section name
func ParseFormSection(s string) (FormSection, error) {
	switch FormSection(strings.ToLower(strings.TrimSpace(s))) {
	case SectionSubscription:
		return SectionSubscription, nil
	case SectionListing:
		return SectionListing, nil
	case SectionDocuments:
		return SectionDocuments, nil
	}
	return "", shared.NewServiceError(shared.ErrorCategoryNotFound, "UNKNOWN_SECTION",
		fmt.Sprintf("unknown section %q", s), "IPOService", "ParseFormSection", false, nil)
}

// DraftSaver keeps submissions that could not reach the backend
type DraftSaver interface {
	SaveFailed(ctx context.Context, draft Draft) (string, error)
}

// IPOService reads and writes IPO records through the backend
type IPOService struct {
	client     *BackendClient
	normalizer *Normalizer
	validator  *ValidationService
	drafts     DraftSaver
	now        func() time.Time
	logger     *logrus.Entry
}

// NewIPOService creates an IPO service
func NewIPOService(client *BackendClient, normalizer *Normalizer, validator *ValidationService) *IPOService {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	if validator == nil {
		validator = NewValidationService(nil)
	}
	return &IPOService{
		client:     client,
		normalizer: normalizer,
		validator:  validator,
		now:        time.Now,
		logger:     logrus.WithField("component", "IPOService"),
	}
}

// SetDraftSaver enables saving failed submissions as drafts
func (s *IPOService) SetDraftSaver(drafts DraftSaver) {
	s.drafts = drafts
}

// SetClock overrides the time source used for derived values
func (s *IPOService) SetClock(now func() time.Time) {
	s.now = now
}

// Normalizer returns the normalizer used for reads and writes
func (s *IPOService) Normalizer() *Normalizer {
	return s.normalizer
}

// FetchRecords fetches the raw records of a category
func (s *IPOService) FetchRecords(ctx context.Context, category Resource, query TableQuery) (RecordPage, error) {
	data, err := s.client.List(ctx, category, query.backendQuery(category))
	if err != nil {
		return RecordPage{}, err
	}
	list, err := models.DecodeList[models.RawIPO](data, listKeys...)
	if err != nil {
		return RecordPage{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "IPOService", "FetchRecords", false)
	}
	return RecordPage{Records: list.Data, Pagination: list.Pagination}, nil
}

// ListTable fetches a category and renders its table rows
func (s *IPOService) ListTable(ctx context.Context, category Resource, query TableQuery) (TablePage, error) {
	page, err := s.FetchRecords(ctx, category, query)
	if err != nil {
		return TablePage{}, err
	}
	return s.BuildTable(category, page, query, s.now()), nil
}

// BuildTable normalizes records into rows, then applies search, filters, sort and,
// when the backend did not page the result, pagination.
func (s *IPOService) BuildTable(category Resource, page RecordPage, query TableQuery, now time.Time) TablePage {
	defaultType := DefaultIPOType(category)
	search := strings.ToLower(strings.TrimSpace(query.Search))
	status := models.IPOStatus(strings.ToUpper(strings.TrimSpace(query.Status)))
	ipoType := models.IPOType(strings.ToUpper(strings.TrimSpace(query.IPOType)))

	rows := make([]models.IPOTableRow, 0, len(page.Records))
	for _, raw := range page.Records {
		row := s.normalizer.ToTableRow(raw, defaultType, now)
		if search != "" && !strings.Contains(strings.ToLower(row.CompanyName), search) {
			continue
		}
		if status.IsValid() && row.Status != status {
			continue
		}
		if ipoType != "" && row.IPOType != ipoType {
			continue
		}
		rows = append(rows, row)
	}

	SortTableRows(rows, query.Sort, query.Order)

	if page.Pagination != nil {
		return TablePage{Rows: rows, Pagination: *page.Pagination}
	}
	return paginateRows(rows, query.Page, query.Limit)
}

func paginateRows(rows []models.IPOTableRow, page, limit int) TablePage {
	total := len(rows)
	if limit <= 0 {
		return TablePage{Rows: rows, Pagination: models.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: total, ItemsPerPage: total}}
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	if totalPages == 0 {
		totalPages = 1
	}
	pagination := models.Pagination{CurrentPage: page, TotalPages: totalPages, TotalItems: total, ItemsPerPage: limit}
	// Past the last page; also keeps (page-1)*limit from overflowing
	if page > totalPages {
		return TablePage{Rows: []models.IPOTableRow{}, Pagination: pagination}
	}
	start := (page - 1) * limit
	end := start + limit
	if end > total || end < start {
		end = total
	}
	return TablePage{
		Rows:       rows[start:end],
		Pagination: pagination,
	}
}

// SortTableRows orders rows by one of companyName, open_date, gmp, est_profit or
// subscription_total. Unknown keys leave the backend order. Ties keep their order.
func SortTableRows(rows []models.IPOTableRow, key, order string) {
	var less func(a, b models.IPOTableRow) bool
	switch key {
	case "companyName":
		less = func(a, b models.IPOTableRow) bool { return strings.ToLower(a.CompanyName) < strings.ToLower(b.CompanyName) }
	case "open_date":
		less = func(a, b models.IPOTableRow) bool { return a.OpenDate.Before(b.OpenDate) }
	case "gmp":
		less = func(a, b models.IPOTableRow) bool { return a.GMP < b.GMP }
	case "est_profit":
		less = func(a, b models.IPOTableRow) bool { return a.EstimatedProfit < b.EstimatedProfit }
	case "subscription_total":
		less = func(a, b models.IPOTableRow) bool { return a.SubscriptionTotal < b.SubscriptionTotal }
	default:
		return
	}
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// GetRaw fetches one record as returned by the backend
func (s *IPOService) GetRaw(ctx context.Context, category Resource, id string) (models.RawIPO, error) {
	if _, ok := LookupRoute(category, OpGet); !ok {
		return s.findInList(ctx, category, id)
	}
	data, err := s.client.Get(ctx, category, id)
	if err != nil {
		return models.RawIPO{}, err
	}
	item, err := models.DecodeItem(data, itemKeys...)
	if err != nil {
		return models.RawIPO{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "IPOService", "GetRaw", false)
	}
	var raw models.RawIPO
	if err := json.Unmarshal(item, &raw); err != nil {
		return models.RawIPO{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "IPOService", "GetRaw", false)
	}
	return raw, nil
}

// findInList reads a record from its category list, for backends without a single-record read
func (s *IPOService) findInList(ctx context.Context, category Resource, id string) (models.RawIPO, error) {
	page, err := s.FetchRecords(ctx, category, TableQuery{})
	if err != nil {
		return models.RawIPO{}, err
	}
	for _, raw := range page.Records {
		if raw.String("id") == id || raw.String("_id") == id {
			return raw, nil
		}
	}
	return models.RawIPO{}, shared.NewServiceError(shared.ErrorCategoryNotFound, "IPO_NOT_FOUND",
		fmt.Sprintf("no %s record with id %s", category, id), "IPOService", "GetRaw", false, nil)
}

// GetForm loads a record as the view model an edit form starts from
func (s *IPOService) GetForm(ctx context.Context, category Resource, id string) (models.IPOViewModel, error) {
	raw, err := s.GetRaw(ctx, category, id)
	if err != nil {
		return models.IPOViewModel{}, err
	}
	vm := s.normalizer.ToViewModelWithType(raw, DefaultIPOType(category), s.now())
	if vm.ID == "" {
		vm.ID = id
	}
	return vm, nil
}

// Create validates and submits a new record
func (s *IPOService) Create(ctx context.Context, category Resource, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error) {
	if _, ok := LookupRoute(category, OpCreate); !ok {
		return SubmitResult{}, shared.NewServiceError(shared.ErrorCategoryValidation, "CREATE_NOT_SUPPORTED",
			fmt.Sprintf("%s records cannot be created here", category), "IPOService", "Create", false, nil)
	}
	vm = s.prepare(category, vm)
	if err := s.validator.ValidateIPOForm(vm); err != nil {
		return SubmitResult{}, asValidationFailure(err, "IPOService", "Create")
	}

	body, err := EncodeIPOPayload(s.normalizer.ToAPIPayload(vm, s.now()), icon)
	if err != nil {
		return SubmitResult{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "ENCODE_FAILED", "IPOService", "Create", false)
	}

	data, err := s.client.Create(ctx, category, body)
	if err != nil {
		return s.failSubmission(ctx, Draft{Category: category, Mode: DraftModeCreate, Form: vm, Icon: icon}, err)
	}

	s.logger.WithFields(logrus.Fields{"category": category, "company": vm.CompanyName}).Info("IPO created")
	return s.submitResult(category, data), nil
}

// Update validates and submits an edit. A status that moves backwards in the
// lifecycle relative to the stored record is rejected before anything is sent.
func (s *IPOService) Update(ctx context.Context, category Resource, id string, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error) {
	vm = s.prepare(category, vm)
	vm.ID = id
	if err := s.validator.ValidateIPOForm(vm); err != nil {
		return SubmitResult{}, asValidationFailure(err, "IPOService", "Update")
	}

	current, err := s.GetForm(ctx, category, id)
	if err != nil {
		return s.failSubmission(ctx, Draft{Category: category, Mode: DraftModeUpdate, RecordID: id, Form: vm, Icon: icon}, err)
	}
	if !current.Status.CanTransitionTo(vm.Status) {
		return SubmitResult{}, shared.NewServiceError(shared.ErrorCategoryConflict, "STATUS_REGRESSION",
			fmt.Sprintf("status cannot change from %s to %s", current.Status, vm.Status), "IPOService", "Update", false, nil).
			WithDetails(shared.ValidationErrors{{Field: "status", Message: fmt.Sprintf("cannot change from %s to %s", current.Status, vm.Status)}})
	}

	body, err := EncodeIPOPayload(s.normalizer.ToAPIPayload(vm, s.now()), icon)
	if err != nil {
		return SubmitResult{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "ENCODE_FAILED", "IPOService", "Update", false)
	}

	data, err := s.client.Update(ctx, category, id, body)
	if err != nil {
		return s.failSubmission(ctx, Draft{Category: category, Mode: DraftModeUpdate, RecordID: id, Form: vm, Icon: icon}, err)
	}

	s.logger.WithFields(logrus.Fields{"category": category, "ipo_id": id, "status": vm.Status}).Info("IPO updated")
	return s.submitResult(category, data), nil
}

// UpdateSection sends only one section of the record, as the subscription, listing
// and documents screens do
func (s *IPOService) UpdateSection(ctx context.Context, category Resource, id string, section FormSection, vm models.IPOViewModel) error {
	var partial map[string]interface{}
	switch section {
	case SectionSubscription:
		partial = map[string]interface{}{"subscription": models.Subscription{
			QIB:      vm.SubscriptionQIB,
			NII:      vm.SubscriptionNII,
			BNII:     vm.SubscriptionBNII,
			SNII:     vm.SubscriptionSNII,
			Retail:   vm.SubscriptionRetail,
			Employee: vm.SubscriptionEmployee,
			Total:    vm.SubscriptionTotal,
		}}
	case SectionListing:
		gain := 0.0
		if vm.ListingPrice != 0 && vm.LotPrice != 0 {
			gain = vm.ListingPrice - vm.LotPrice
		}
		partial = map[string]interface{}{"listing_info": models.ListingInfo{
			ListingPrice: vm.ListingPrice,
			ListingGain:  gain,
			DayHigh:      vm.ListingDayHigh,
			DayLow:       vm.ListingDayLow,
		}}
	case SectionDocuments:
		partial = map[string]interface{}{"rhp_pdf": vm.RHPPdf, "drhp_pdf": vm.DRHPPdf}
	default:
		return shared.NewServiceError(shared.ErrorCategoryNotFound, "UNKNOWN_SECTION",
			fmt.Sprintf("unknown section %q", section), "IPOService", "UpdateSection", false, nil)
	}

	var fields shared.ValidationErrors
	for name, value := range map[string]float64{
		"subscription_qib": vm.SubscriptionQIB, "subscription_nii": vm.SubscriptionNII,
		"subscription_retail": vm.SubscriptionRetail, "subscription_employee": vm.SubscriptionEmployee,
		"subscription_total": vm.SubscriptionTotal, "listing_price": vm.ListingPrice,
		"listing_day_high": vm.ListingDayHigh, "listing_day_low": vm.ListingDayLow,
	} {
		if value < 0 {
			fields = append(fields, shared.FieldError{Field: name, Message: "must be greater than or equal to 0"})
		}
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return shared.NewValidationError("IPOService", "UpdateSection", fields)
	}

	body, err := EncodeJSON(partial)
	if err != nil {
		return err
	}
	if _, err := s.client.Update(ctx, category, id, body); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"category": category, "ipo_id": id, "section": section}).Info("IPO section updated")
	return nil
}

// Delete removes one record
func (s *IPOService) Delete(ctx context.Context, category Resource, id string) error {
	if err := s.client.Delete(ctx, category, id); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"category": category, "ipo_id": id}).Info("IPO deleted")
	return nil
}

// BulkDelete removes several records. Where the backend has a bulk endpoint the
// call is all-or-nothing as reported by the server. Elsewhere ids are deleted one
// by one and every failure is reported next to the ids that went.
func (s *IPOService) BulkDelete(ctx context.Context, category Resource, ids []string) (BulkDeleteResult, error) {
	result := BulkDeleteResult{Deleted: []string{}, Failed: []BulkDeleteFailure{}}
	if len(ids) == 0 {
		return result, shared.NewValidationError("IPOService", "BulkDelete", shared.ValidationErrors{{Field: "ids", Message: "is required"}})
	}

	if SupportsBulkDelete(category) {
		if _, err := s.client.BulkDelete(ctx, category, ids); err != nil {
			for _, id := range ids {
				result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Error: err.Error()})
			}
			return result, err
		}
		result.Deleted = append(result.Deleted, ids...)
		return result, nil
	}

	var sampleErrors []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Error: err.Error()})
			sampleErrors = append(sampleErrors, err)
			continue
		}
		if err := s.client.Delete(ctx, category, id); err != nil {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Error: err.Error()})
			sampleErrors = append(sampleErrors, err)
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	if len(result.Failed) > 0 {
		summary := shared.BuildBatchProcessingErrorSummary(len(result.Deleted), len(result.Failed), sampleErrors)
		s.logger.WithField("category", category).Warn(summary)
		return result, shared.NewServiceError(shared.ErrorCategoryProcessing, "PARTIAL_DELETE", summary,
			"IPOService", "BulkDelete", false, nil).WithDetails(result)
	}
	return result, nil
}

// prepare fills the type a category implies when the form left it empty
func (s *IPOService) prepare(category Resource, vm models.IPOViewModel) models.IPOViewModel {
	if category == ResourceSME {
		vm.IPOType = models.IPOTypeSME
	} else if vm.IPOType == "" {
		vm.IPOType = models.IPOTypeMainboard
	}
	if vm.Status == "" {
		vm.Status = models.StatusUpcoming
	}
	return vm
}

func (s *IPOService) submitResult(category Resource, data []byte) SubmitResult {
	result := SubmitResult{Message: models.EnvelopeMessage(data)}
	item, err := models.DecodeItem(data, itemKeys...)
	if err != nil {
		return result
	}
	var raw models.RawIPO
	if err := json.Unmarshal(item, &raw); err != nil || !raw.Has("companyName") {
		return result
	}
	vm := s.normalizer.ToViewModelWithType(raw, DefaultIPOType(category), s.now())
	result.Record = &vm
	return result
}

// failSubmission keeps the form as a draft when the backend could not be reached
// or failed on its side, so the user can retry without re-entering it
func (s *IPOService) failSubmission(ctx context.Context, draft Draft, cause error) (SubmitResult, error) {
	if s.drafts == nil || isRetryingDraft(ctx) || !shared.IsRetryableError(cause) {
		return SubmitResult{}, cause
	}

	id, err := s.drafts.SaveFailed(ctx, draft)
	if err != nil {
		s.logger.WithError(err).Error("Failed to keep submission as draft")
		return SubmitResult{}, cause
	}

	var serviceErr *shared.ServiceError
	if errors.As(cause, &serviceErr) {
		serviceErr.WithDetails(map[string]string{"draftId": id})
	}
	s.logger.WithFields(logrus.Fields{
		"category": draft.Category,
		"mode":     draft.Mode,
		"draft_id": id,
	}).Warn("Submission failed, kept as draft")
	return SubmitResult{DraftID: id}, cause
}

// asValidationFailure turns field failures into a ServiceError the handlers map to 422
func asValidationFailure(err error, serviceName, operation string) error {
	if fields, ok := shared.AsValidationErrors(err); ok {
		return shared.NewValidationError(serviceName, operation, fields)
	}
	return err
}
