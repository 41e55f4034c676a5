package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// ValidationService checks form submissions before anything is sent to the backend
type ValidationService struct {
	validate *validator.Validate
	metrics  *shared.Metrics
	logger   *logrus.Entry
}

// NewValidationService creates a validator that reports errors by json field name
func NewValidationService(metrics *shared.Metrics) *ValidationService {
	v := validator.New()

	v.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return panPattern.MatchString(fl.Field().String())
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(registrarRequirement, models.IPOViewModel{})

	return &ValidationService{
		validate: v,
		metrics:  metrics,
		logger:   logrus.WithField("component", "ValidationService"),
	}
}

// registrarRequirement makes registrar name and link mandatory once an issue has closed
func registrarRequirement(sl validator.StructLevel) {
	vm := sl.Current().Interface().(models.IPOViewModel)
	if !vm.Status.AllowsAllotment() {
		return
	}
	if strings.TrimSpace(vm.RegistrarName) == "" {
		sl.ReportError(vm.RegistrarName, "registrarName", "RegistrarName", "registrar_required", "")
	}
	if strings.TrimSpace(vm.RegistrarLink) == "" {
		sl.ReportError(vm.RegistrarLink, "registrarLink", "RegistrarLink", "registrar_required", "")
	}
}

// ValidateIPOForm validates a complete IPO form state
func (s *ValidationService) ValidateIPOForm(vm models.IPOViewModel) error {
	return s.check("ipo", vm)
}

// ValidateRegistrar validates a registrar form
func (s *ValidationService) ValidateRegistrar(r models.Registrar) error {
	return s.check("registrar", r)
}

// ValidateUserUpdate validates the editable user fields
func (s *ValidationService) ValidateUserUpdate(u models.UserUpdate) error {
	return s.check("user", u)
}

// ValidatePANDocuments validates every PAN document of a user
func (s *ValidationService) ValidatePANDocuments(docs []models.PANDocument) error {
	var fields shared.ValidationErrors
	for i, doc := range docs {
		err := s.validate.Struct(doc)
		if err == nil {
			continue
		}
		for _, fe := range toFieldErrors(err) {
			fe.Field = fmt.Sprintf("panDocuments[%d].%s", i, fe.Field)
			fields = append(fields, fe)
		}
	}
	if len(fields) > 0 {
		s.metrics.ObserveValidationFailure("pan")
		return fields
	}
	return nil
}

func (s *ValidationService) check(form string, v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	fields := toFieldErrors(err)
	s.metrics.ObserveValidationFailure(form)
	s.logger.WithFields(logrus.Fields{"form": form, "fields": len(fields)}).Debug("Submission rejected by validation")
	return fields
}

func toFieldErrors(err error) shared.ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.ValidationErrors{{Field: "", Message: err.Error()}}
	}
	fields := make(shared.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, shared.FieldError{
			Field:   fieldPath(fe),
			Message: validationMessage(fe),
		})
	}
	return fields
}

// fieldPath drops the struct name from the namespace, keeping nested paths like panDocuments[0].panNumber
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "registrar_required":
		return "is required when status is CLOSED or LISTED"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "pan":
		return "must be a PAN in the format AAAAA9999A"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
