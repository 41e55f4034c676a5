package services

import (
	"context"
	"encoding/json"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

var (
	userListKeys = []string{"users", "customers", "data"}
	userItemKeys = []string{"user"}
)

// UserService manages platform users and their PAN documents
type UserService struct {
	client    *BackendClient
	validator *ValidationService
	logger    *logrus.Entry
}

// NewUserService creates a user service
func NewUserService(client *BackendClient, validator *ValidationService) *UserService {
	if validator == nil {
		validator = NewValidationService(nil)
	}
	return &UserService{
		client:    client,
		validator: validator,
		logger:    logrus.WithField("component", "UserService"),
	}
}

// List returns every platform user
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, OpList)
}

// Customers returns users with the customer role
func (s *UserService) Customers(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, OpCustomers)
}

func (s *UserService) list(ctx context.Context, op Operation) ([]models.User, error) {
	data, err := s.client.Do(ctx, BackendCall{Resource: ResourceUsers, Operation: op})
	if err != nil {
		return nil, err
	}
	list, err := models.DecodeList[models.User](data, userListKeys...)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "UserService", string(op), false)
	}
	if list.Data == nil {
		return []models.User{}, nil
	}
	return list.Data, nil
}

// Get returns one user
func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	data, err := s.client.Get(ctx, ResourceUsers, id)
	if err != nil {
		return models.User{}, err
	}
	return decodeUser(data, "Get")
}

// Update validates and saves the editable fields of a user
func (s *UserService) Update(ctx context.Context, id string, update models.UserUpdate) (models.User, error) {
	if err := s.validator.ValidateUserUpdate(update); err != nil {
		return models.User{}, asValidationFailure(err, "UserService", "Update")
	}
	body, err := EncodeJSON(update)
	if err != nil {
		return models.User{}, err
	}
	data, err := s.client.Update(ctx, ResourceUsers, id, body)
	if err != nil {
		return models.User{}, err
	}
	s.logger.WithField("user_id", id).Info("User updated")

	user, err := decodeUser(data, "Update")
	if err != nil || user.ID == "" {
		return models.User{ID: id, Name: update.Name, Email: update.Email, PhoneNumber: update.PhoneNumber, Role: update.Role}, nil
	}
	return user, nil
}

// UpdatePAN validates and replaces the PAN documents of a user
func (s *UserService) UpdatePAN(ctx context.Context, id string, docs []models.PANDocument) (models.User, error) {
	if err := s.validator.ValidatePANDocuments(docs); err != nil {
		return models.User{}, asValidationFailure(err, "UserService", "UpdatePAN")
	}
	if docs == nil {
		docs = []models.PANDocument{}
	}
	body, err := EncodeJSON(map[string][]models.PANDocument{"panDocuments": docs})
	if err != nil {
		return models.User{}, err
	}
	data, err := s.client.Do(ctx, BackendCall{Resource: ResourceUsers, Operation: OpUpdatePAN, ID: id, Body: &body})
	if err != nil {
		return models.User{}, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": id, "documents": len(docs)}).Info("User PAN documents updated")

	user, err := decodeUser(data, "UpdatePAN")
	if err != nil || user.ID == "" {
		return models.User{ID: id, PANDocuments: docs}, nil
	}
	return user, nil
}

// Delete removes a user
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, ResourceUsers, id); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("User deleted")
	return nil
}

func decodeUser(data []byte, operation string) (models.User, error) {
	item, err := models.DecodeItem(data, userItemKeys...)
	if err != nil {
		return models.User{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "UserService", operation, false)
	}
	var user models.User
	if err := json.Unmarshal(item, &user); err != nil {
		return models.User{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "UserService", operation, false)
	}
	return user, nil
}
