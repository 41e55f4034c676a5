package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

const registrarCacheKey = "registrars:list"

var (
	registrarListKeys = []string{"registrars", "data"}
	registrarItemKeys = []string{"registrar"}
)

// RegistrarService manages the registrar directory. It also serves as the
// RegistrarDirectory the IPO form resolves registrar links from.
type RegistrarService struct {
	client    *BackendClient
	validator *ValidationService
	cache     *CacheService
	cacheTTL  time.Duration

	mutex     sync.RWMutex
	directory []models.Registrar
	loadedAt  time.Time

	logger *logrus.Entry
}

// NewRegistrarService creates a registrar service whose list is cached for cacheTTL
func NewRegistrarService(client *BackendClient, validator *ValidationService, cache *CacheService, cacheTTL time.Duration) *RegistrarService {
	if validator == nil {
		validator = NewValidationService(nil)
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &RegistrarService{
		client:    client,
		validator: validator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logrus.WithField("component", "RegistrarService"),
	}
}

// List returns all registrars, from cache when possible
func (s *RegistrarService) List(ctx context.Context) ([]models.Registrar, error) {
	if cached, found := s.cache.Get(registrarCacheKey); found {
		if registrars, ok := cached.([]models.Registrar); ok {
			return registrars, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh reloads the directory from the backend
func (s *RegistrarService) Refresh(ctx context.Context) ([]models.Registrar, error) {
	data, err := s.client.List(ctx, ResourceRegistrars, nil)
	if err != nil {
		return nil, err
	}
	list, err := models.DecodeList[models.Registrar](data, registrarListKeys...)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryProcessing, "DECODE_FAILED", "RegistrarService", "Refresh", false)
	}

	registrars := list.Data
	if registrars == nil {
		registrars = []models.Registrar{}
	}
	s.cache.SetWithTTL(registrarCacheKey, registrars, s.cacheTTL)

	s.mutex.Lock()
	s.directory = registrars
	s.loadedAt = time.Now()
	s.mutex.Unlock()

	s.logger.WithField("count", len(registrars)).Debug("Registrar directory refreshed")
	return registrars, nil
}

// Resolve implements RegistrarDirectory over the last loaded directory
func (s *RegistrarService) Resolve(name string) (models.Registrar, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return StaticRegistrarDirectory(s.directory).Resolve(name)
}

// Directory makes sure the directory is loaded and returns a snapshot of it
func (s *RegistrarService) Directory(ctx context.Context) (RegistrarDirectory, error) {
	registrars, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return StaticRegistrarDirectory(registrars), nil
}

// LoadedAt returns when the directory was last fetched
func (s *RegistrarService) LoadedAt() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loadedAt
}

// Create validates and adds a registrar, with an optional logo file
func (s *RegistrarService) Create(ctx context.Context, r models.Registrar, logo *models.Attachment) (models.Registrar, error) {
	return s.submit(ctx, "Create", "", r, logo)
}

// Update validates and replaces a registrar. A new logo file replaces the stored logo.
func (s *RegistrarService) Update(ctx context.Context, id string, r models.Registrar, logo *models.Attachment) (models.Registrar, error) {
	return s.submit(ctx, "Update", id, r, logo)
}

func (s *RegistrarService) submit(ctx context.Context, operation, id string, r models.Registrar, logo *models.Attachment) (models.Registrar, error) {
	if err := s.validator.ValidateRegistrar(r); err != nil {
		return models.Registrar{}, asValidationFailure(err, "RegistrarService", operation)
	}
	body, err := EncodeRegistrar(r, logo)
	if err != nil {
		return models.Registrar{}, shared.WrapError(err, shared.ErrorCategoryProcessing, "ENCODE_FAILED", "RegistrarService", operation, false)
	}

	var data []byte
	if id == "" {
		data, err = s.client.Create(ctx, ResourceRegistrars, body)
	} else {
		data, err = s.client.Update(ctx, ResourceRegistrars, id, body)
	}
	if err != nil {
		return models.Registrar{}, err
	}
	s.invalidate()

	saved := r
	saved.ID = id
	if item, err := models.DecodeItem(data, registrarItemKeys...); err == nil {
		var decoded models.Registrar
		if json.Unmarshal(item, &decoded) == nil && decoded.Name != "" {
			saved = decoded
		}
	}
	s.logger.WithFields(logrus.Fields{"operation": operation, "registrar": saved.Name}).Info("Registrar saved")
	return saved, nil
}

// Delete removes a registrar. IPO records naming it keep the name; the link is a weak reference.
func (s *RegistrarService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, ResourceRegistrars, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *RegistrarService) invalidate() {
	s.cache.Delete(registrarCacheKey)
}
