package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

// ImportResult counts the records written by an import
type ImportResult struct {
	Properties       int `json:"properties"`
	BusinessPartners int `json:"business_partners"`
}

// DirectoryService serves the property and business partner lookups used
// to fill in a lease request
type DirectoryService interface {
	ListProperties(ctx context.Context, availableOnly bool) ([]entity.Property, error)
	GetProperty(ctx context.Context, id string) (*entity.Property, error)
	ListBusinessPartners(ctx context.Context, search string) ([]entity.BusinessPartner, error)
	Import(ctx context.Context, dir entity.Directory) (*ImportResult, error)
}

type directoryServiceImpl struct {
	repo      port.DirectoryRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(repo port.DirectoryRepository, txManager port.TransactionManager, logger Logger) DirectoryService {
	return &directoryServiceImpl{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *directoryServiceImpl) ListProperties(ctx context.Context, availableOnly bool) ([]entity.Property, error) {
	return s.repo.ListProperties(ctx, availableOnly)
}

func (s *directoryServiceImpl) GetProperty(ctx context.Context, id string) (*entity.Property, error) {
	return s.repo.GetProperty(ctx, strings.TrimSpace(id))
}

func (s *directoryServiceImpl) ListBusinessPartners(ctx context.Context, search string) ([]entity.BusinessPartner, error) {
	return s.repo.ListBusinessPartners(ctx, search)
}

// Import validates the whole batch first and then writes it in one
// transaction, so a bad record leaves the directory untouched
func (s *directoryServiceImpl) Import(ctx context.Context, dir entity.Directory) (*ImportResult, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for i := range dir.Properties {
			if err := s.repo.UpsertProperty(txCtx, &dir.Properties[i]); err != nil {
				return fmt.Errorf("property %s: %w", dir.Properties[i].ID, err)
			}
			result.Properties++
		}
		for i := range dir.BusinessPartners {
			if err := s.repo.UpsertBusinessPartner(txCtx, &dir.BusinessPartners[i]); err != nil {
				return fmt.Errorf("business partner %s: %w", dir.BusinessPartners[i].ID, err)
			}
			result.BusinessPartners++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Directory import failed", "error", err)
		return nil, err
	}

	s.logger.Info("Directory imported", "properties", result.Properties, "business_partners", result.BusinessPartners)
	return result, nil
}
