package service

import (
	"context"
	"fmt"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/port"
)

// DirectoryService exposes read-only department and user reference data.
type DirectoryService struct {
	repo port.DirectoryRepository
}

func NewDirectoryService(repo port.DirectoryRepository) *DirectoryService {
	return &DirectoryService{repo: repo}
}

func (s *DirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	departments, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w: %w", ErrPersistence, err)
	}
	return departments, nil
}

func (s *DirectoryService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w: %w", ErrPersistence, err)
	}
	return users, nil
}
