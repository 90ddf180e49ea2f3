// AngelaMos | 2026
// service.go

package category

import (
	"context"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Category, error) {
	return s.repo.GetByID(ctx, strings.ToLower(strings.TrimSpace(id)))
}

func (s *Service) Counts(ctx context.Context) ([]Count, error) {
	return s.repo.Counts(ctx)
}
