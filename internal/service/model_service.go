package service

import (
	"context"
	"fmt"

	app_errors "docdash/internal/errors"
	"docdash/internal/llm"
)

// ModelService exposes the configured provider's models.
type ModelService struct {
	llm llm.LLMProvider
}

func NewModelService(llmProvider llm.LLMProvider) *ModelService {
	return &ModelService{llm: llmProvider}
}

// List returns the models the provider can serve.
func (s *ModelService) List(ctx context.Context) (*llm.ListModelsResponse, error) {
	models, err := s.llm.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", app_errors.ErrUpstream, s.llm.Name(), err)
	}
	return models, nil
}
