package activity

import (
	"context"
	"fmt"

	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/model"
)

// RefreshProjects replaces the cached project list with the server's.
func (s *Service) RefreshProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := s.remote.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	for _, p := range projects {
		if err := s.store.Put(ctx, localstore.TableProjects, p); err != nil {
			if localstore.IsUnavailable(err) {
				break
			}
			return nil, fmt.Errorf("caching project %s: %w", p.ID, err)
		}
	}
	return projects, nil
}

// Projects returns the cached projects, or the server's when nothing is cached.
func (s *Service) Projects(ctx context.Context) ([]model.Project, error) {
	projects, err := localstore.List[model.Project](ctx, s.store, localstore.TableProjects)
	if err != nil && !localstore.IsUnavailable(err) {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	if len(projects) > 0 {
		return projects, nil
	}
	return s.RefreshProjects(ctx)
}

// Project looks up one cached project.
func (s *Service) Project(ctx context.Context, projectID string) (model.Project, error) {
	p, err := localstore.GetAs[model.Project](ctx, s.store, localstore.TableProjects, projectID)
	if err != nil {
		return model.Project{}, fmt.Errorf("project %s: %w", projectID, err)
	}
	return p, nil
}
