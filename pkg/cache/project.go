package cache

import (
	"context"
	"encoding/json"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/observability"
)

// ProjectStore persists full project state blobs in a Cache backend. It is
// the durable fallback behind the persistence coordinator: written after
// every save attempt and consulted on load when the remote store fails.
//
// Blobs are structurally validated on read. A blob that does not parse, or
// parses but does not describe the requested project, is cleared and
// reported as a miss so a bad cache can never crash the load path.
type ProjectStore struct {
	backend Cache
}

// NewProjectStore wraps a cache backend.
func NewProjectStore(backend Cache) *ProjectStore {
	if backend == nil {
		backend = NewNullCache()
	}
	return &ProjectStore{backend: backend}
}

func projectKey(projectID string) string {
	return "project:" + projectID
}

// Get loads and validates the cached state for a project. The second
// return is false on a miss, including cleared corrupt blobs.
func (s *ProjectStore) Get(ctx context.Context, projectID string) (*document.State, bool, error) {
	data, hit, err := s.backend.Get(ctx, projectKey(projectID))
	if err != nil || !hit {
		return nil, false, err
	}

	state, err := decodeState(data, projectID)
	if err != nil {
		// Corrupt blob: clear it, surface a miss.
		_ = s.backend.Delete(ctx, projectKey(projectID))
		observability.Cache().OnCacheMiss(ctx, "project")
		return nil, false, nil
	}
	observability.Cache().OnCacheHit(ctx, "project")
	return state, true, nil
}

// Set writes the full project state blob. Entries do not expire: the
// fallback must survive arbitrarily long offline periods.
func (s *ProjectStore) Set(ctx context.Context, projectID string, state *document.State) error {
	if state == nil || state.Project == nil {
		return errors.New(errors.ErrCodeValidation, "refusing to cache state without a project")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, projectKey(projectID), data, 0); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "project", len(data))
	return nil
}

// Remove deletes the cached blob for a project.
func (s *ProjectStore) Remove(ctx context.Context, projectID string) error {
	return s.backend.Delete(ctx, projectKey(projectID))
}

// decodeState parses and structurally validates a cached blob.
func decodeState(data []byte, projectID string) (*document.State, error) {
	var state document.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidCache, err, "cached blob does not parse")
	}
	if state.Project == nil {
		return nil, errors.New(errors.ErrCodeInvalidCache, "cached blob has no project")
	}
	if state.Project.ID != projectID {
		return nil, errors.New(errors.ErrCodeInvalidCache, "cached blob belongs to project %s, wanted %s", state.Project.ID, projectID)
	}
	// Referential spot checks: entities must reference collections that
	// exist in the same blob.
	for _, a := range state.Animations {
		if state.ElementByID(a.ElementID) == nil {
			return nil, errors.New(errors.ErrCodeInvalidCache, "animation %s references missing element %s", a.ID, a.ElementID)
		}
	}
	for _, k := range state.Keyframes {
		if state.AnimationByID(k.AnimationID) == nil {
			return nil, errors.New(errors.ErrCodeInvalidCache, "keyframe %s references missing animation %s", k.ID, k.AnimationID)
		}
	}
	return &state, nil
}
