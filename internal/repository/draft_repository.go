package repository

import (
	"sync"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/models"
)

// DraftRepository keeps open drafts in memory. Drafts do not survive a
// restart.
type DraftRepository interface {
	Save(d *models.Draft)
	GetByID(id string) (*models.Draft, bool)
	Delete(id string)
	ListUpdatedBefore(t time.Time) []*models.Draft
	Count() int
}

type draftRepository struct {
	mu     sync.RWMutex
	drafts map[string]*models.Draft
}

func NewDraftRepository() DraftRepository {
	return &draftRepository{drafts: make(map[string]*models.Draft)}
}

func (r *draftRepository) Save(d *models.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.ID] = d
}

func (r *draftRepository) GetByID(id string) (*models.Draft, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drafts[id]
	return d, ok
}

func (r *draftRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
}

func (r *draftRepository) ListUpdatedBefore(t time.Time) []*models.Draft {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Draft
	for _, d := range r.drafts {
		if d.UpdatedAt.Before(t) {
			out = append(out, d)
		}
	}
	return out
}

func (r *draftRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drafts)
}
