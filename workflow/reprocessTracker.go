package workflow

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrReprocessAlreadyRunning = errors.New("reprocess already running for tenant")

const (
	ReprocessStatusIdle      = "idle"
	ReprocessStatusRunning   = "running"
	ReprocessStatusCompleted = "completed"
	ReprocessStatusFailed    = "failed"
)

type ReprocessError struct {
	PurchaseOrderId int    `json:"purchase_order_id"`
	OrderNumber     string `json:"order_number"`
	Message         string `json:"message"`
	Critical        bool   `json:"critical"`
}

type ReprocessProgress struct {
	RunId      string           `json:"run_id,omitempty"`
	TenantId   string           `json:"tenant_id,omitempty"`
	Status     string           `json:"status"`
	TotalPOs   int              `json:"total_pos"`
	Processed  int              `json:"processed"`
	Repaired   int              `json:"repaired"`
	Reindexed  int              `json:"reindexed"`
	Errors     []ReprocessError `json:"errors"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

func (p *ReprocessProgress) clone() ReprocessProgress {
	c := *p
	c.Errors = append([]ReprocessError{}, p.Errors...)
	return c
}

// ReprocessTracker holds at most one running reprocess per tenant and keeps finished
// runs pollable for the retention period.
type ReprocessTracker struct {
	mu       sync.Mutex
	running  map[string]*ReprocessProgress
	finished *expirable.LRU[string, *ReprocessProgress]
}

func NewReprocessTracker(retention time.Duration) *ReprocessTracker {
	return &ReprocessTracker{
		running:  make(map[string]*ReprocessProgress),
		finished: expirable.NewLRU[string, *ReprocessProgress](1024, nil, retention),
	}
}

// begin registers a run. When one is already running it returns that run's snapshot
// and ErrReprocessAlreadyRunning.
func (t *ReprocessTracker) begin(tenantId string, runId string) (ReprocessProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.running[tenantId]; ok {
		return p.clone(), ErrReprocessAlreadyRunning
	}
	now := time.Now().UTC()
	p := &ReprocessProgress{
		RunId:     runId,
		TenantId:  tenantId,
		Status:    ReprocessStatusRunning,
		Errors:    []ReprocessError{},
		StartedAt: &now,
	}
	t.running[tenantId] = p
	t.finished.Remove(tenantId)
	return p.clone(), nil
}

func (t *ReprocessTracker) update(tenantId string, fn func(p *ReprocessProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.running[tenantId]; ok {
		fn(p)
	}
}

func (t *ReprocessTracker) finish(tenantId string, status string) ReprocessProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.running[tenantId]
	if !ok {
		return ReprocessProgress{Status: ReprocessStatusIdle, Errors: []ReprocessError{}}
	}
	now := time.Now().UTC()
	p.Status = status
	p.FinishedAt = &now
	delete(t.running, tenantId)
	t.finished.Add(tenantId, p)
	return p.clone()
}

// Status returns the running or recently finished run, or an idle snapshot.
func (t *ReprocessTracker) Status(tenantId string) ReprocessProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.running[tenantId]; ok {
		return p.clone()
	}
	if p, ok := t.finished.Get(tenantId); ok {
		return p.clone()
	}
	return ReprocessProgress{Status: ReprocessStatusIdle, Errors: []ReprocessError{}}
}
