package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"phenohub/internal/domain"
)

// ---- in-memory store ----

type memStore struct {
	mu        sync.Mutex
	providers map[int64]*domain.Provider
	cultivars map[int64]*domain.Cultivar
	reports   []domain.Report
	nextID    int64

	listErr       error
	providerFail  map[int64]error // UpdateProviderMetrics failures
	providerCalls int

	statsDelay  time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		providers:    map[int64]*domain.Provider{},
		cultivars:    map[int64]*domain.Cultivar{},
		providerFail: map[int64]error{},
	}
}

func (m *memStore) addProvider(id int64, name string) {
	m.providers[id] = &domain.Provider{ID: id, Name: name}
}

func (m *memStore) addCultivar(id int64, name string) {
	m.cultivars[id] = &domain.Cultivar{ID: id, Name: name}
}

func (m *memStore) addReport(pid, cid int64, st domain.ReportStatus, overall, shipping, vitality float64) int64 {
	m.nextID++
	m.reports = append(m.reports, domain.Report{
		ID: m.nextID, ProviderID: pid, CultivarID: cid, Status: st,
		Overall: overall, Shipping: shipping, Vitality: vitality,
	})
	return m.nextID
}

func (m *memStore) Live() bool { return true }

func (m *memStore) ListProviderIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return sortedKeys(m.providers), nil
}

func (m *memStore) ListCultivarIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return sortedKeys(m.cultivars), nil
}

func (m *memStore) ProviderStats(ctx context.Context, id int64) (domain.ScoreStats, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(m.statsDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats(func(r domain.Report) bool { return r.ProviderID == id }), nil
}

func (m *memStore) CultivarStats(ctx context.Context, id int64) (domain.ScoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats(func(r domain.Report) bool { return r.CultivarID == id }), nil
}

func (m *memStore) stats(match func(domain.Report) bool) domain.ScoreStats {
	var st domain.ScoreStats
	for _, r := range m.reports {
		if r.Status != domain.StatusPublished || !match(r) {
			continue
		}
		st.Count++
		st.Overall += r.Overall
		st.Shipping += r.Shipping
		st.Vitality += r.Vitality
	}
	if st.Count > 0 {
		n := float64(st.Count)
		st.Overall /= n
		st.Shipping /= n
		st.Vitality /= n
	}
	return st
}

func (m *memStore) UpdateProviderMetrics(ctx context.Context, id int64, pm domain.ProviderMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providerCalls++
	if err := m.providerFail[id]; err != nil {
		return err
	}
	p, ok := m.providers[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.AvgScore, p.ShippingScore, p.VitalityScore, p.ReportCount =
		pm.AvgScore, pm.ShippingScore, pm.VitalityScore, pm.ReportCount
	return nil
}

func (m *memStore) UpdateCultivarMetrics(ctx context.Context, id int64, cm domain.CultivarMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cultivars[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.AvgRating, c.ReportCount = cm.AvgRating, cm.ReportCount
	return nil
}

func (m *memStore) GetProvider(ctx context.Context, id int64) (domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return domain.Provider{}, domain.ErrNotFound
	}
	return *p, nil
}

func (m *memStore) ListProviders(ctx context.Context, limit int) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Provider
	for _, id := range sortedKeys(m.providers) {
		if len(out) == limit {
			break
		}
		out = append(out, *m.providers[id])
	}
	return out, nil
}

func (m *memStore) GetCultivar(ctx context.Context, id int64) (domain.Cultivar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cultivars[id]
	if !ok {
		return domain.Cultivar{}, domain.ErrNotFound
	}
	return *c, nil
}

func (m *memStore) ListCultivars(ctx context.Context, limit int) ([]domain.Cultivar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Cultivar
	for _, id := range sortedKeys(m.cultivars) {
		if len(out) == limit {
			break
		}
		out = append(out, *m.cultivars[id])
	}
	return out, nil
}

func (m *memStore) ListReports(ctx context.Context, q domain.ReportsQuery) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for i := len(m.reports) - 1; i >= 0 && len(out) < q.Limit; i-- {
		r := m.reports[i]
		if (q.ProviderID != 0 && r.ProviderID != q.ProviderID) ||
			(q.CultivarID != 0 && r.CultivarID != q.CultivarID) ||
			(q.Status != "" && r.Status != q.Status) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CreateReport(ctx context.Context, r domain.Report) (domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[r.ProviderID]; !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	if _, ok := m.cultivars[r.CultivarID]; !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	m.nextID++
	r.ID = m.nextID
	m.reports = append(m.reports, r)
	return r, nil
}

func (m *memStore) SetReportStatus(ctx context.Context, id int64, st domain.ReportStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.reports {
		if m.reports[i].ID == id {
			m.reports[i].Status = st
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.removeWhere(func(r domain.Report) bool { return want[r.ID] }), nil
}

func (m *memStore) PurgeReports(ctx context.Context, f domain.PurgeFilter) (int64, error) {
	return m.removeWhere(func(r domain.Report) bool {
		return (f.Status == "" || r.Status == f.Status) &&
			(f.ProviderID == 0 || r.ProviderID == f.ProviderID) &&
			(f.OlderThan.IsZero() || r.CreatedAt.Before(f.OlderThan))
	}), nil
}

func (m *memStore) removeWhere(drop func(domain.Report) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.reports[:0]
	var n int64
	for _, r := range m.reports {
		if drop(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.reports = kept
	return n
}

func sortedKeys[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- cache ----

type fakeCache struct {
	mu       sync.Mutex
	store    map[string][]byte
	prefixes []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
