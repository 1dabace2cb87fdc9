package patient

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	centers  map[int]string
	err      error
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient), centers: make(map[int]string)}
}

func (m *mockRepo) visible(p *Patient, scope Scope) bool {
	return scope.All || (scope.CenterID != nil && *scope.CenterID == p.CenterID)
}

func (m *mockRepo) withCenter(p *Patient) *Patient {
	out := *p
	if name, ok := m.centers[p.CenterID]; ok {
		out.CenterName = &name
	}
	return &out
}

func (m *mockRepo) sorted(scope Scope) []*Patient {
	var out []*Patient
	for _, p := range m.patients {
		if m.visible(p, scope) {
			out = append(out, m.withCenter(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if m.err != nil {
		return m.err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID, scope Scope) (*Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.patients[id]
	if !ok || !m.visible(p, scope) {
		return nil, ErrNotFound
	}
	return m.withCenter(p), nil
}

func (m *mockRepo) List(_ context.Context, scope Scope, limit, offset int) ([]*Patient, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	all := m.sorted(scope)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) Each(_ context.Context, scope Scope, fn func(*Patient) error) error {
	if m.err != nil {
		return m.err
	}
	for _, p := range m.sorted(scope) {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRepo) Counts(_ context.Context, scope Scope, since time.Time) (*Dashboard, error) {
	if m.err != nil {
		return nil, m.err
	}
	d := &Dashboard{}
	byCenter := map[int]int{}
	for _, p := range m.sorted(scope) {
		d.Total++
		if !p.CreatedAt.Before(since) {
			d.LastWeek++
		}
		byCenter[p.CenterID]++
	}
	for id, n := range byCenter {
		cc := CenterCount{CenterID: id, Count: n}
		if name, ok := m.centers[id]; ok {
			cc.CenterName = &name
		}
		d.ByCenter = append(d.ByCenter, cc)
	}
	sort.Slice(d.ByCenter, func(i, j int) bool { return d.ByCenter[i].CenterID < d.ByCenter[j].CenterID })
	return d, nil
}

var errBackend = errors.New("connection refused")
