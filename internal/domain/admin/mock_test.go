package admin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errBackend = errors.New("connection refused")

// mockStore backs all three repositories so a transaction can be rolled
// back as one snapshot.
type mockStore struct {
	mu          sync.Mutex
	profiles    map[uuid.UUID]*Profile
	centers     []*Center
	invitations map[uuid.UUID]*Invitation
	promoteErr  error
	deleteErr   error
	err         error
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles:    make(map[uuid.UUID]*Profile),
		invitations: make(map[uuid.UUID]*Invitation),
	}
}

// inTx runs fn and restores the profile and invitation maps if it fails.
func (m *mockStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	profiles := make(map[uuid.UUID]*Profile, len(m.profiles))
	for k, v := range m.profiles {
		cp := *v
		profiles[k] = &cp
	}
	invitations := make(map[uuid.UUID]*Invitation, len(m.invitations))
	for k, v := range m.invitations {
		invitations[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.profiles, m.invitations = profiles, invitations
		m.mu.Unlock()
		return err
	}
	return nil
}

type mockProfiles struct{ *mockStore }

func (m mockProfiles) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.profiles[p.ID]; ok {
		return ErrConflict
	}
	p.CreatedAt = time.Now()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m mockProfiles) GetByID(_ context.Context, id uuid.UUID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m mockProfiles) List(_ context.Context, limit, offset int) ([]*Profile, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var all []*Profile
	for _, p := range m.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m mockProfiles) PromoteToAdmin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.promoteErr != nil {
		return m.promoteErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Role = "admin"
	return nil
}

type mockCenters struct{ *mockStore }

func (m mockCenters) Create(_ context.Context, c *Center) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.centers {
		if existing.Name == c.Name {
			return ErrConflict
		}
	}
	c.ID = len(m.centers) + 1
	c.CreatedAt = time.Now()
	cp := *c
	m.centers = append(m.centers, &cp)
	return nil
}

func (m mockCenters) List(_ context.Context) ([]*Center, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := append([]*Center{}, m.centers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockInvitations struct{ *mockStore }

func (m mockInvitations) Create(_ context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m mockInvitations) GetByToken(_ context.Context, token string) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, inv := range m.invitations {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInvitationNotFound
}

func (m mockInvitations) ListPending(_ context.Context, now time.Time, limit, offset int) ([]*Invitation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Invitation
	for _, inv := range m.invitations {
		if !inv.Expired(now) {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (m mockInvitations) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.invitations, id)
	return nil
}

func (m mockInvitations) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for id, inv := range m.invitations {
		if inv.Expired(before) {
			delete(m.invitations, id)
			n++
		}
	}
	return n, nil
}
