package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

type fakeUserRepo struct {
	users        map[uuid.UUID]*domain.User
	successCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*domain.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) RecordFailedLogin(ctx context.Context, id uuid.UUID, max int, lockUntil time.Time) (int, error) {
	u := r.users[id]
	u.FailedLogins++
	if u.FailedLogins >= max {
		u.Status = domain.UserStatusLocked
		u.LockedUntil = &lockUntil
	}
	return u.FailedLogins, nil
}

func (r *fakeUserRepo) RecordSuccessfulLogin(ctx context.Context, id uuid.UUID) error {
	r.successCalls++
	u := r.users[id]
	u.FailedLogins = 0
	u.LockedUntil = nil
	if u.Status == domain.UserStatusLocked {
		u.Status = domain.UserStatusActive
	}
	return nil
}

// plainHasher prefixes instead of hashing; argon2 is covered in pkg/hash.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Verify(pw, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("bad hash")
	}
	return encoded == "hashed:"+pw, nil
}

type fakeTokens struct{}

func (fakeTokens) GenerateAccessToken(u *domain.User) (string, time.Time, error) {
	return "token-for-" + u.Email, time.Now().Add(time.Hour), nil
}

type fakeRevoker struct{ revoked map[string]time.Time }

func (f *fakeRevoker) Revoke(ctx context.Context, token string, exp time.Time) error {
	f.revoked[token] = exp
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendWelcomeEmail(ctx context.Context, to, name, role string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+"/"+role)
	return nil
}

type fakeFieldRepo struct{ fields map[uuid.UUID]*domain.Field }

func (r *fakeFieldRepo) Create(ctx context.Context, f *domain.Field) error {
	cp := *f
	r.fields[f.ID] = &cp
	return nil
}

func (r *fakeFieldRepo) GetByID(ctx context.Context, owner, id uuid.UUID) (*domain.Field, error) {
	f, ok := r.fields[id]
	if !ok || f.OwnerID != owner {
		return nil, fmt.Errorf("field %s: %w", id, repository.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFieldRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*domain.Field, error) {
	out := []*domain.Field{}
	for _, f := range r.fields {
		if f.OwnerID == owner {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFieldRepo) Update(ctx context.Context, f *domain.Field) error {
	if _, err := r.GetByID(ctx, f.OwnerID, f.ID); err != nil {
		return err
	}
	cp := *f
	r.fields[f.ID] = &cp
	return nil
}

func (r *fakeFieldRepo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, owner, id); err != nil {
		return err
	}
	delete(r.fields, id)
	return nil
}

type fakeDeviceRepo struct {
	fields  *fakeFieldRepo
	devices map[uuid.UUID]*domain.Device
	touched map[uuid.UUID]time.Time
}

func (r *fakeDeviceRepo) owned(owner uuid.UUID, d *domain.Device) bool {
	f, ok := r.fields.fields[d.FieldID]
	return ok && f.OwnerID == owner
}

func (r *fakeDeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	for _, other := range r.devices {
		if other.SerialNumber == d.SerialNumber {
			return repository.ErrDuplicate
		}
	}
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *fakeDeviceRepo) GetByID(ctx context.Context, owner, id uuid.UUID) (*domain.Device, error) {
	d, ok := r.devices[id]
	if !ok || !r.owned(owner, d) {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDeviceRepo) List(ctx context.Context, owner uuid.UUID, fieldID *uuid.UUID) ([]*domain.Device, error) {
	out := []*domain.Device{}
	for _, d := range r.devices {
		if r.owned(owner, d) && (fieldID == nil || d.FieldID == *fieldID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) Update(ctx context.Context, owner uuid.UUID, d *domain.Device) error {
	if _, err := r.GetByID(ctx, owner, d.ID); err != nil {
		return err
	}
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *fakeDeviceRepo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, owner, id); err != nil {
		return err
	}
	delete(r.devices, id)
	return nil
}

func (r *fakeDeviceRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.touched[id] = at
	return nil
}

type fakeReadingRepo struct {
	readings  []*domain.Reading
	lastLimit int
	since     time.Time
}

func (r *fakeReadingRepo) Create(ctx context.Context, rd *domain.Reading) error {
	r.readings = append(r.readings, rd)
	return nil
}

func (r *fakeReadingRepo) ListByField(ctx context.Context, fieldID uuid.UUID, limit int) ([]*domain.Reading, error) {
	r.lastLimit = limit
	out := []*domain.Reading{}
	for _, rd := range r.readings {
		if rd.FieldID == fieldID {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeReadingRepo) Statistics(ctx context.Context, owner uuid.UUID, since time.Time) (*domain.Statistics, error) {
	r.since = since
	return &domain.Statistics{}, nil
}

type fakeProductRepo struct {
	products   map[uuid.UUID]*domain.Product
	lastFilter repository.ProductFilter
}

func (r *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]*domain.Product, error) {
	r.lastFilter = f
	return []*domain.Product{}, nil
}

func (r *fakeProductRepo) AdjustStock(ctx context.Context, seller, id uuid.UUID, delta int) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok || p.SellerID != seller {
		return nil, repository.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}
	p.Stock += delta
	cp := *p
	return &cp, nil
}
