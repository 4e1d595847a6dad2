package provider

import (
	"context"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// Shared collapses concurrent catalog reads issued by many sessions into one
// backend call. Nothing is cached once the call returns.
type Shared struct {
	next  Catalog
	group singleflight.Group
}

func NewShared(next Catalog) *Shared {
	return &Shared{next: next}
}

func (s *Shared) ListServices(ctx context.Context) ([]model.Service, error) {
	v, err, _ := s.group.Do("services", func() (any, error) {
		return s.next.ListServices(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	// Callers own their copy.
	return slices.Clone(v.([]model.Service)), nil
}

func (s *Shared) ListStaff(ctx context.Context) ([]model.StaffMember, error) {
	v, err, _ := s.group.Do("staff", func() (any, error) {
		return s.next.ListStaff(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]model.StaffMember)), nil
}
