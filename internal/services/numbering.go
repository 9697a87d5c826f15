package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/repository"
)

// INumberingService hands out year-scoped sequential invoice numbers of the
// form PREFIX-NNNN-YY.
type INumberingService interface {
	Format(seq int, t time.Time) string
	// Preview returns the number the next reservation would get. It is advisory.
	Preview(ctx context.Context, t time.Time) (string, error)
	// Next reserves a number for the calendar year of t (now when zero).
	Next(ctx context.Context, t time.Time) (string, error)
}

type numberingService struct {
	invoices repository.InvoiceRepository
	counters repository.CounterRepository
	prefix   string
	now      func() time.Time
}

func NewNumberingService(invoices repository.InvoiceRepository, counters repository.CounterRepository, prefix string) INumberingService {
	return &numberingService{
		invoices: invoices,
		counters: counters,
		prefix:   prefix,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func yearSuffix(t time.Time) string {
	return fmt.Sprintf("%02d", t.UTC().Year()%100)
}

func (s *numberingService) target(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func (s *numberingService) counterName(t time.Time) string {
	return fmt.Sprintf("invoice:%s-%s", s.prefix, yearSuffix(t))
}

func (s *numberingService) Format(seq int, t time.Time) string {
	return fmt.Sprintf("%s-%04d-%s", s.prefix, seq, yearSuffix(t))
}

func (s *numberingService) Preview(ctx context.Context, t time.Time) (string, error) {
	t = s.target(t)
	seq, err := s.counters.Get(ctx, s.counterName(t))
	if err == nil {
		return s.Format(seq+1, t), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("error reading invoice counter: %w", err)
	}
	count, err := s.invoices.CountNumbered(ctx, s.prefix, yearSuffix(t))
	if err != nil {
		return "", fmt.Errorf("error counting invoices for %s: %w", yearSuffix(t), err)
	}
	return s.Format(int(count)+1, t), nil
}

func (s *numberingService) Next(ctx context.Context, t time.Time) (string, error) {
	t = s.target(t)
	name := s.counterName(t)

	seq, err := s.counters.Increment(ctx, name)
	if err == nil {
		return s.Format(seq, t), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("error incrementing invoice counter %s: %w", name, err)
	}

	// First number of the year: continue from whatever is already stored.
	count, err := s.invoices.CountNumbered(ctx, s.prefix, yearSuffix(t))
	if err != nil {
		return "", fmt.Errorf("error counting invoices for %s: %w", yearSuffix(t), err)
	}
	first := int(count) + 1
	err = s.counters.Seed(ctx, name, first)
	if err == nil {
		return s.Format(first, t), nil
	}
	if !db.IsMongoDuplicateKeyError(err) {
		return "", fmt.Errorf("error seeding invoice counter %s: %w", name, err)
	}

	// Someone else seeded it first.
	seq, err = s.counters.Increment(ctx, name)
	if err != nil {
		return "", fmt.Errorf("error incrementing invoice counter %s: %w", name, err)
	}
	return s.Format(seq, t), nil
}
