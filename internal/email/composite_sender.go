package email

import (
	"context"
	"errors"
	"fmt"
)

// CompositeSender delivers every message through all of its senders.
type CompositeSender struct {
	senders []Sender
}

func NewCompositeSender(senders ...Sender) *CompositeSender {
	cs := &CompositeSender{}
	for _, s := range senders {
		if s != nil {
			cs.senders = append(cs.senders, s)
		}
	}
	return cs
}

// Send tries every sender and joins their errors.
func (cs *CompositeSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return errors.New("no email senders configured")
	}
	var errs []error
	for i, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			errs = append(errs, fmt.Errorf("sender %d (%T): %w", i, sender, err))
		}
	}
	return errors.Join(errs...)
}
