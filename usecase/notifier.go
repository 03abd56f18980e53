package usecase

import (
	"context"
	"errors"

	"autouploader/domain/dto"
	"autouploader/domain/repository"
)

// MultiNotifier fans one task event out to every configured sink.
type MultiNotifier struct {
	sinks []repository.ITaskNotifier
}

func NewMultiNotifier(sinks ...repository.ITaskNotifier) *MultiNotifier {
	n := &MultiNotifier{}
	for _, s := range sinks {
		if s != nil {
			n.sinks = append(n.sinks, s)
		}
	}
	return n
}

func (n *MultiNotifier) Len() int { return len(n.sinks) }

// Notify delivers to every sink and joins their errors.
func (n *MultiNotifier) Notify(ctx context.Context, event dto.TaskEvent) error {
	var errs []error
	for _, s := range n.sinks {
		if err := s.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
