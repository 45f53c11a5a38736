package order

import (
	"context"
	"errors"

	"seller-portal/internal/models"
)

// Publishers sends each event to every publisher and joins their errors.
type Publishers []EventPublisher

func (p Publishers) PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishWorkflowEvent(ctx, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
