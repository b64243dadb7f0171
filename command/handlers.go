package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-custom-sender/core"
)

type DeliveryService interface {
	Deliver(ctx context.Context, event *core.Event) (*core.Event, error)
}

type DeliverCodeCommand struct {
	service DeliveryService
}

func NewDeliverCodeCommand(service DeliveryService) *DeliverCodeCommand {
	return &DeliverCodeCommand{service: service}
}

// Execute delivers the code and stores the returned event in the result
// collector carried by ctx, if any.
func (c *DeliverCodeCommand) Execute(ctx context.Context, msg DeliverCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Deliver(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var _ gocmd.Commander[DeliverCodeMessage] = (*DeliverCodeCommand)(nil)
