// Package customsender is the library entry point: a facade over the
// delivery commands for hosts that embed the sender instead of running the
// bundled binary.
package customsender

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-custom-sender/command"
	"github.com/goliatone/go-custom-sender/core"
)

type Commands struct {
	DeliverCode *command.DeliverCodeCommand
}

type Facade struct {
	service  command.DeliveryService
	commands Commands
}

func NewFacade(service command.DeliveryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("customsender: delivery service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			DeliverCode: command.NewDeliverCodeCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() command.DeliveryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Deliver runs the deliver-code command and returns the event it stored.
func (f *Facade) Deliver(ctx context.Context, event *core.Event) (*core.Event, error) {
	if f == nil || f.commands.DeliverCode == nil {
		return nil, fmt.Errorf("customsender: facade is not configured")
	}
	msg := command.DeliverCodeMessage{Event: event}
	if err := gocmd.ValidateMessage(msg); err != nil {
		return nil, err
	}
	collector := gocmd.NewResult[*core.Event]()
	if err := f.commands.DeliverCode.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return nil, err
	}
	out, ok := collector.Load()
	if !ok {
		return nil, fmt.Errorf("customsender: delivery produced no result")
	}
	return out, nil
}
