package command

import "github.com/goliatone/go-custom-sender/core"

const TypeDeliverCode = "custom_sender.command.deliver_code"

// DeliverCodeMessage asks for one verification code to be delivered.
type DeliverCodeMessage struct {
	Event *core.Event
}

func (DeliverCodeMessage) Type() string { return TypeDeliverCode }

// Validate rejects only a missing event. Everything inside the event is
// checked by the delivery service so every failure shares one classification.
func (m DeliverCodeMessage) Validate() error {
	if m.Event == nil {
		return &core.DeliveryError{
			Kind:  core.ErrorKindMalformedEvent,
			Cause: commandValidationError("event", "event is required"),
		}
	}
	return nil
}
