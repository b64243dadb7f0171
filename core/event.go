package core

import (
	"encoding/json"
	"strings"
)

const (
	AttributePhoneNumber   = "phone_number"
	MetadataDeliveryType   = "deliveryType"
	TriggerCustomSMSSender = "CustomSMSSender_"
)

// Event is the custom sender trigger payload. Only Request is interpreted;
// the remaining fields travel through untouched and feed log context.
type Event struct {
	Version       string         `json:"version,omitempty"`
	TriggerSource string         `json:"triggerSource,omitempty"`
	Region        string         `json:"region,omitempty"`
	UserPoolID    string         `json:"userPoolId,omitempty"`
	UserName      string         `json:"userName,omitempty"`
	CallerContext map[string]any `json:"callerContext,omitempty"`
	Request       *EventRequest  `json:"request"`
	Response      map[string]any `json:"response,omitempty"`
}

type EventRequest struct {
	Type           string            `json:"type,omitempty"`
	Code           *string           `json:"code"`
	UserAttributes map[string]string `json:"userAttributes"`
	ClientMetadata map[string]string `json:"clientMetadata"`
}

// Delivery is the validated view of an Event.
type Delivery struct {
	EncryptedCode string
	PhoneNumber   string
	DeliveryType  string
}

func ParseEvent(raw []byte) (*Event, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, newDeliveryError(ErrorKindMalformedEvent, errField("event", "payload is empty"), nil)
	}
	event := &Event{}
	if err := json.Unmarshal(raw, event); err != nil {
		return nil, newDeliveryError(ErrorKindMalformedEvent, err, nil)
	}
	return event, nil
}

// Validate checks the structure the handler relies on. A missing
// deliveryType key is not structural: it is reported as an invalid channel
// by the caller.
func (e *Event) Validate() (Delivery, error) {
	if e == nil {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("event", "is required"), nil)
	}
	req := e.Request
	if req == nil {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("request", "is required"), e.logContext())
	}
	if req.Code == nil || strings.TrimSpace(*req.Code) == "" {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("request.code", "is required"), e.logContext())
	}
	if req.UserAttributes == nil {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("request.userAttributes", "is required"), e.logContext())
	}
	phone := strings.TrimSpace(req.UserAttributes[AttributePhoneNumber])
	if phone == "" {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("request.userAttributes.phone_number", "is required"), e.logContext())
	}
	if req.ClientMetadata == nil {
		return Delivery{}, newDeliveryError(ErrorKindMalformedEvent, errField("request.clientMetadata", "is required"), e.logContext())
	}
	return Delivery{
		EncryptedCode: strings.TrimSpace(*req.Code),
		PhoneNumber:   phone,
		DeliveryType:  req.ClientMetadata[MetadataDeliveryType],
	}, nil
}

// logContext lists the event fields that are safe to log or to attach to
// errors.
func (e *Event) logContext() map[string]any {
	fields := map[string]any{}
	if e == nil {
		return fields
	}
	if v := strings.TrimSpace(e.TriggerSource); v != "" {
		fields["trigger_source"] = v
	}
	if v := strings.TrimSpace(e.UserPoolID); v != "" {
		fields["user_pool_id"] = v
	}
	if v := strings.TrimSpace(e.Region); v != "" {
		fields["region"] = v
	}
	if e.Request != nil {
		if e.Request.UserAttributes != nil {
			if phone := strings.TrimSpace(e.Request.UserAttributes[AttributePhoneNumber]); phone != "" {
				fields["phone_number"] = MaskPhoneNumber(phone)
			}
		}
		if e.Request.ClientMetadata != nil {
			if deliveryType, ok := e.Request.ClientMetadata[MetadataDeliveryType]; ok {
				fields["delivery_type"] = deliveryType
			}
		}
	}
	return fields
}
