package notify

import "context"

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelPush Channel = "push"
	ChannelSMS  Channel = "sms"
)

// PushMessage is one push notification addressed to a device token.
type PushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SMSMessage is one text message addressed to an E.164 phone number.
type SMSMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// BatchResponse is the per-recipient result of one backend batch call.
// Errors maps the index within the batch to the delivery error.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Errors       map[int]error
}

// PushSender delivers push notifications through a provider backend.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) (messageID string, err error)
	// SendBatch delivers up to the provider's batch ceiling in one call and
	// reports best-effort per-recipient outcomes.
	SendBatch(ctx context.Context, msgs []PushMessage) (BatchResponse, error)
}

// SMSSender delivers text messages through a provider backend.
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) (messageID string, err error)
}
