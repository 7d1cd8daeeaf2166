// Package channels provides delivery backends for the notification
// dispatcher. The dev senders log instead of calling a provider, which is
// the default outside production.
package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/notify"
)

// DevPushSender logs push notifications and acknowledges them all.
type DevPushSender struct {
	log logger.Logger
}

// NewDevPushSender builds a logging push backend.
func NewDevPushSender(log logger.Logger) *DevPushSender {
	return &DevPushSender{log: log}
}

// Send logs the notification and returns a synthetic message id.
func (s *DevPushSender) Send(_ context.Context, msg notify.PushMessage) (string, error) {
	id := uuid.NewString()
	s.log.Infof("push [%s] title=%q body=%q", id, msg.Title, msg.Body)
	return id, nil
}

// SendBatch acknowledges every message in the batch.
func (s *DevPushSender) SendBatch(_ context.Context, msgs []notify.PushMessage) (notify.BatchResponse, error) {
	s.log.Infof("push batch of %d delivered", len(msgs))
	return notify.BatchResponse{SuccessCount: len(msgs)}, nil
}

// DevSMSSender logs text messages and acknowledges them all.
type DevSMSSender struct {
	log logger.Logger
}

// NewDevSMSSender builds a logging SMS backend.
func NewDevSMSSender(log logger.Logger) *DevSMSSender {
	return &DevSMSSender{log: log}
}

// Send logs the message and returns a synthetic message id.
func (s *DevSMSSender) Send(_ context.Context, msg notify.SMSMessage) (string, error) {
	id := uuid.NewString()
	s.log.Infof("sms [%s] to=%s body=%q", id, msg.To, msg.Body)
	return id, nil
}

// RecordingPushSender captures sends for tests and can fail chosen tokens.
type RecordingPushSender struct {
	mu         sync.Mutex
	Sent       []notify.PushMessage
	FailTokens map[string]bool
	FailBatch  bool
}

func (r *RecordingPushSender) Send(_ context.Context, msg notify.PushMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTokens[msg.Token] {
		return "", fmt.Errorf("provider rejected token")
	}
	r.Sent = append(r.Sent, msg)
	return uuid.NewString(), nil
}

func (r *RecordingPushSender) SendBatch(_ context.Context, msgs []notify.PushMessage) (notify.BatchResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailBatch {
		return notify.BatchResponse{}, fmt.Errorf("provider batch call failed")
	}
	resp := notify.BatchResponse{Errors: map[int]error{}}
	for i, m := range msgs {
		if r.FailTokens[m.Token] {
			resp.FailureCount++
			resp.Errors[i] = fmt.Errorf("provider rejected token")
			continue
		}
		resp.SuccessCount++
		r.Sent = append(r.Sent, m)
	}
	return resp, nil
}

// Count returns the number of delivered messages.
func (r *RecordingPushSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sent)
}

// RecordingSMSSender captures sends for tests.
type RecordingSMSSender struct {
	mu   sync.Mutex
	Sent []notify.SMSMessage
}

func (r *RecordingSMSSender) Send(_ context.Context, msg notify.SMSMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, msg)
	return uuid.NewString(), nil
}

// Count returns the number of delivered messages.
func (r *RecordingSMSSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sent)
}
