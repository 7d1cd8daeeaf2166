package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prapanjan22-hub/garazzo/core/logger"
)

// OutcomeStatus classifies the terminal state of one notification request.
type OutcomeStatus string

const (
	OutcomeSent        OutcomeStatus = "sent"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeRejected    OutcomeStatus = "rejected"
	OutcomeRateLimited OutcomeStatus = "rate_limited"
)

// Outcome is the delivery result of a single notification request.
type Outcome struct {
	ID        string        `json:"id"`
	Channel   Channel       `json:"channel"`
	Recipient string        `json:"recipient"`
	Status    OutcomeStatus `json:"status"`
	MessageID string        `json:"message_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	// RetryAfter is set for rate-limited outcomes so the caller can decide
	// to queue or drop.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Remaining  int           `json:"remaining,omitempty"`
}

// FailedItem identifies one failed entry of a bulk send.
type FailedItem struct {
	Index     int    `json:"index"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// BulkResult aggregates per-item outcomes across all batches of a bulk send.
type BulkResult struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Failed       []FailedItem `json:"failed,omitempty"`
}

// Config tunes the dispatcher's rate windows and batching behaviour.
type Config struct {
	WindowSeconds  int `json:"window_seconds"`
	PushPerWindow  int `json:"push_per_window"`
	SMSPerWindow   int `json:"sms_per_window"`
	BulkPerWindow  int `json:"bulk_per_window"`
	BatchSize      int `json:"batch_size"`
	MaxConcurrent  int `json:"max_concurrent_batches"`
	SendTimeoutSec int `json:"send_timeout_seconds"`
	CacheTTLSec    int `json:"cache_ttl_seconds"`
}

// SetDefaults applies the provider-documented limits where unset.
func (c *Config) SetDefaults() {
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.PushPerWindow <= 0 {
		c.PushPerWindow = 200
	}
	if c.SMSPerWindow <= 0 {
		c.SMSPerWindow = 50
	}
	if c.BulkPerWindow <= 0 {
		c.BulkPerWindow = 500
	}
	if c.BatchSize <= 0 || c.BatchSize > 500 {
		c.BatchSize = 500
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.SendTimeoutSec <= 0 {
		c.SendTimeoutSec = 10
	}
	if c.CacheTTLSec <= 0 {
		c.CacheTTLSec = 3600
	}
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.BatchSize > 500 {
		return fmt.Errorf("batch_size %d exceeds provider ceiling of 500", c.BatchSize)
	}
	return nil
}

const minTokenLength = 32

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Dispatcher renders, validates, rate-limits and delivers notifications
// through channel-specific senders.
type Dispatcher struct {
	push     PushSender
	sms      SMSSender
	renderer *Renderer
	limiters map[Channel]*RateLimiter
	bulk     *RateLimiter
	log      logger.Logger

	batchSize   int
	maxParallel int
	sendTimeout time.Duration
}

// NewDispatcher wires the dispatcher from its collaborators. Senders may not
// be nil.
func NewDispatcher(push PushSender, sms SMSSender, renderer *Renderer, cfg Config, log logger.Logger) (*Dispatcher, error) {
	if push == nil || sms == nil {
		return nil, fmt.Errorf("notify: nil sender provided to NewDispatcher")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if renderer == nil {
		renderer = NewRenderer(DefaultTemplates(),
			NewTemplateCache(time.Duration(cfg.CacheTTLSec)*time.Second),
			time.Duration(cfg.CacheTTLSec)*time.Second)
	}
	return &Dispatcher{
		push:     push,
		sms:      sms,
		renderer: renderer,
		limiters: map[Channel]*RateLimiter{
			ChannelPush: NewRateLimiter(window, cfg.PushPerWindow),
			ChannelSMS:  NewRateLimiter(window, cfg.SMSPerWindow),
		},
		bulk:        NewRateLimiter(window, cfg.BulkPerWindow),
		log:         log,
		batchSize:   cfg.BatchSize,
		maxParallel: cfg.MaxConcurrent,
		sendTimeout: time.Duration(cfg.SendTimeoutSec) * time.Second,
	}, nil
}

// Renderer exposes the template renderer, e.g. for cache statistics.
func (d *Dispatcher) Renderer() *Renderer { return d.renderer }

func checkLimit(limiter *RateLimiter, key string, amount int) (LimitResult, *RateLimitError) {
	res, err := limiter.CheckAndConsume(key, amount)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return LimitResult{}, rl
		}
		return LimitResult{}, &RateLimitError{Key: key}
	}
	return res, nil
}

// SendPush validates and delivers one push notification.
func (d *Dispatcher) SendPush(ctx context.Context, msg PushMessage) Outcome {
	out := Outcome{ID: uuid.NewString(), Channel: ChannelPush, Recipient: msg.Token}
	if len(msg.Token) < minTokenLength {
		out.Status = OutcomeRejected
		out.Reason = "invalid push token"
		notificationsTotal.WithLabelValues(string(ChannelPush), string(out.Status)).Inc()
		return out
	}
	if msg.Title == "" || msg.Body == "" {
		out.Status = OutcomeRejected
		out.Reason = "notification title and body are required"
		notificationsTotal.WithLabelValues(string(ChannelPush), string(out.Status)).Inc()
		return out
	}
	res, rl := checkLimit(d.limiters[ChannelPush], "push", 1)
	if rl != nil {
		return d.rateLimited(out, rl)
	}
	out.Remaining = res.Remaining

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	id, err := d.push.Send(ctx, msg)
	if err != nil {
		out.Status = OutcomeFailed
		out.Reason = err.Error()
		d.log.Errorf("push send to %s failed: %v", truncateToken(msg.Token), err)
	} else {
		out.Status = OutcomeSent
		out.MessageID = id
	}
	notificationsTotal.WithLabelValues(string(ChannelPush), string(out.Status)).Inc()
	return out
}

// SendSMS validates and delivers one text message. When template is
// non-empty the body is rendered from it with data.
func (d *Dispatcher) SendSMS(ctx context.Context, msg SMSMessage, template string, data map[string]string) Outcome {
	out := Outcome{ID: uuid.NewString(), Channel: ChannelSMS, Recipient: msg.To}
	if !phonePattern.MatchString(msg.To) {
		out.Status = OutcomeRejected
		out.Reason = fmt.Sprintf("invalid phone number %q: must be E.164", msg.To)
		notificationsTotal.WithLabelValues(string(ChannelSMS), string(out.Status)).Inc()
		return out
	}
	if template != "" {
		body, err := d.renderer.Render(template, data)
		if err != nil {
			out.Status = OutcomeRejected
			out.Reason = err.Error()
			notificationsTotal.WithLabelValues(string(ChannelSMS), string(out.Status)).Inc()
			return out
		}
		msg.Body = body
	}
	if msg.Body == "" {
		out.Status = OutcomeRejected
		out.Reason = "sms body cannot be empty"
		notificationsTotal.WithLabelValues(string(ChannelSMS), string(out.Status)).Inc()
		return out
	}
	res, rl := checkLimit(d.limiters[ChannelSMS], "sms", 1)
	if rl != nil {
		return d.rateLimited(out, rl)
	}
	out.Remaining = res.Remaining

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	id, err := d.sms.Send(ctx, msg)
	if err != nil {
		out.Status = OutcomeFailed
		out.Reason = err.Error()
		d.log.Errorf("sms send to %s failed: %v", msg.To, err)
	} else {
		out.Status = OutcomeSent
		out.MessageID = id
	}
	notificationsTotal.WithLabelValues(string(ChannelSMS), string(out.Status)).Inc()
	return out
}

func (d *Dispatcher) rateLimited(out Outcome, rl *RateLimitError) Outcome {
	out.Status = OutcomeRateLimited
	out.Reason = rl.Error()
	out.RetryAfter = rl.RetryAfter
	notificationsTotal.WithLabelValues(string(out.Channel), string(out.Status)).Inc()
	return out
}

// SendBulkPush partitions msgs into provider-sized batches and sends them
// with bounded concurrency. A failing batch marks only its own items failed;
// remaining batches still run.
func (d *Dispatcher) SendBulkPush(ctx context.Context, msgs []PushMessage) BulkResult {
	result := BulkResult{Total: len(msgs)}
	if len(msgs) == 0 {
		return result
	}

	// One bulk unit per provider batch call.
	units := (len(msgs) + d.batchSize - 1) / d.batchSize
	if _, rl := checkLimit(d.bulk, "bulk_push", units); rl != nil {
		result.FailureCount = len(msgs)
		for i, m := range msgs {
			result.Failed = append(result.Failed, FailedItem{Index: i, Recipient: m.Token, Reason: rl.Error()})
		}
		bulkBatchesTotal.WithLabelValues("rate_limited").Add(float64(units))
		return result
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, d.maxParallel)
	)
	for start := 0; start < len(msgs); start += d.batchSize {
		end := start + d.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(offset int, batch []PushMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			d.sendBatch(ctx, offset, batch, &mu, &result)
		}(start, msgs[start:end])
	}
	wg.Wait()

	if result.FailureCount > 0 {
		d.log.Warnf("bulk push completed with failures: %d/%d failed", result.FailureCount, result.Total)
	} else {
		d.log.Infof("bulk push completed: %d sent", result.SuccessCount)
	}
	return result
}

func (d *Dispatcher) sendBatch(ctx context.Context, offset int, batch []PushMessage, mu *sync.Mutex, result *BulkResult) {
	// Reject malformed recipients locally so one bad token cannot sink the
	// whole batch at the provider.
	valid := make([]PushMessage, 0, len(batch))
	validIdx := make([]int, 0, len(batch))
	var rejected []FailedItem
	for i, m := range batch {
		if len(m.Token) < minTokenLength {
			rejected = append(rejected, FailedItem{Index: offset + i, Recipient: m.Token, Reason: "invalid push token"})
			continue
		}
		if m.Title == "" || m.Body == "" {
			rejected = append(rejected, FailedItem{Index: offset + i, Recipient: m.Token, Reason: "notification title and body are required"})
			continue
		}
		valid = append(valid, m)
		validIdx = append(validIdx, offset+i)
	}

	var resp BatchResponse
	var err error
	if len(valid) > 0 {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		resp, err = d.push.SendBatch(sendCtx, valid)
		cancel()
	}

	mu.Lock()
	defer mu.Unlock()
	result.FailureCount += len(rejected)
	result.Failed = append(result.Failed, rejected...)
	if len(valid) == 0 {
		return
	}
	if err != nil {
		// Batch-level failure: every item in this batch fails with the
		// batch error, sibling batches are unaffected.
		result.FailureCount += len(valid)
		for i, m := range valid {
			result.Failed = append(result.Failed, FailedItem{Index: validIdx[i], Recipient: m.Token, Reason: err.Error()})
		}
		bulkBatchesTotal.WithLabelValues("failed").Inc()
		d.log.Errorf("push batch at offset %d failed: %v", offset, err)
		return
	}
	result.SuccessCount += resp.SuccessCount
	result.FailureCount += resp.FailureCount
	for i, itemErr := range resp.Errors {
		if i >= 0 && i < len(valid) {
			result.Failed = append(result.Failed, FailedItem{Index: validIdx[i], Recipient: valid[i].Token, Reason: itemErr.Error()})
		}
	}
	bulkBatchesTotal.WithLabelValues("sent").Inc()
}

func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
