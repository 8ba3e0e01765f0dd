// Package telegram reports failed Divvi Up background jobs to a Telegram
// chat and answers a few queue commands from that chat.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
	"github.com/divviup/divviup-console/internal/models"
)

// Message is an incoming chat message.
type Message struct {
	ID        int64
	ChatID    int64
	Text      string
	Timestamp time.Time
}

// BotAPI interface for Telegram bot operations (allows mocking in tests)
type BotAPI interface {
	SendMessage(chatID int64, text string) error
	GetUpdates() ([]Message, error)
}

// ParseModeSender allows sending messages with parse mode (HTML/MarkdownV2).
type ParseModeSender interface {
	SendMessageWithParseMode(chatID int64, text string, parseMode string) error
}

// JobSource reads the admin job queue. *client.Client implements it.
type JobSource interface {
	QueueJobs(ctx context.Context, query models.QueueQuery) ([]models.QueueJob, error)
	QueueJob(ctx context.Context, id uuid.UUID) (*models.QueueJob, error)
}

// NotifiedSet remembers which jobs were already reported. store.Store
// implements it.
type NotifiedSet interface {
	// MarkNotified records id and reports whether it was new.
	MarkNotified(id uuid.UUID) (bool, error)
}

// RateLimiter implements token bucket algorithm for rate limiting
type RateLimiter struct {
	rate       int // messages per minute
	bucketSize int // burst size
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(messagesPerMinute int) *RateLimiter {
	return &RateLimiter{
		rate:       messagesPerMinute,
		bucketSize: messagesPerMinute,
		tokens:     float64(messagesPerMinute),
		lastUpdate: time.Now(),
	}
}

// Allow checks if a message can be sent
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastUpdate).Minutes()
	rl.lastUpdate = now

	rl.tokens += float64(rl.rate) * elapsed
	if rl.tokens > float64(rl.bucketSize) {
		rl.tokens = float64(rl.bucketSize)
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// BotOptions contains optional configuration for the bot
type BotOptions struct {
	RateLimiter  *RateLimiter
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
}

// Bot watches the job queue for failures and serves chat commands.
type Bot struct {
	api          BotAPI
	chatID       int64
	jobs         JobSource
	notified     NotifiedSet
	rateLimiter  *RateLimiter
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       *logging.Logger
	now          func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewBot creates a bot that reports to chatID. Only messages from chatID
// are answered.
func NewBot(api BotAPI, chatID int64, jobs JobSource, notified NotifiedSet, opts *BotOptions) *Bot {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		api:      api,
		chatID:   chatID,
		jobs:     jobs,
		notified: notified,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}

	if opts != nil {
		b.rateLimiter = opts.RateLimiter
		b.pollInterval = opts.PollInterval
		b.metrics = opts.Metrics
		b.logger = opts.Logger
	}
	if b.rateLimiter == nil {
		b.rateLimiter = NewRateLimiter(20) // telegram allows 20 messages per minute to a group
	}
	if b.pollInterval <= 0 {
		b.pollInterval = time.Second
	}
	if b.logger == nil {
		b.logger = logging.Nop()
	}

	return b
}

// Start launches the queue watcher and the update poller.
func (b *Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("bot already started")
	}
	if b.api == nil || b.jobs == nil || b.notified == nil {
		return fmt.Errorf("bot requires a telegram api, a job source and a notified set")
	}
	if b.chatID == 0 {
		return fmt.Errorf("chat id is required")
	}
	b.started = true

	b.wg.Add(2)
	go b.watchQueue()
	go b.pollUpdates()

	b.logger.Info("telegram bot started", "chat_id", b.chatID, "poll_interval", b.pollInterval.String())
	return nil
}

// Shutdown stops the bot and waits for its goroutines, or for ctx.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for bot to stop: %w", ctx.Err())
	}
}

// watchQueue checks for failed jobs every poll interval.
func (b *Bot) watchQueue() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := b.CheckFailedJobs(b.ctx); err != nil && b.ctx.Err() == nil {
			b.logger.Warn("failed to check job queue", "error", err.Error())
		}

		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckFailedJobs reports every failed job not reported before, oldest
// first, and returns how many were sent. A job skipped for rate limiting
// is retried on the next check.
func (b *Bot) CheckFailedJobs(ctx context.Context) (int, error) {
	status := models.JobFailed
	jobs, err := b.jobs.QueueJobs(ctx, models.QueueQuery{Status: &status})
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := len(jobs) - 1; i >= 0; i-- {
		job := jobs[i]
		if !b.rateLimiter.Allow() {
			b.record("rate_limited")
			return sent, nil
		}

		fresh, err := b.notified.MarkNotified(job.ID)
		if err != nil {
			return sent, err
		}
		if !fresh {
			// the token was not spent on a send
			b.rateLimiter.refund()
			continue
		}

		if err := b.send(b.chatID, formatFailedJob(job)); err != nil {
			b.record("error")
			b.logger.Error("failed to send job notification", "job_id", job.ID.String(), "error", err.Error())
			continue
		}
		b.record("sent")
		sent++
	}
	return sent, nil
}

// pollUpdates polls the Telegram API for commands.
func (b *Bot) pollUpdates() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		updates, err := b.api.GetUpdates()
		if err != nil {
			b.sleep(2 * time.Second)
			continue
		}
		if len(updates) == 0 {
			b.sleep(250 * time.Millisecond)
			continue
		}

		for _, msg := range updates {
			b.handleMessage(b.ctx, msg)
		}
	}
}

func (b *Bot) sleep(d time.Duration) {
	select {
	case <-b.ctx.Done():
	case <-time.After(d):
	}
}

// handleMessage answers a command from the configured chat.
func (b *Bot) handleMessage(ctx context.Context, msg Message) {
	if msg.ChatID != b.chatID {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	// commands may be addressed as /failed@divviup_bot in groups
	command, _, _ := strings.Cut(fields[0], "@")

	var reply string
	switch command {
	case "/start", "/help":
		reply = formatHelpMessage()
	case "/failed":
		reply = b.failedReply(ctx)
	case "/job":
		if len(fields) < 2 {
			reply = "Usage: /job &lt;id&gt;"
			break
		}
		reply = b.jobReply(ctx, fields[1])
	default:
		return
	}

	if err := b.send(msg.ChatID, reply); err != nil {
		b.logger.Warn("failed to answer command", "command", command, "error", err.Error())
	}
}

func (b *Bot) failedReply(ctx context.Context) string {
	status := models.JobFailed
	jobs, err := b.jobs.QueueJobs(ctx, models.QueueQuery{Status: &status})
	if err != nil {
		return errorReply(err)
	}
	return formatJobList(jobs, b.now())
}

func (b *Bot) jobReply(ctx context.Context, raw string) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "Not a job id."
	}
	job, err := b.jobs.QueueJob(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	return formatJob(job)
}

func errorReply(err error) string {
	switch {
	case apierrors.IsNotFound(err):
		return "Job not found."
	case apierrors.IsForbidden(err):
		return "⚠️ The configured API credentials cannot read the queue."
	default:
		return "⚠️ Queue request failed."
	}
}

func (b *Bot) send(chatID int64, text string) error {
	if sender, ok := b.api.(ParseModeSender); ok {
		return sender.SendMessageWithParseMode(chatID, text, "HTML")
	}
	return b.api.SendMessage(chatID, text)
}

func (b *Bot) record(result string) {
	if b.metrics != nil {
		b.metrics.RecordNotification(result)
	}
}

func (rl *RateLimiter) refund() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.tokens+1 <= float64(rl.bucketSize) {
		rl.tokens++
	}
}
