package automations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/smartai"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrNoGenerator is returned when a SMARTAI listener fires but no smart reply
// generator was configured.
var ErrNoGenerator = errors.New("no smart reply generator configured")

// Dispatcher is the subset of the Instagram client the engine sends through
type Dispatcher interface {
	SendDirectMessage(ctx context.Context, accessToken, accountID, recipientID, text string) error
	SendPrivateReply(ctx context.Context, accessToken, accountID, commentID, text string) error
}

// ResultPublisher records dispatch outcomes for downstream consumers
type ResultPublisher interface {
	PublishDispatchResult(ctx context.Context, msg *kafka.DispatchResultMessage) error
}

// Throttle gates outbound sends per Instagram account
type Throttle interface {
	AllowSend(ctx context.Context, accountID string) error
}

// Engine resolves inbound events to automations and dispatches replies.
type Engine struct {
	integrations repositories.IntegrationRepo
	automations  repositories.AutomationRepo
	listeners    repositories.ListenerRepo
	dispatcher   Dispatcher
	generator    smartai.Generator
	throttle     Throttle
	publisher    ResultPublisher
	logger       ectologger.Logger
}

// NewEngine creates a new automation engine
func NewEngine(
	integrations repositories.IntegrationRepo,
	automations repositories.AutomationRepo,
	listeners repositories.ListenerRepo,
	dispatcher Dispatcher,
	generator smartai.Generator,
	throttle Throttle,
	publisher ResultPublisher,
	logger ectologger.Logger,
) *Engine {
	return &Engine{
		integrations: integrations,
		automations:  automations,
		listeners:    listeners,
		dispatcher:   dispatcher,
		generator:    generator,
		throttle:     throttle,
		publisher:    publisher,
		logger:       logger,
	}
}

// HandleEvent runs one inbound event through match and dispatch. Events for
// unknown accounts and events matching no automation complete without error;
// dispatch failures return an error so the queue can retry.
func (e *Engine) HandleEvent(ctx context.Context, event *models.InboundEvent) error {
	ctx, span := tracing.StartSpan(ctx, "Engine.HandleEvent")
	defer span.End()

	start := time.Now()
	eventType := string(event.Type)

	integration, err := e.integrations.GetByInstagramID(ctx, event.AccountID)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"account_id": event.AccountID,
			}).Debug("event for unconnected account, dropping")
			metrics.RecordEvent(eventType, "no_integration", time.Since(start).Seconds())
			return nil
		}
		return err
	}

	active, err := e.automations.ListActiveByUser(ctx, integration.UserID)
	if err != nil {
		return err
	}

	matched := Match(active, event)
	if matched == nil {
		metrics.RecordEvent(eventType, "no_match", time.Since(start).Seconds())
		return nil
	}

	listener := matched.Listener
	if listener == nil {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"automation_id": matched.ID,
		}).Warn("matched automation has no listener configured")
		metrics.RecordEvent(eventType, "no_listener", time.Since(start).Seconds())
		return nil
	}
	metrics.AutomationMatches.WithLabelValues(string(listener.Type)).Inc()

	reply, err := e.resolveReply(ctx, listener, event)
	if err != nil {
		metrics.RecordEvent(eventType, "reply_failure", time.Since(start).Seconds())
		return err
	}

	if err := e.throttle.AllowSend(ctx, event.AccountID); err != nil {
		metrics.RecordEvent(eventType, "throttled", time.Since(start).Seconds())
		return err
	}

	if err := e.dispatch(ctx, integration, matched, listener, event, reply); err != nil {
		metrics.RecordEvent(eventType, "dispatch_failure", time.Since(start).Seconds())
		return err
	}

	if err := e.listeners.IncrementCount(ctx, listener.ID, event.Type); err != nil {
		// counters are best effort, the reply already went out
		e.logger.WithContext(ctx).WithError(err).Warn("failed to bump listener counter")
	}

	metrics.RecordEvent(eventType, "success", time.Since(start).Seconds())
	return nil
}

// resolveReply picks the outgoing text. MESSAGE listeners answer with the
// stored reply, falling back to the prompt; SMARTAI listeners generate one.
func (e *Engine) resolveReply(ctx context.Context, listener *models.Listener, event *models.InboundEvent) (string, error) {
	switch listener.Type {
	case models.ListenerSmartAI:
		if e.generator == nil {
			return "", ErrNoGenerator
		}
		reply, err := e.generator.Generate(ctx, listener.Prompt, event.Text)
		if err != nil {
			return "", fmt.Errorf("smart reply generation: %w", err)
		}
		return reply, nil
	default:
		if listener.Reply != nil && *listener.Reply != "" {
			return *listener.Reply, nil
		}
		return listener.Prompt, nil
	}
}

func (e *Engine) dispatch(ctx context.Context, integration *models.Integration, automation *models.Automation, listener *models.Listener, event *models.InboundEvent, reply string) error {
	channel := "dm"
	var err error
	switch event.Type {
	case models.TriggerComment:
		channel = "private_reply"
		err = e.dispatcher.SendPrivateReply(ctx, integration.AccessToken, event.AccountID, event.CommentID, reply)
	default:
		err = e.dispatcher.SendDirectMessage(ctx, integration.AccessToken, event.AccountID, event.SenderID, reply)
	}

	result := &kafka.DispatchResultMessage{
		EventType:    string(event.Type),
		AccountID:    event.AccountID,
		AutomationID: automation.ID.String(),
		ListenerType: string(listener.Type),
		Channel:      channel,
		RecipientID:  event.SenderID,
		CommentID:    event.CommentID,
		Status:       "success",
	}

	if err != nil {
		metrics.RecordDispatch(channel, "failure")
		result.Status = "failure"
		result.Error = err.Error()
		if e.publisher != nil {
			if pubErr := e.publisher.PublishDispatchResult(ctx, result); pubErr != nil {
				e.logger.WithContext(ctx).WithError(pubErr).Warn("failed to publish dispatch result")
			}
		}
		return err
	}

	metrics.RecordDispatch(channel, "success")
	if e.publisher != nil {
		if pubErr := e.publisher.PublishDispatchResult(ctx, result); pubErr != nil {
			e.logger.WithContext(ctx).WithError(pubErr).Warn("failed to publish dispatch result")
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"automation_id": automation.ID,
		"channel":       channel,
		"account_id":    event.AccountID,
	}).Info("dispatched automated reply")

	return nil
}
