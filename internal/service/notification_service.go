package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/events"
)

// Broadcaster pushes compact notices to real-time subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, notice events.Notice) error
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster Broadcaster
	logger      *zap.Logger
	cfg         config.NotificationConfig
	unsubscribe []func()
}

// NewNotificationService creates the service. broadcaster may be nil.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster Broadcaster, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.unsubscribe = append(n.unsubscribe,
		n.dispatcher.Subscribe(events.EventDisputeCreated, n.handleDisputeCreated),
		n.dispatcher.Subscribe(events.EventDisputeStatusChanged, n.handleDisputeStatusChanged),
		n.dispatcher.Subscribe(events.EventDisputeUpdated, n.handleDisputeUpdated),
		n.dispatcher.Subscribe(events.EventDisputeResolved, n.handleDisputeResolved),
		n.dispatcher.Subscribe(events.EventReturnShipmentRequested, n.handleReturnShipmentRequested),
	)
}

// Close removes every handler registered by RegisterHandlers.
func (n *NotificationService) Close() {
	for _, unsubscribe := range n.unsubscribe {
		unsubscribe()
	}
	n.unsubscribe = nil
}

func (n *NotificationService) handleDisputeCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeCreated", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return n.broadcast(ctx, event)
}

func (n *NotificationService) handleDisputeStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeStatusChanged", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return n.broadcast(ctx, event)
}

func (n *NotificationService) handleDisputeUpdated(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeUpdated", zap.String("dispute_id", event.DisputeID), zap.String("transition", string(event.Transition)))
	return n.broadcast(ctx, event)
}

func (n *NotificationService) handleDisputeResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeResolved", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReturnShipmentRequested(ctx context.Context, event events.Event) error {
	n.logger.Info("ReturnShipmentRequested", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// broadcast failures are logged only; the transition has already committed.
func (n *NotificationService) broadcast(ctx context.Context, event events.Event) error {
	if n.broadcaster == nil {
		return nil
	}
	if err := n.broadcaster.Broadcast(ctx, events.NoticeOf(event)); err != nil {
		n.logger.Warn("broadcast failed", zap.String("dispute_id", event.DisputeID), zap.Error(err))
	}
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	for _, recipient := range event.Recipients {
		n.logger.Debug("sendEmailNotificationStub",
			zap.String("from", n.cfg.EmailFrom),
			zap.String("to_user_id", recipient),
			zap.String("dispute_id", event.DisputeID),
			zap.String("event_type", string(event.Type)))
	}
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}
