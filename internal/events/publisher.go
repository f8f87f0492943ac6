package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/models"
)

// Subjects of the admin product audit events
const (
	SubjectProductCreated = "admin.product.created"
	SubjectProductUpdated = "admin.product.updated"
	SubjectProductDeleted = "admin.product.deleted"
)

// ProductEvent is the audit record of a confirmed catalog mutation
type ProductEvent struct {
	EventID       string           `json:"eventId"`
	EventType     string           `json:"eventType"`
	TenantID      string           `json:"tenantId"`
	ActorID       string           `json:"actorId,omitempty"`
	ProductID     models.ProductID `json:"productId"`
	ProductName   string           `json:"productName,omitempty"`
	Price         string           `json:"price,omitempty"`
	ChangeType    string           `json:"changeType"`
	ChangedFields []string         `json:"changedFields,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// messageSink is the part of *nats.Conn the publisher needs
type messageSink interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends product audit events to NATS. A nil *Publisher is a no-op.
type Publisher struct {
	conn   messageSink
	logger *logrus.Entry
}

// NewPublisher connects to NATS at natsURL
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	entry := logger.WithField("component", "product-events")

	nc, err := nats.Connect(natsURL,
		nats.Name("storefront-admin-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.Infof("reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				entry.WithError(err).Warn("disconnected from NATS")
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			entry.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: nc, logger: entry}, nil
}

// Close drains the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("failed to drain NATS connection")
	}
}

// PublishProductCreated publishes an admin.product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, tenantID, actorID string, product models.Product) error {
	event := buildProductEvent(SubjectProductCreated, "created", tenantID, actorID, product)
	return p.publish(ctx, event)
}

// PublishProductUpdated publishes an admin.product.updated event listing the changed fields
func (p *Publisher) PublishProductUpdated(ctx context.Context, tenantID, actorID string, product, previous models.Product) error {
	event := buildProductEvent(SubjectProductUpdated, "updated", tenantID, actorID, product)
	event.ChangedFields = ChangedFields(previous, product)
	return p.publish(ctx, event)
}

// PublishProductDeleted publishes an admin.product.deleted event
func (p *Publisher) PublishProductDeleted(ctx context.Context, tenantID, actorID string, product models.Product) error {
	event := buildProductEvent(SubjectProductDeleted, "deleted", tenantID, actorID, product)
	return p.publish(ctx, event)
}

func buildProductEvent(eventType, changeType, tenantID, actorID string, product models.Product) *ProductEvent {
	return &ProductEvent{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		TenantID:    tenantID,
		ActorID:     actorID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       product.Price.String(),
		ChangeType:  changeType,
		Timestamp:   time.Now().UTC(),
	}
}

func (p *Publisher) publish(ctx context.Context, event *ProductEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType, err)
	}
	if err := p.conn.Publish(event.EventType, data); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.EventType,
			"product_id": event.ProductID,
			"tenant_id":  event.TenantID,
		}).Error("failed to publish product event")
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"product_id": event.ProductID,
		"tenant_id":  event.TenantID,
	}).Debug("published product event")
	return nil
}

// ChangedFields names the product attributes that differ between before and after
func ChangedFields(before, after models.Product) []string {
	var changed []string
	if before.Name != after.Name {
		changed = append(changed, "name")
	}
	if before.Description != after.Description {
		changed = append(changed, "description")
	}
	if !before.Price.Equal(after.Price) {
		changed = append(changed, "price")
	}
	if !equalOptionalDecimal(before, after) {
		changed = append(changed, "originalPrice")
	}
	if before.Rating != after.Rating {
		changed = append(changed, "rating")
	}
	if before.ReviewCount != after.ReviewCount {
		changed = append(changed, "reviewCount")
	}
	if before.InStock != after.InStock {
		changed = append(changed, "inStock")
	}
	if before.Badge != after.Badge {
		changed = append(changed, "badge")
	}
	if !equalCategories(before.Categories, after.Categories) {
		changed = append(changed, "categories")
	}
	if before.Image != after.Image {
		changed = append(changed, "image")
	}
	return changed
}

func equalOptionalDecimal(before, after models.Product) bool {
	switch {
	case before.OriginalPrice == nil && after.OriginalPrice == nil:
		return true
	case before.OriginalPrice == nil || after.OriginalPrice == nil:
		return false
	default:
		return before.OriginalPrice.Equal(*after.OriginalPrice)
	}
}

func equalCategories(a, b []models.CategoryID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
