// Package shipping books carrier pickups for orders that entered the shipped status.
// The carrier is mocked; only the booking contract is modeled.
package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/events"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/orders"
)

type Shipment struct {
	OrderID     string
	OrderNumber string
}

type Booking struct {
	Provider     string
	TrackingCode string
}

type Provider interface {
	Book(ctx context.Context, s Shipment) (Booking, error)
}

// StubProvider returns a tracking code derived from the order number.
type StubProvider struct {
	Name string
}

func (p StubProvider) Book(ctx context.Context, s Shipment) (Booking, error) {
	if err := ctx.Err(); err != nil {
		return Booking{}, err
	}
	if s.OrderNumber == "" {
		return Booking{}, fmt.Errorf("book shipment for %s: order number missing", s.OrderID)
	}
	name := p.Name
	if name == "" {
		name = "stub"
	}
	return Booking{Provider: name, TrackingCode: strings.ToUpper(name) + "-" + s.OrderNumber}, nil
}

// Recorder is implemented by *orders.Service.
type Recorder interface {
	RecordShipment(ctx context.Context, orderID, provider, trackingCode string) (bool, error)
}

// Deduper is implemented by *redisx.Dedup.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type Service struct {
	Provider Provider
	Orders   Recorder
	Dedup    Deduper
	Log      *zap.Logger
}

// HandleStatusChanged consumes order.status.changed. On error the dedup claim is released
// so the consumer's next attempt at the same message is not skipped as a duplicate.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafka.Message) error {
	log := logx.OrNop(s.Log)

	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Warn("drop undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != events.EventOrderStatusChanged {
		return nil
	}
	p, err := events.UnwrapPayload[events.OrderStatusChangedPayload](env)
	if err != nil {
		log.Warn("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.To != string(orders.StatusShipped) {
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup unavailable, processing anyway", zap.Error(err))
		}
		if !first {
			log.Debug("duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	err = s.book(ctx, p)
	if err != nil && s.Dedup != nil {
		if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
			log.Warn("release dedup claim", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
	}
	return err
}

func (s *Service) book(ctx context.Context, p events.OrderStatusChangedPayload) error {
	b, err := s.Provider.Book(ctx, Shipment{OrderID: p.OrderID, OrderNumber: p.OrderNumber})
	if err != nil {
		return err
	}
	stored, err := s.Orders.RecordShipment(ctx, p.OrderID, b.Provider, b.TrackingCode)
	if err != nil {
		return fmt.Errorf("record shipment for %s: %w", p.OrderID, err)
	}
	logx.OrNop(s.Log).Info("shipment booked",
		zap.String("order_id", p.OrderID), zap.String("tracking_code", b.TrackingCode), zap.Bool("stored", stored))
	return nil
}
