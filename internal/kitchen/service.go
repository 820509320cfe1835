// Package kitchen consumes fulfillment signals from the kitchen display
// collaborator and drives the engine's close transition for composite items.
package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	kafkax "github.com/barcomanda/comanda-backend/internal/kafka"
	"github.com/barcomanda/comanda-backend/internal/redisx"
)

// system identity the consumer acts under; the kitchen collaborator is
// trusted the same way the auth collaborator's headers are.
var kitchenIdentity = comanda.Identity{UserID: "kitchen", Role: comanda.RoleAdmin}

type Service struct {
	Engine      *comanda.Engine
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleItemFulfilled is wired as the consumer handler for
// comanda.TopicItemFulfilled.
func (s *Service) HandleItemFulfilled(ctx context.Context, m kafkago.Message) error {
	var env comanda.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != comanda.EventItemFulfilled {
		return nil // ignore
	}

	// dedup by event id so redeliveries don't re-close; nil client means
	// dedup is off and the engine's state guards carry the weight alone
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "kitchen", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	p, err := kafkax.UnwrapPayload[comanda.ItemFulfilledPayload](env.Payload)
	if err != nil {
		return err
	}

	ctx = comanda.WithIdentity(ctx, kitchenIdentity)
	ctx = comanda.WithTrace(ctx, env.TraceID)

	o, err := s.Engine.MarkItemFulfilled(ctx, p.OrderID, p.ItemID)
	switch {
	case err == nil:
		s.Log.Info("item fulfilled",
			zap.String("order_id", p.OrderID),
			zap.String("item_id", p.ItemID),
			zap.String("status", string(o.Status)))
		return nil
	case errors.Is(err, comanda.ErrNotFound):
		// the comanda was cancelled before the kitchen got to it; commit
		s.Log.Warn("fulfilled item no longer exists",
			zap.String("order_id", p.OrderID), zap.String("item_id", p.ItemID))
		return nil
	case errors.Is(err, comanda.ErrInvalidState):
		s.Log.Warn("fulfillment for settled comanda ignored",
			zap.String("order_id", p.OrderID), zap.String("item_id", p.ItemID))
		return nil
	default:
		return err
	}
}
