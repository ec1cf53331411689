package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairpad/internal/metrics"
	"pairpad/internal/models"
	"pairpad/internal/store"
)

// Gateway coordinates the room registry and the durable store. It is the
// only component that touches both: the registry stays ignorant of
// persistence and the store knows nothing about live connections.
type Gateway struct {
	registry *Registry
	store    store.Store
	log      *zap.Logger
}

func NewGateway(registry *Registry, st store.Store, log *zap.Logger) *Gateway {
	return &Gateway{registry: registry, store: st, log: log}
}

// CreateRoom generates a fresh room id, registers it in memory and writes
// the initial empty row. If the durable write fails the in-memory entry is
// rolled back so a room can never be live in memory without being durable.
func (g *Gateway) CreateRoom(ctx context.Context) (string, error) {
	id := uuid.New().String()
	room, _ := g.registry.GetOrCreate(id)
	metrics.RoomOpened()

	if err := g.store.Create(ctx, id, ""); err != nil {
		wrapped := fmt.Errorf("create room %s: %w", id, err)
		room.MarkReady(wrapped)
		g.registry.Remove(id)
		metrics.RoomEvicted()
		metrics.PersistFailed()
		g.log.Error("room creation failed to persist", zap.String("room", id), zap.Error(err))
		return "", wrapped
	}
	room.MarkReady(nil)

	g.log.Info("room created", zap.String("room", id))
	return id, nil
}

// Join attaches a connection to a room and sends it the current document.
// A cold room is seeded from the store; an unknown id seeds an empty
// document (rooms may spring into existence from a join — id collisions are
// cryptographically improbable, so this is permissive, not unsafe). A join
// racing a cold load waits for seeding to finish, sharing its outcome. Only
// a genuine storage fault aborts the join.
func (g *Gateway) Join(ctx context.Context, id string, c *Client) error {
	room, created := g.registry.GetOrCreate(id)
	if created {
		metrics.RoomOpened()
		doc, err := g.store.Get(ctx, id)
		switch {
		case err == nil:
			room.Seed(doc)
		case errors.Is(err, store.ErrNotFound):
			// Not an error: the durable row appears on the first edit.
		default:
			wrapped := fmt.Errorf("load room %s: %w", id, err)
			room.MarkReady(wrapped)
			if room.PeerCount() == 0 {
				g.registry.Remove(id)
				metrics.RoomEvicted()
			}
			return wrapped
		}
		room.MarkReady(nil)
	} else if err := room.WaitReady(ctx); err != nil {
		return err
	}

	room.AddPeer(c)
	metrics.PeerJoined()
	g.log.Info("peer joined", zap.String("room", id), zap.Int("peers", room.PeerCount()))

	return c.Send(models.Frame{Type: models.FrameInitialState, Code: room.Document()})
}

// Leave detaches a connection and evicts the room once its peer set is
// empty. Safe to call for connections or rooms that are already gone;
// disconnect races are expected.
func (g *Gateway) Leave(id string, c *Client) {
	room, ok := g.registry.Get(id)
	if !ok {
		return
	}
	remaining, removed := room.RemovePeer(c)
	if !removed {
		return
	}
	metrics.PeerLeft()
	if remaining == 0 {
		g.registry.Remove(id)
		metrics.RoomEvicted()
		g.log.Info("room evicted", zap.String("room", id))
	} else {
		g.log.Info("peer left", zap.String("room", id), zap.Int("peers", remaining))
	}
}

// ApplyEdit commits a last-writer-wins edit: cache and persist under the
// room's gate, then fan the update out to every peer except the origin.
// A persist failure aborts fan-out — an edit that failed to durably commit
// is never broadcast. Delivery failures are per-peer and swallowed.
func (g *Gateway) ApplyEdit(ctx context.Context, id, code string, origin *Client) error {
	room, created := g.registry.GetOrCreate(id)
	if created {
		metrics.RoomOpened()
		// Sprang into existence from an edit; there is nothing to seed.
		room.MarkReady(nil)
	}

	err := room.UpdateDocument(code,
		func(text string) error {
			return g.store.Upsert(ctx, id, text)
		},
		func(peers []*Client) {
			delivered := 0
			for _, peer := range peers {
				if peer == origin {
					continue
				}
				if sendErr := peer.Send(models.Frame{Type: models.FrameCodeUpdate, Code: code}); sendErr != nil {
					g.log.Debug("peer unreachable during fan-out", zap.String("room", id), zap.Error(sendErr))
					continue
				}
				delivered++
			}
			metrics.FramesBroadcast(delivered)
		})
	if err != nil {
		metrics.PersistFailed()
		g.log.Error("edit failed to persist", zap.String("room", id), zap.Error(err))
		return fmt.Errorf("persist edit for room %s: %w", id, err)
	}
	metrics.EditApplied()
	return nil
}

// RoomExists reports whether a durable room row exists. Pure store read;
// the in-memory registry is never consulted.
func (g *Gateway) RoomExists(ctx context.Context, id string) (bool, error) {
	return g.store.Exists(ctx, id)
}
