package wsconn

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/broadcast"
	"github.com/adred-codev/pixelcanvas/internal/logging"
	"github.com/adred-codev/pixelcanvas/internal/ports"
	"github.com/adred-codev/pixelcanvas/internal/ratelimit"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var nextConnID int64

// Config holds the per-connection policy values spec.md §6 names.
type Config struct {
	World            string
	MaxTilesPerIP    int
	SubscriptionTTL  time.Duration
	HeartbeatRefresh time.Duration
	SendBufferSize   int
}

// Conn represents one upgraded WebSocket client, filtering broadcast
// events by its locally held subscribed-tile set and forwarding
// subscribe/unsubscribe frames to the subscription fabric. Adapted from
// internal/shared/connection.go's Client plus pump_read.go/pump_write.go's
// read/write pump shape, generalized to tile coordinates.
type Conn struct {
	id            int64
	rawConn       net.Conn
	send          chan []byte
	closeOnce     sync.Once
	subscriptions *TileSet
	ipKey         string
	cfg           Config

	subs     ports.SubscriptionPort
	fabric   *broadcast.Fabric
	receiver *broadcast.Receiver
	msgLimit *ratelimit.Limiter
	logger   zerolog.Logger
}

// New wraps an accepted net.Conn (already upgraded by the caller) into a
// managed Conn attached to the broadcast fabric.
func New(rawConn net.Conn, ipKey string, cfg Config, subs ports.SubscriptionPort, fabric *broadcast.Fabric, msgLimit *ratelimit.Limiter, logger zerolog.Logger) *Conn {
	bufSize := cfg.SendBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	id := atomic.AddInt64(&nextConnID, 1)
	return &Conn{
		id:            id,
		rawConn:       rawConn,
		send:          make(chan []byte, bufSize),
		subscriptions: NewTileSet(),
		ipKey:         ipKey,
		cfg:           cfg,
		subs:          subs,
		fabric:        fabric,
		receiver:      fabric.Subscribe(),
		msgLimit:      msgLimit,
		logger:        logger.With().Int64("conn_id", id).Logger(),
	}
}

// Serve runs the connection's read, write, and forward loops until the
// client disconnects, then releases its fabric receiver and subscriptions.
func (c *Conn) Serve(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer logging.RecoverPanic(c.logger, "wsconn.writeLoop", map[string]any{"conn_id": c.id})
		c.writeLoop(ctx, done)
	}()
	c.readLoop(done)
	close(done)

	c.fabric.Unsubscribe(c.receiver)
	c.cleanupSubscriptions(context.Background())
	c.closeOnce.Do(func() { c.rawConn.Close() })
}

func (c *Conn) cleanupSubscriptions(ctx context.Context) {
	for _, tile := range c.subscriptions.List() {
		if _, _, err := c.subs.Unsubscribe(ctx, c.cfg.World, c.ipKey, tile); err != nil {
			c.logger.Debug().Err(err).Msg("best-effort unsubscribe on disconnect failed")
		}
	}
	c.subscriptions.Clear()
}

// readLoop reads client frames, rate-limits and dispatches them, grounded
// on pump_read.go's read-then-dispatch shape.
func (c *Conn) readLoop(done chan struct{}) {
	defer logging.RecoverPanic(c.logger, "wsconn.readLoop", map[string]any{"conn_id": c.id})
	c.rawConn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg, op, err := wsutil.ReadClientData(c.rawConn)
		if err != nil {
			return
		}
		c.rawConn.SetReadDeadline(time.Now().Add(pongWait))

		switch op {
		case ws.OpText:
			if c.msgLimit != nil && !c.msgLimit.Allow(c.ipKey).Allowed {
				c.sendError("rate limit exceeded")
				continue
			}
			c.dispatch(msg)
		case ws.OpClose:
			return
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func (c *Conn) dispatch(raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	switch frame.Type {
	case TypeSubscribe:
		c.handleSubscribe(ctx, frame.Tiles)
	case TypeUnsubscribe:
		c.handleUnsubscribe(ctx, frame.Tiles)
	case TypePing:
		c.handlePing(ctx)
	default:
		c.sendError(fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}

func (c *Conn) handleSubscribe(ctx context.Context, xys []TileXY) {
	tiles := make([]domain.TileCoord, 0, len(xys))
	for _, xy := range xys {
		tiles = append(tiles, toCoord(xy))
	}
	result, err := c.subs.Subscribe(ctx, c.cfg.World, c.ipKey, tiles, c.cfg.MaxTilesPerIP, c.cfg.SubscriptionTTL)
	if err != nil {
		c.sendError("subscribe failed")
		return
	}
	for _, t := range result.Accepted {
		c.subscriptions.Add(t)
	}
	rejected := make([]RejectedTile, 0, len(result.Rejected))
	for _, r := range result.Rejected {
		c.subscriptions.Remove(r.Tile)
		rejected = append(rejected, RejectedTile{Tile: toXY(r.Tile), Reason: r.Reason})
	}
	accepted := make([]TileXY, 0, len(result.Accepted))
	for _, t := range result.Accepted {
		accepted = append(accepted, toXY(t))
	}
	c.sendJSON(SubscriptionAckFrame{
		Type:            TypeSubscriptionAck,
		Accepted:        accepted,
		Rejected:        rejected,
		RemainingBudget: uint32(c.cfg.MaxTilesPerIP - result.Count),
	})
}

func (c *Conn) handleUnsubscribe(ctx context.Context, xys []TileXY) {
	confirmed := make([]TileXY, 0, len(xys))
	for _, xy := range xys {
		tile := toCoord(xy)
		removed, _, err := c.subs.Unsubscribe(ctx, c.cfg.World, c.ipKey, tile)
		if err != nil {
			continue
		}
		if removed {
			c.subscriptions.Remove(tile)
		}
		confirmed = append(confirmed, xy)
	}
	c.sendJSON(UnsubscriptionConfirmedFrame{Type: TypeUnsubscriptionConfirmed, Tiles: confirmed})
}

// handlePing refreshes the client's subscription TTLs, standing in for the
// per-connection heartbeat tick spec.md §4.I describes.
func (c *Conn) handlePing(ctx context.Context) {
	tiles := c.subscriptions.List()
	if len(tiles) == 0 {
		return
	}
	if err := c.subs.Refresh(ctx, c.cfg.World, c.ipKey, tiles, c.cfg.SubscriptionTTL); err != nil {
		c.logger.Debug().Err(err).Msg("subscription refresh on ping failed")
	}
}

func (c *Conn) sendError(message string) {
	c.sendJSON(ErrorFrame{Type: TypeError, Message: message})
}

func (c *Conn) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Debug().Msg("send buffer full, dropping outbound frame")
	}
}

// writeLoop batches outbound frames and forwards filtered broadcast
// events, grounded on pump_write.go's batched-writer-plus-ping-ticker
// shape.
func (c *Conn) writeLoop(ctx context.Context, done chan struct{}) {
	writer := bufio.NewWriter(c.rawConn)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				wsutil.WriteServerMessage(c.rawConn, ws.OpClose, []byte{})
				return
			}
			c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(writer, ws.OpText, msg); err != nil {
				return
			}
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := wsutil.WriteServerMessage(writer, ws.OpText, <-c.send); err != nil {
					return
				}
			}
			if err := writer.Flush(); err != nil {
				return
			}

		case event := <-c.receiver.Events():
			if !c.subscriptions.Has(event.Coord) {
				continue
			}
			data, _ := json.Marshal(TileVersionFrame{
				Type:    TypeTileVersion,
				X:       event.Coord.X,
				Y:       event.Coord.Y,
				Version: strconv.FormatUint(event.Version, 10),
			})
			c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(writer, ws.OpText, data); err != nil {
				return
			}
			if err := writer.Flush(); err != nil {
				return
			}
			if lagged := c.receiver.TakeLagged(); lagged > 0 {
				c.logger.Debug().Int64("lagged", lagged).Msg("broadcast receiver dropped events")
			}

		case <-ticker.C:
			c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.rawConn, ws.OpPing, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-ctx.Done():
			return
		}
	}
}
