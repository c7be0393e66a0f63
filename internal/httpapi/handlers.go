// Package httpapi implements the HTTP surface spec.md §6 names: tile
// image reads with ETag/Cache-Control/304 handling, the pixel-paint POST
// endpoint, and the WebSocket upgrade. Route/handler shape grounded on
// _examples/adred-codev-ws_poc/ws/server.go's handleWebSocket (admission
// checks before ws.UpgradeHTTP, connection-slot semaphore).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/broadcast"
	"github.com/adred-codev/pixelcanvas/internal/connlimit"
	"github.com/adred-codev/pixelcanvas/internal/gateway"
	"github.com/adred-codev/pixelcanvas/internal/metrics"
	"github.com/adred-codev/pixelcanvas/internal/paint"
	"github.com/adred-codev/pixelcanvas/internal/ports"
	"github.com/adred-codev/pixelcanvas/internal/ratelimit"
	"github.com/adred-codev/pixelcanvas/internal/wsconn"
)

// Server wires the core components to HTTP handlers.
type Server struct {
	Gateway      *gateway.Gateway
	Paint        *paint.Service
	Subs         ports.SubscriptionPort
	Fabric       *broadcast.Fabric
	Metrics      *metrics.Registry
	TileLimiter  *ratelimit.Limiter
	PaintLimiter *ratelimit.Limiter
	WSMsgLimiter *ratelimit.Limiter
	ConnLimiter  *connlimit.Limiter
	CPUGovernor  *connlimit.CPUGovernor
	WSConfig     wsconn.Config
	MaxConns     int
	Logger       zerolog.Logger

	activeConns int64
}

// Mux builds the HTTP route table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tiles/", s.handleTileOrPixels)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// handleTileOrPixels dispatches GET/HEAD /tiles/{x}/{y} and POST
// /tiles/{x}/{y}/pixels, per spec.md §6.
func (s *Server) handleTileOrPixels(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	x, errX := strconv.ParseInt(parts[1], 10, 32)
	y, errY := strconv.ParseInt(parts[2], 10, 32)
	if errX != nil || errY != nil {
		http.Error(w, "invalid tile coordinate", http.StatusBadRequest)
		return
	}
	coord := domain.TileCoord{X: int32(x), Y: int32(y)}
	world := r.URL.Query().Get("world")
	if world == "" {
		world = "default"
	}

	if len(parts) == 4 && parts[3] == "pixels" && r.Method == http.MethodPost {
		s.handlePostPixels(w, r, world, coord)
		return
	}
	if len(parts) == 3 && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		s.handleGetTile(w, r, world, coord)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleGetTile(w http.ResponseWriter, r *http.Request, world string, coord domain.TileCoord) {
	clientIP := clientIP(r)
	if s.TileLimiter != nil {
		res := s.TileLimiter.Allow(clientIP)
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	version, source, err := s.Gateway.FindAuthoritativeTileVersion(r.Context(), world, coord)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if s.Metrics != nil {
		s.Metrics.TilesServed.WithLabelValues(source.String()).Inc()
	}

	etag := fmt.Sprintf("%q", strconv.FormatUint(version, 10))
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	webp, _, err := s.Gateway.GetTileWebP(r.Context(), world, coord)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Content-Type", "image/webp")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Write(webp)
}

type pixelsRequest struct {
	Pixels []struct {
		PX    int   `json:"px"`
		PY    int   `json:"py"`
		Color int16 `json:"color_id"`
	} `json:"pixels"`
}

func (s *Server) handlePostPixels(w http.ResponseWriter, r *http.Request, world string, coord domain.TileCoord) {
	clientIP := clientIP(r)
	if s.PaintLimiter != nil {
		res := s.PaintLimiter.Allow(clientIP)
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	var req pixelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = clientIP
	}

	pixels := make([]domain.PaintPixel, 0, len(req.Pixels))
	for _, p := range req.Pixels {
		pixels = append(pixels, domain.PaintPixel{
			Coord: domain.PixelCoord{X: p.PX, Y: p.PY},
			Color: domain.ColorID(p.Color),
		})
	}

	result, err := s.Paint.PaintBatch(r.Context(), paint.Batch{
		World:  world,
		UserID: userID,
		Tile:   coord,
		Pixels: pixels,
	})
	if err != nil {
		status, reason := classifyPaintError(err)
		if s.Metrics != nil {
			s.Metrics.PaintRejected.WithLabelValues(reason).Inc()
		}
		var insufficient *domain.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"error":     "insufficient_credits",
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
			return
		}
		http.Error(w, err.Error(), status)
		return
	}
	if s.Metrics != nil {
		s.Metrics.PaintsApplied.WithLabelValues(world).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"version": result.Version,
		"writeId": result.WriteID,
	})
}

// classifyPaintError maps a PaintBatch error to an HTTP status and a
// metrics label, per spec.md §7's error table.
func classifyPaintError(err error) (status int, reason string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredit):
		return http.StatusForbidden, "insufficient_credit"
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return http.StatusBadRequest, "invalid_coordinates"
	case errors.Is(err, domain.ErrInvalidColor):
		return http.StatusBadRequest, "invalid_color"
	case errors.Is(err, domain.ErrEmptyBatch), errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, domain.ErrDatabase):
		return http.StatusInternalServerError, "database_error"
	default:
		return http.StatusBadRequest, "validation_failed"
	}
}

// handleWebSocket admits, upgrades, and serves a WebSocket connection,
// grounded on ws/server.go's handleWebSocket (admission checks before
// ws.UpgradeHTTP, connection-slot accounting).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := clientIP(r)

	if s.CPUGovernor != nil && s.CPUGovernor.ShouldReject() {
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}
	if s.ConnLimiter != nil && !s.ConnLimiter.Allow(clientIP) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	if s.MaxConns > 0 && atomic.LoadInt64(&s.activeConns) >= int64(s.MaxConns) {
		if s.Metrics != nil {
			s.Metrics.ConnectionsRejected.WithLabelValues("max_connections").Inc()
		}
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	rawConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	atomic.AddInt64(&s.activeConns, 1)
	if s.Metrics != nil {
		s.Metrics.ConnectionsActive.Inc()
	}

	conn := wsconn.New(rawConn, clientIP, s.WSConfig, s.Subs, s.Fabric, s.WSMsgLimiter, s.Logger)
	go func() {
		defer atomic.AddInt64(&s.activeConns, -1)
		defer func() {
			if s.Metrics != nil {
				s.Metrics.ConnectionsActive.Dec()
			}
		}()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		conn.Serve(ctx)
	}()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		return host[:i]
	}
	return host
}
