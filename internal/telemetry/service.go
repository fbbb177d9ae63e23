package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/relaybot/internal/storage"
)

// ErrNoData is returned by Latest before the first reading arrives.
var ErrNoData = errors.New("no data yet")

// Store is the single-slot persistence the service writes through.
type Store interface {
	ReplaceLatest(ctx context.Context, rec storage.Record) (storage.Record, error)
	Latest(ctx context.Context) (storage.Record, error)
}

// Forwarder relays a raw payload to a peer. Forward must not block.
type Forwarder interface {
	Forward(ctx context.Context, payload []byte)
}

// Origin identifies who submitted a reading.
type Origin int

const (
	OriginDevice Origin = iota
	OriginPeer          // relayed by another instance; never forwarded again
	OriginAgent         // submitted through the MCP tool
)

func (o Origin) String() string {
	switch o {
	case OriginPeer:
		return "peer"
	case OriginAgent:
		return "agent"
	default:
		return "device"
	}
}

// Service accepts readings and serves the latest one.
type Service struct {
	store     Store
	forwarder Forwarder
	logger    *slog.Logger
}

// NewService creates a Service. forwarder may be nil to disable relaying.
func NewService(store Store, forwarder Forwarder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:     store,
		forwarder: forwarder,
		logger:    logger.With("component", "telemetry"),
	}
}

// Ingest parses raw, replaces the stored reading and, unless the reading
// came from a peer, hands raw to the forwarder. Forwarding never changes the
// returned result.
func (s *Service) Ingest(ctx context.Context, raw []byte, origin Origin) (storage.Record, error) {
	s.logger.DebugContext(ctx, "raw payload", "origin", origin, "raw", string(raw))

	report, err := ParseReport(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected payload", "origin", origin, "error", err)
		return storage.Record{}, err
	}
	s.logger.DebugContext(ctx, "parsed payload", "report", report.Record())

	rec, err := s.store.ReplaceLatest(ctx, report.Record())
	if err != nil {
		return storage.Record{}, fmt.Errorf("storing reading: %w", err)
	}
	s.logger.InfoContext(ctx, "reading stored",
		"origin", origin,
		"bot", rec.BotID,
		"left", rec.LeftSpeed,
		"right", rec.RightSpeed,
		"state", rec.State,
	)

	if s.forwarder != nil && origin != OriginPeer {
		s.forwarder.Forward(ctx, raw)
	}

	return rec, nil
}

// Latest returns the stored reading or ErrNoData.
func (s *Service) Latest(ctx context.Context) (storage.Record, error) {
	rec, err := s.store.Latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Record{}, ErrNoData
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("loading latest reading: %w", err)
	}
	return rec, nil
}
