package runtime

import (
	"context"
	"fmt"

	"github.com/auxoncorp/modality-dlt-plugin/convert"
	"github.com/auxoncorp/modality-dlt-plugin/dlt"
	"github.com/auxoncorp/modality-dlt-plugin/ingest"
	"github.com/auxoncorp/modality-dlt-plugin/log"
	"github.com/auxoncorp/modality-dlt-plugin/metrics"
	"github.com/auxoncorp/modality-dlt-plugin/types"
)

// Sender routes decoded messages onto timelines and sends them as events.
//
// Routing state is per stream:
//   - known maps each timeline key to the identity minted for it
//   - active is the timeline the client currently has switched to
//   - ordering is the next event ordering, gapless from 0
//
// A Sender is not safe for concurrent use.
type Sender struct {
	client    ingest.Client
	keys      convert.KeyConfig
	logger    *log.Logger
	collector *metrics.Collector

	known    map[convert.TimelineKey]types.TimelineID
	active   types.TimelineID
	ordering uint64
}

// NewSender creates a sender delivering through client.
func NewSender(client ingest.Client, keys convert.KeyConfig, logger *log.Logger, collector *metrics.Collector) *Sender {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sender{
		client:    client,
		keys:      keys,
		logger:    logger,
		collector: collector,
		known:     make(map[convert.TimelineKey]types.TimelineID),
	}
}

// Handle processes one decode outcome. Invalid messages are logged and
// skipped; filtered messages are skipped silently. Neither consumes an
// ordering. The returned error comes from the client and is terminal.
func (s *Sender) Handle(ctx context.Context, parsed dlt.ParsedMessage) error {
	switch m := parsed.(type) {
	case dlt.Item:
		return s.send(ctx, m.Message)
	case dlt.Invalid:
		s.collector.IncMessagesInvalid()
		s.logger.Warn("skipping invalid DLT message", map[string]any{
			"reason": m.Reason,
		})
		return nil
	case dlt.FilteredOut:
		s.collector.IncMessagesFiltered()
		return nil
	default:
		panic(fmt.Sprintf("runtime: unhandled parsed message %T", parsed))
	}
}

func (s *Sender) send(ctx context.Context, msg *dlt.Message) error {
	if err := s.route(ctx, s.keys.KeyFor(msg)); err != nil {
		return err
	}

	if err := s.client.SendEvent(ctx, convert.EventName(msg), s.ordering, convert.EventAttrs(msg)); err != nil {
		return fmt.Errorf("send event %d: %w", s.ordering, err)
	}
	s.ordering++
	s.collector.IncEventsSent()
	return nil
}

// route makes the timeline for key active, minting and announcing it on
// first sight. The key is registered only after the switch and the
// announcement both succeed. A failed announcement leaves no timeline
// active, so the next message switches again.
func (s *Sender) route(ctx context.Context, key convert.TimelineKey) error {
	if id, ok := s.known[key]; ok {
		if id == s.active {
			return nil
		}
		if err := s.client.SwitchTimeline(ctx, id); err != nil {
			return fmt.Errorf("switch to timeline %s: %w", id, err)
		}
		s.active = id
		s.collector.IncTimelineSwitches()
		return nil
	}

	id := types.NewTimelineID()
	if err := s.client.SwitchTimeline(ctx, id); err != nil {
		return fmt.Errorf("switch to new timeline %s: %w", id, err)
	}
	s.active = id
	s.collector.IncTimelineSwitches()

	desc := key.Descriptor()
	if err := s.client.SendTimelineAttrs(ctx, desc.Name, desc.Attrs); err != nil {
		s.active = types.TimelineID{}
		return fmt.Errorf("declare timeline %q: %w", desc.Name, err)
	}

	s.known[key] = id
	s.collector.IncTimelinesCreated()
	s.logger.Debug("new timeline", map[string]any{
		"timeline_id": id.String(),
		"name":        desc.Name,
		"key":         key.String(),
	})
	return nil
}

// Ordering returns the ordering the next event will carry, which is also
// the number of events sent.
func (s *Sender) Ordering() uint64 {
	return s.ordering
}

// Timelines returns the number of registered timelines.
func (s *Sender) Timelines() int {
	return len(s.known)
}
