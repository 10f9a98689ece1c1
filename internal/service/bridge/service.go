package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pianohome/keynote-bridge/internal/config"
	"github.com/pianohome/keynote-bridge/internal/domain/arming"
	"github.com/pianohome/keynote-bridge/internal/gesture"
	"github.com/pianohome/keynote-bridge/internal/ha"
	"github.com/pianohome/keynote-bridge/internal/logger"
	"github.com/pianohome/keynote-bridge/internal/midi"
)

// livenessInterval is how often the pump polls the device for presence.
// Some backends surface an unplugged device only through the port list.
const livenessInterval = time.Second

// productNamePlaceholder is substituted in the announcement template.
const productNamePlaceholder = "{product_name}"

// Service is the dispatch loop: it owns the device connection lifecycle,
// forwards note-on events through the chord, arming, confirmation and
// rate-limit gates, and invokes the outbound action when all gates pass.
//
// Events are processed strictly sequentially on the pump goroutine, so the
// detectors and the arming machine need no locking. Announcements are the
// only concurrent work and never feed back into state.
type Service struct {
	cfg        *config.Config
	mapping    *config.Mapping
	device     midi.Device
	dispatcher ha.Dispatcher

	machine *arming.Machine
	chords  *gesture.ChordDetector
	taps    *gesture.DoubleTapTracker
	limiter *gesture.RateLimiter

	reconnectDelay time.Duration

	// wg tracks in-flight fire-and-forget announcements.
	wg sync.WaitGroup
}

// NewService wires the detectors and the arming machine from configuration.
func NewService(
	cfg *config.Config,
	mapping *config.Mapping,
	device midi.Device,
	dispatcher ha.Dispatcher,
) *Service {
	machine := arming.NewMachine(arming.Config{
		Enabled:           cfg.Arming.Enabled,
		Sequence:          cfg.Arming.Sequence,
		SequenceTimeout:   cfg.Arming.SequenceTimeout.Std(),
		Chord:             cfg.Arming.Chord,
		RequireBoth:       cfg.Arming.RequireBoth,
		DisarmAfter:       cfg.Arming.DisarmAfter.Std(),
		DisarmAfterAction: cfg.Arming.DisarmAfterAdd,
		AnnounceOnArm:     cfg.Arming.AnnounceOnArm,
		AnnounceOnDisarm:  cfg.Arming.AnnounceOnDisarm,
		ArmMessage:        cfg.Arming.ArmMessage,
		DisarmMessage:     cfg.Arming.DisarmMessage,
	})

	return &Service{
		cfg:            cfg,
		mapping:        mapping,
		device:         device,
		dispatcher:     dispatcher,
		machine:        machine,
		chords:         gesture.NewChordDetector(cfg.Arming.ChordWindow.Std()),
		taps:           gesture.NewDoubleTapTracker(cfg.Confirmation.DoubleTapWindow.Std()),
		limiter:        gesture.NewRateLimiter(cfg.MIDI.RateLimitPerNote.Std()),
		reconnectDelay: cfg.Runtime.MIDIReconnectDelay.Std(),
	}
}

// Run drives the device connection lifecycle until the context is done.
// Device-level failures are never fatal: the arming state is reset, the
// device closed, and a reconnect attempt scheduled after a fixed delay.
func (s *Service) Run(ctx context.Context) error {
	defer s.wg.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}

		logger.Info(ctx, "Connecting to MIDI device...")

		if err := s.device.Open(s.cfg.MIDI.PortName); err != nil {
			logger.WarnKV(ctx, "MIDI device unavailable", "error", err)

			if !s.sleep(ctx, s.reconnectDelay) {
				return nil
			}

			continue
		}

		logger.Info(ctx, "MIDI device connected")

		err := s.pump(ctx)
		_ = s.device.Close()

		if ctx.Err() != nil {
			logger.Info(ctx, "Shutdown requested, MIDI device closed")
			return nil
		}

		logger.WarnKV(ctx, "MIDI connection lost", "error", err)
		logger.Infof(ctx, "Resetting arming state, retrying in %s", s.reconnectDelay)

		s.machine.Reset()
		s.chords.Clear()
		s.taps.Reset()
		s.dispatchNotifications(ctx)

		if !s.sleep(ctx, s.reconnectDelay) {
			return nil
		}
	}
}

// pump consumes the current event stream until it ends or the context is done.
// It returns the stream-end reason; a device that silently vanished is caught
// by the liveness ticker.
func (s *Service) pump(ctx context.Context) error {
	events := s.device.Events()

	liveness := time.NewTicker(livenessInterval)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if err := s.device.Err(); err != nil {
					return err
				}

				return midi.ErrDisconnected
			}

			s.handleEvent(ctx, ev)
		case <-liveness.C:
			if !s.device.IsAvailable() {
				return midi.ErrDisconnected
			}
		}
	}
}

// handleEvent routes one decoded event. Only note-on events drive the gates.
func (s *Service) handleEvent(ctx context.Context, ev midi.Event) {
	switch ev.Kind {
	case midi.NoteOn:
		s.handleNoteOn(ctx, ev)
	case midi.NoteOff, midi.ControlChange:
		logger.DebugKV(ctx, "Ignoring event", "kind", ev.Kind.String(), "note", ev.Note)
	}
}

// handleNoteOn applies the full gate pipeline to one key press.
func (s *Service) handleNoteOn(ctx context.Context, ev midi.Event) {
	note, at := ev.Note, ev.Time

	s.machine.OnNote(note, at)

	if chord := s.chords.AddPress(note, at); chord != nil {
		s.machine.OnChord(chord, at)
	}

	s.dispatchNotifications(ctx)

	if s.machine.State() != arming.Armed {
		logger.DebugKV(ctx, "Ignoring note, system not armed", "note", note)
		return
	}

	product := s.mapping.Lookup(note)
	if product == nil {
		if s.mapping.LogsUnmappedNotes() {
			logger.WarnKV(ctx, "No mapping for note", "note", note)
		}

		return
	}

	if s.cfg.Confirmation.DoubleTapEnabled && product.Confirmation == config.ConfirmationDoubleTap {
		if !s.taps.OnPress(note, at) {
			logger.InfoKV(ctx, "Waiting for second tap", "note", note, "product", product.DisplayName)
			return
		}
	}

	if !s.limiter.CanTrigger(note, at) {
		logger.WarnKV(ctx, "Rate limited", "note", note)
		return
	}

	logger.InfoKV(ctx, "Triggering action",
		"note", note, "product", product.DisplayName, "amount", product.Amount)

	result := s.dispatcher.AddProduct(ctx, ha.AddProductRequest{
		ProductID:     product.ProductID,
		Amount:        product.Amount,
		ConfigEntryID: product.ConfigEntryID,
	})
	if !result.Success {
		logger.ErrorKV(ctx, "Action failed",
			"product", product.DisplayName, "code", result.ErrorCode, "error", result.ErrorMessage)

		return
	}

	logger.InfoKV(ctx, "Product added", "product", product.DisplayName)

	if s.cfg.Announce.Enabled {
		message := strings.ReplaceAll(
			s.cfg.Announce.MessageTemplate, productNamePlaceholder, product.DisplayName)
		s.announce(ctx, message)
	}

	s.machine.OnActionSuccess()
	s.dispatchNotifications(ctx)
}

// dispatchNotifications drains queued arm/disarm announcements and fires them
// without blocking the decision path. Their results are only logged.
func (s *Service) dispatchNotifications(ctx context.Context) {
	for _, n := range s.machine.Drain() {
		switch n.Kind {
		case arming.NotifyArm:
			logger.InfoKV(ctx, "System armed", "trigger", n.Cause)
		case arming.NotifyDisarm:
			logger.Info(ctx, "System disarmed")
		}

		if n.Message != "" {
			s.announce(ctx, n.Message)
		}
	}
}

// announce fires one fire-and-forget announcement call.
func (s *Service) announce(ctx context.Context, message string) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		result := s.dispatcher.Announce(ctx, message, s.cfg.Announce.DeviceID, s.cfg.Announce.Preannounce)
		if !result.Success {
			logger.WarnKV(ctx, "Announcement failed",
				"code", result.ErrorCode, "error", result.ErrorMessage)
		}
	}()
}

// sleep waits for the duration or context cancellation, reporting whether the
// caller should keep running.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
