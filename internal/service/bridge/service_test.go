package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pianohome/keynote-bridge/internal/config"
	"github.com/pianohome/keynote-bridge/internal/domain/arming"
	"github.com/pianohome/keynote-bridge/internal/ha"
	"github.com/pianohome/keynote-bridge/internal/midi"
)

// baseTime is the fixed origin for all test timelines.
var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// noteOn builds a note-on event at the given point on the timeline.
func noteOn(note int, at time.Time) midi.Event {
	return midi.Event{
		Time:     at,
		Kind:     midi.NoteOn,
		Note:     note,
		Velocity: 100,
		Channel:  1,
	}
}

// testConfig arms via the 60-62-64 sequence and reconnects quickly.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Arming.Sequence = []int{60, 62, 64}
	cfg.Runtime.MIDIReconnectDelay = config.Duration(time.Millisecond)

	return cfg
}

// testMapping maps note 72 (double-tap) and note 73 (single-tap).
func testMapping() *config.Mapping {
	return &config.Mapping{
		Notes: map[int]config.NoteMapping{
			72: {ProductID: "s100", ProductName: "Oat milk"},
			73: {ProductID: "s200", ProductName: "Coffee", Confirmation: config.ConfirmationSingleTap},
		},
	}
}

// fakeDispatcher records actions and announcements in memory.
type fakeDispatcher struct {
	mu            sync.Mutex
	adds          []ha.AddProductRequest
	announcements []string
	failAdd       bool
}

// AddProduct records the request and reports success unless failAdd is set.
func (f *fakeDispatcher) AddProduct(_ context.Context, req ha.AddProductRequest) *ha.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adds = append(f.adds, req)

	if f.failAdd {
		return &ha.Result{Success: false, ErrorCode: "unknown_error", ErrorMessage: "boom"}
	}

	return &ha.Result{Success: true}
}

// Announce records the message and reports success.
func (f *fakeDispatcher) Announce(_ context.Context, message, _ string, _ bool) *ha.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.announcements = append(f.announcements, message)

	return &ha.Result{Success: true}
}

// addCount returns how many product additions were attempted.
func (f *fakeDispatcher) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.adds)
}

// announced returns a copy of the recorded announcement messages.
func (f *fakeDispatcher) announced() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.announcements...)
}

// scriptedDevice returns one prepared event stream per Open call.
type scriptedDevice struct {
	mu      sync.Mutex
	streams []chan midi.Event
	errs    []error
	opens   int
}

// ListPorts reports a single fake port.
func (d *scriptedDevice) ListPorts() ([]string, error) {
	return []string{"scripted"}, nil
}

// Open hands out the next prepared stream.
func (d *scriptedDevice) Open(string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opens >= len(d.streams) {
		return midi.ErrNoPorts
	}

	d.opens++

	return nil
}

// Events returns the stream of the most recent Open.
func (d *scriptedDevice) Events() <-chan midi.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.streams[d.opens-1]
}

// Err returns the scripted end reason of the current stream.
func (d *scriptedDevice) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.errs[d.opens-1]
}

// IsAvailable always reports the device present.
func (d *scriptedDevice) IsAvailable() bool {
	return true
}

// Close is recorded implicitly by the next Open.
func (d *scriptedDevice) Close() error {
	return nil
}

// openCount returns how many times the device was opened.
func (d *scriptedDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opens
}

// TestHandleNoteOn_EndToEnd walks the full pipeline: arm via sequence, confirm
// via double tap, dispatch exactly one action, then rate-limit the follow-up.
func TestHandleNoteOn_EndToEnd(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	svc := NewService(testConfig(), testMapping(), &scriptedDevice{}, disp)
	ctx := context.Background()

	// Unlock sequence, one second apart so no chord forms.
	svc.handleNoteOn(ctx, noteOn(60, baseTime))
	svc.handleNoteOn(ctx, noteOn(62, baseTime.Add(time.Second)))
	svc.handleNoteOn(ctx, noteOn(64, baseTime.Add(2*time.Second)))

	require.Equal(t, arming.Armed, svc.machine.State())

	svc.wg.Wait()
	require.Equal(t, []string{"Piano is now armed and ready for shopping"}, disp.announced())

	// First tap waits, second tap within the window dispatches exactly once.
	svc.handleNoteOn(ctx, noteOn(72, baseTime.Add(3*time.Second)))
	require.Zero(t, disp.addCount())

	svc.handleNoteOn(ctx, noteOn(72, baseTime.Add(3400*time.Millisecond)))
	require.Equal(t, 1, disp.addCount())
	require.Equal(t, ha.AddProductRequest{ProductID: "s100", Amount: 1}, disp.adds[0])

	svc.wg.Wait()
	require.Contains(t, disp.announced(), "Oat milk was added to basket")

	// Single-tap mapping fires immediately.
	svc.handleNoteOn(ctx, noteOn(73, baseTime.Add(5*time.Second)))
	require.Equal(t, 2, disp.addCount())

	// A repeat within the cooldown is rate limited.
	svc.handleNoteOn(ctx, noteOn(73, baseTime.Add(5200*time.Millisecond)))
	require.Equal(t, 2, disp.addCount())
}

// TestHandleNoteOn_DropsWhileDisarmed verifies mapped notes never dispatch
// before the unlock ritual completes.
func TestHandleNoteOn_DropsWhileDisarmed(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	svc := NewService(testConfig(), testMapping(), &scriptedDevice{}, disp)
	ctx := context.Background()

	svc.handleNoteOn(ctx, noteOn(73, baseTime))
	svc.handleNoteOn(ctx, noteOn(73, baseTime.Add(time.Second)))
	svc.handleNoteOn(ctx, noteOn(50, baseTime.Add(2*time.Second)))

	require.Equal(t, arming.Disarmed, svc.machine.State())
	require.Zero(t, disp.addCount())
}

// TestHandleNoteOn_ActionFailureSkipsDisarmAfterAdd verifies a failed action
// leaves the machine armed when disarm-after-add is configured.
func TestHandleNoteOn_ActionFailureSkipsDisarmAfterAdd(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Arming.DisarmAfterAdd = true

	disp := &fakeDispatcher{failAdd: true}
	svc := NewService(cfg, testMapping(), &scriptedDevice{}, disp)
	ctx := context.Background()

	svc.handleNoteOn(ctx, noteOn(60, baseTime))
	svc.handleNoteOn(ctx, noteOn(62, baseTime.Add(time.Second)))
	svc.handleNoteOn(ctx, noteOn(64, baseTime.Add(2*time.Second)))

	svc.handleNoteOn(ctx, noteOn(73, baseTime.Add(3*time.Second)))
	require.Equal(t, 1, disp.addCount())
	require.Equal(t, arming.Armed, svc.machine.State())

	// A successful action then disarms.
	disp.mu.Lock()
	disp.failAdd = false
	disp.mu.Unlock()

	svc.handleNoteOn(ctx, noteOn(73, baseTime.Add(4*time.Second)))
	require.Equal(t, 2, disp.addCount())
	require.Equal(t, arming.Disarmed, svc.machine.State())

	svc.wg.Wait()
	require.Contains(t, disp.announced(), "Piano has been disarmed")
}

// TestRun_DeviceFailureResetsAndReconnects verifies a mid-stream failure
// resets the arming state and schedules exactly one reconnect attempt.
func TestRun_DeviceFailureResetsAndReconnects(t *testing.T) {
	t.Parallel()

	// First stream arms the system, then fails.
	first := make(chan midi.Event, 4)
	first <- noteOn(60, baseTime)
	first <- noteOn(62, baseTime.Add(time.Second))
	first <- noteOn(64, baseTime.Add(2*time.Second))
	close(first)

	// Second stream stays open until shutdown.
	second := make(chan midi.Event)

	dev := &scriptedDevice{
		streams: []chan midi.Event{first, second},
		errs:    []error{midi.ErrDisconnected, nil},
	}

	disp := &fakeDispatcher{}
	svc := NewService(testConfig(), testMapping(), dev, disp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- svc.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return dev.openCount() == 2
	}, time.Second, time.Millisecond)

	// The failure reset the arming state before the reconnect.
	require.Equal(t, arming.Disarmed, svc.machine.State())

	cancel()
	require.NoError(t, <-done)

	// One reconnect per failure, not duplicated.
	require.Equal(t, 2, dev.openCount())

	// Armed on the first stream, disarmed by the failure reset.
	announced := disp.announced()
	require.Contains(t, announced, "Piano is now armed and ready for shopping")
	require.Contains(t, announced, "Piano has been disarmed")
}

// TestLogDispatcher verifies the test-mode dispatcher always succeeds.
func TestLogDispatcher(t *testing.T) {
	t.Parallel()

	d := LogDispatcher{}

	result := d.AddProduct(context.Background(), ha.AddProductRequest{ProductID: "s1", Amount: 1})
	require.True(t, result.Success)

	result = d.Announce(context.Background(), "hello", "", false)
	require.True(t, result.Success)
}
