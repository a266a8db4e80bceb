package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultIsOneSecond", func(t *testing.T) {
		b := NewBackoff(0)

		for i := 0; i < 10; i++ {
			if got := b.Next(); got != ReconnectDelay {
				t.Errorf("Attempt %d: delay = %v, want %v", i, got, ReconnectDelay)
			}
		}
		if b.Attempts() != 10 {
			t.Errorf("Attempts() = %d, want 10", b.Attempts())
		}
	})

	t.Run("CustomDelayStaysFixed", func(t *testing.T) {
		b := NewBackoff(200 * time.Millisecond)

		for i := 0; i < 3; i++ {
			if got := b.Next(); got != 200*time.Millisecond {
				t.Errorf("Attempt %d: delay = %v, want 200ms", i, got)
			}
		}

		b.Reset()
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
		if got := b.Next(); got != 200*time.Millisecond {
			t.Errorf("delay after reset = %v, want 200ms", got)
		}
	})
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		var connectedCalled bool
		m.OnConnected(func() { connectedCalled = true })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if !connectedCalled {
			t.Error("OnConnected callback was not called")
		}
		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
		if err := m.Connect(context.Background()); err != ErrAlreadyConnected {
			t.Errorf("Second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("FailedConnectSchedulesRetry", func(t *testing.T) {
		expectedErr := errors.New("connection refused")
		m := NewManager(func(ctx context.Context) error { return expectedErr })
		defer m.Close()

		if err := m.Connect(context.Background()); err != expectedErr {
			t.Errorf("Connect() error = %v, want %v", err, expectedErr)
		}
		if m.State() != StateReconnecting {
			t.Errorf("State() = %v, want StateReconnecting", m.State())
		}
	})

	t.Run("FailedConnectWithoutAutoReconnect", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return errors.New("refused") })
		m.SetAutoReconnect(false)
		defer m.Close()

		m.Connect(context.Background())
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		m.SetAutoReconnect(false)
		defer m.Close()

		var transitions []struct{ old, new State }
		m.OnStateChange(func(old, new State) {
			transitions = append(transitions, struct{ old, new State }{old, new})
		})

		m.Connect(context.Background())
		m.NotifyConnectionLost()

		expected := []struct{ old, new State }{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}
		if len(transitions) != len(expected) {
			t.Fatalf("Got %d transitions, want %d", len(transitions), len(expected))
		}
		for i, exp := range expected {
			if transitions[i] != exp {
				t.Errorf("Transition %d: got %v→%v, want %v→%v",
					i, transitions[i].old, transitions[i].new, exp.old, exp.new)
			}
		}
	})
}

// manualAfter hands out delays to the test and fires only when told to.
type manualAfter struct {
	delays chan time.Duration
	fire   chan time.Time
}

func newManualAfter() *manualAfter {
	return &manualAfter{
		delays: make(chan time.Duration, 16),
		fire:   make(chan time.Time),
	}
}

func (a *manualAfter) After(d time.Duration) <-chan time.Time {
	a.delays <- d
	return a.fire
}

func (a *manualAfter) expectDelay(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-a.delays:
		return d
	case <-time.After(time.Second):
		t.Fatal("no reconnect scheduled")
		return 0
	}
}

func (a *manualAfter) expectNoDelay(t *testing.T) {
	t.Helper()
	select {
	case d := <-a.delays:
		t.Errorf("unexpected reconnect scheduled after %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerReconnect(t *testing.T) {
	t.Run("OneAttemptAfterOneSecond", func(t *testing.T) {
		after := newManualAfter()
		var connectCount atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, Config{After: after.After})
		m.StartReconnectLoop()
		defer m.Close()

		connected := make(chan struct{}, 2)
		m.OnConnected(func() { connected <- struct{}{} })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		<-connected

		m.NotifyConnectionLost()

		if d := after.expectDelay(t); d != time.Second {
			t.Errorf("reconnect delay = %v, want 1s", d)
		}
		after.expectNoDelay(t)
		if connectCount.Load() != 1 {
			t.Errorf("connect called %d times before the delay elapsed", connectCount.Load())
		}
		if m.State() != StateReconnecting {
			t.Errorf("State() = %v, want StateReconnecting", m.State())
		}

		after.fire <- time.Now()

		select {
		case <-connected:
		case <-time.After(time.Second):
			t.Fatal("not reconnected")
		}
		if connectCount.Load() != 2 {
			t.Errorf("connect called %d times, want 2", connectCount.Load())
		}
		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
		after.expectNoDelay(t)
	})

	t.Run("UnlimitedRetries", func(t *testing.T) {
		after := newManualAfter()
		var connectCount atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			if connectCount.Add(1) < 6 {
				return errors.New("not yet")
			}
			return nil
		}, Config{After: after.After})
		m.StartReconnectLoop()
		defer m.Close()

		var attempts []int
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			attempts = append(attempts, attempt)
		})

		connected := make(chan struct{}, 1)
		m.OnConnected(func() { connected <- struct{}{} })

		m.Connect(context.Background())

		for i := 0; i < 5; i++ {
			if d := after.expectDelay(t); d != time.Second {
				t.Errorf("retry %d delay = %v, want 1s", i, d)
			}
			after.fire <- time.Now()
		}

		select {
		case <-connected:
		case <-time.After(time.Second):
			t.Fatal("not reconnected")
		}
		if connectCount.Load() != 6 {
			t.Errorf("connect called %d times, want 6", connectCount.Load())
		}
		if len(attempts) != 5 || attempts[4] != 5 {
			t.Errorf("attempts = %v, want [1 2 3 4 5]", attempts)
		}
	})

	t.Run("ConfiguredDelay", func(t *testing.T) {
		after := newManualAfter()
		m := NewManagerWithConfig(func(ctx context.Context) error {
			return errors.New("refused")
		}, Config{Delay: 250 * time.Millisecond, After: after.After})
		m.StartReconnectLoop()
		defer m.Close()

		m.Connect(context.Background())
		if d := after.expectDelay(t); d != 250*time.Millisecond {
			t.Errorf("reconnect delay = %v, want 250ms", d)
		}
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		after := newManualAfter()
		var connectCount atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, Config{After: after.After})
		m.SetAutoReconnect(false)
		m.StartReconnectLoop()
		defer m.Close()

		m.Connect(context.Background())
		m.NotifyConnectionLost()

		after.expectNoDelay(t)
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
		if connectCount.Load() != 1 {
			t.Errorf("Connect called %d times, want 1", connectCount.Load())
		}
	})

	t.Run("CloseStopsLoop", func(t *testing.T) {
		after := newManualAfter()
		m := NewManagerWithConfig(func(ctx context.Context) error {
			return errors.New("refused")
		}, Config{After: after.After})
		m.StartReconnectLoop()

		m.Connect(context.Background())
		after.expectDelay(t)

		done := make(chan struct{})
		go func() {
			m.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Close blocked")
		}
		if m.State() != StateClosed {
			t.Errorf("State() = %v, want StateClosed", m.State())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
