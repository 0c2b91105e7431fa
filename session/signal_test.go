package session

import "testing"

func TestSignalerDeliversToAll(t *testing.T) {
	s := NewSignaler()
	got := 0
	s.Register(func(Signal) { got++ })
	s.Register(func(Signal) { got++ })

	s.Emit(ActivateSession{})
	if got != 2 {
		t.Errorf("delivered to %d subscribers, want 2", got)
	}
}

func TestSignalerUnregister(t *testing.T) {
	s := NewSignaler()
	got := 0
	token := s.Register(func(Signal) { got++ })
	s.Unregister(token)

	s.Emit(PauseSession{})
	if got != 0 {
		t.Errorf("unregistered subscriber still received %d signals", got)
	}
}

// A subscriber removed from inside a dispatch is skipped for the rest of
// that dispatch
func TestSignalerUnregisterMidDispatch(t *testing.T) {
	s := NewSignaler()

	var tokens []SignalToken
	fired := make([]int, 3)
	for i := 0; i < 3; i++ {
		i := i
		token := s.Register(func(Signal) {
			fired[i]++
			// The first subscriber to run takes everyone else down
			for _, tok := range tokens {
				s.Unregister(tok)
			}
		})
		tokens = append(tokens, token)
	}

	s.Emit(PauseDevice{DeviceID: 5})

	total := fired[0] + fired[1] + fired[2]
	if total != 1 {
		t.Errorf("%d subscribers ran, want exactly 1", total)
	}

	// Nobody is left
	s.Emit(ActivateSession{})
	if fired[0]+fired[1]+fired[2] != 1 {
		t.Errorf("signals delivered after everyone unregistered")
	}
}

// Signal payloads carry through typed
func TestSignalPayloads(t *testing.T) {
	s := NewSignaler()
	var last Signal
	s.Register(func(sig Signal) { last = sig })

	s.Emit(PauseDevice{DeviceID: 9, Gone: true})
	pd, ok := last.(PauseDevice)
	if !ok {
		t.Fatalf("received %T, want PauseDevice", last)
	}
	if pd.DeviceID != 9 || !pd.Gone {
		t.Errorf("payload %+v", pd)
	}

	s.Emit(ActivateDevice{DeviceID: 9})
	if ad, ok := last.(ActivateDevice); !ok || ad.DeviceID != 9 {
		t.Errorf("received %+v, want ActivateDevice{9}", last)
	}
}
