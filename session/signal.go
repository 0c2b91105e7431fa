package session

// Session transitions are broadcast, not targeted: every device and surface
// subscribes on its own and tears its subscription down with its lifetime

type Signal interface {
	signalSealed()
}

// The whole session regained the VT
type ActivateSession struct{}

func (ActivateSession) signalSealed() {}

// The session lost the VT
type PauseSession struct{}

func (PauseSession) signalSealed() {}

// One device came back after a pause
type ActivateDevice struct {
	DeviceID uint64
}

func (ActivateDevice) signalSealed() {}

// One device was paused or yanked by the session manager
type PauseDevice struct {
	DeviceID uint64
	// True when the device is gone for good, not just paused
	Gone bool
}

func (PauseDevice) signalSealed() {}

// Subscription handle. Zero value subscribes to nothing
type SignalToken struct {
	id int
}

// Synchronous publish/subscribe registry for session signals. Single
// threaded like everything else on the loop; subscribers may unsubscribe
// themselves (or others) from inside a dispatch
type Signaler struct {
	nextID int
	subs   map[int]func(Signal)
}

func NewSignaler() *Signaler {
	return &Signaler{subs: make(map[int]func(Signal))}
}

func (s *Signaler) Register(cb func(Signal)) SignalToken {
	s.nextID++
	s.subs[s.nextID] = cb
	return SignalToken{id: s.nextID}
}

func (s *Signaler) Unregister(token SignalToken) {
	delete(s.subs, token.id)
}

// Delivers sig to every live subscriber. Subscribers removed mid-dispatch
// are skipped for the rest of this dispatch
func (s *Signaler) Emit(sig Signal) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if cb, ok := s.subs[id]; ok {
			cb(sig)
		}
	}
}
