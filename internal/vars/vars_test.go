package vars

import (
	"testing"

	"github.com/openprocon/layerd/internal/event"
)

func TestStore_TypedAccessors(t *testing.T) {
	s := NewStore(event.NewBus())

	if got := s.GetInt(TempBanCeiling, DefaultTempBanCeiling); got != 3600 {
		t.Errorf("unset ceiling = %d, want default 3600", got)
	}

	s.Set(TempBanCeiling, "7200")
	if got := s.GetInt(TempBanCeiling, DefaultTempBanCeiling); got != 7200 {
		t.Errorf("ceiling = %d, want 7200", got)
	}

	s.Set(TempBanCeiling, "not a number")
	if got := s.GetInt(TempBanCeiling, 3600); got != 3600 {
		t.Errorf("unparseable ceiling = %d, want fallback 3600", got)
	}

	s.Set(GuestPrivileges, "4294967295")
	if got := s.GetUint32(GuestPrivileges, 0); got != 0xFFFFFFFF {
		t.Errorf("guest privileges = %d, want max uint32", got)
	}

	if !s.IsEmpty(GuestPassword) {
		t.Error("unset GUEST_PASSWORD should be empty")
	}
	s.Set(GuestPassword, "secret")
	if s.IsEmpty(GuestPassword) {
		t.Error("set GUEST_PASSWORD should not be empty")
	}
}

func TestStore_PublishesAddThenUpdate(t *testing.T) {
	bus := event.NewBus()
	s := NewStore(bus)

	var got []event.Event
	bus.Subscribe("capture", func(e event.Event) { got = append(got, e) })

	s.Set("X", "1")
	s.Set("X", "2")

	if len(got) != 2 {
		t.Fatalf("published %d events, want 2", len(got))
	}
	if got[0].Type != event.VariableAdded {
		t.Errorf("first event = %v, want VariableAdded", got[0].Type)
	}
	if got[1].Type != event.VariableUpdated {
		t.Errorf("second event = %v, want VariableUpdated", got[1].Type)
	}
	if p := got[1].Payload.(event.Variable); p.Name != "X" || p.Value != "2" {
		t.Errorf("payload = %+v, want {X 2}", p)
	}
}
