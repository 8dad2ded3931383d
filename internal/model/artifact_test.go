package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func validInput() NewArtifactInput {
	return NewArtifactInput{
		Name:              "Quarterly deck",
		Type:              "deck",
		ShipDays:          7,
		DoneCriteria:      []string{"10 slides", "reviewed"},
		ExternalRecipient: "boss@example.com",
		MaxWordCount:      100,
	}
}

func TestNewArtifactInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *NewArtifactInput)
		wantErr error
	}{
		{"valid 7 days", func(in *NewArtifactInput) {}, nil},
		{"8 days exceeds window", func(in *NewArtifactInput) { in.ShipDays = 8 }, ErrShipWindowExceeded},
		{"0 days too short", func(in *NewArtifactInput) { in.ShipDays = 0 }, ErrShipWindowTooShort},
		{"5 criteria ok", func(in *NewArtifactInput) { in.DoneCriteria = []string{"a", "b", "c", "d", "e"} }, nil},
		{"6 criteria exceed limit", func(in *NewArtifactInput) { in.DoneCriteria = []string{"a", "b", "c", "d", "e", "f"} }, ErrDoneCriteriaLimit},
		{"no criteria", func(in *NewArtifactInput) { in.DoneCriteria = nil }, ErrDoneCriteriaRequired},
		{"blank name", func(in *NewArtifactInput) { in.Name = "  " }, ErrNameRequired},
		{"zero word limit", func(in *NewArtifactInput) { in.MaxWordCount = 0 }, ErrInvalidWordLimit},
		{"window checked before criteria", func(in *NewArtifactInput) {
			in.ShipDays = 9
			in.DoneCriteria = []string{"a", "b", "c", "d", "e", "f"}
		}, ErrShipWindowExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("KindOf = %v, want validation", KindOf(err))
			}
		})
	}
}

func TestNewArtifact(t *testing.T) {
	a := NewArtifact("art-1", validInput(), t0)
	if a.Status != StatusActive {
		t.Errorf("Status = %q, want active", a.Status)
	}
	if a.Version != 1 {
		t.Errorf("Version = %d, want 1", a.Version)
	}
	if a.Content != "" || a.CurrentWordCount != 0 {
		t.Errorf("content = %q/%d, want empty", a.Content, a.CurrentWordCount)
	}
	if want := t0.Add(7 * 24 * time.Hour); !a.ShipDate.Equal(want) {
		t.Errorf("ShipDate = %v, want %v", a.ShipDate, want)
	}
	if a.EditLocked || a.DoneCriteriaMet || a.ProofSubmitted {
		t.Error("flags should start false")
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"  one two\tthree\n\nfour  ", 4},
	}
	for _, tt := range tests {
		if got := CountWords(tt.in); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetContent_ScopeLock(t *testing.T) {
	a := NewArtifact("art-1", validInput(), t0)

	if err := a.SetContent(strings.Repeat("word ", 100)); err != nil {
		t.Fatalf("100 words: %v", err)
	}
	if a.CurrentWordCount != 100 {
		t.Errorf("CurrentWordCount = %d, want 100", a.CurrentWordCount)
	}
	if a.Version != 2 {
		t.Errorf("Version = %d, want 2", a.Version)
	}

	before := a
	err := a.SetContent(strings.Repeat("word ", 101))
	if !errors.Is(err, ErrScopeExceeded) {
		t.Fatalf("101 words: err = %v, want ErrScopeExceeded", err)
	}
	if a.Content != before.Content || a.CurrentWordCount != 100 || a.Version != 2 {
		t.Error("rejected edit must leave artifact unchanged")
	}
}

func TestLockFreezesContent(t *testing.T) {
	a := NewArtifact("art-1", validInput(), t0)
	if err := a.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if a.Status != StatusLocked || !a.EditLocked || !a.DoneCriteriaMet {
		t.Errorf("after Lock: status=%q edit_locked=%v met=%v", a.Status, a.EditLocked, a.DoneCriteriaMet)
	}
	if err := a.SetContent("x"); !errors.Is(err, ErrEditLocked) {
		t.Errorf("SetContent after Lock = %v, want ErrEditLocked", err)
	}
	if err := a.Lock(); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("second Lock = %v, want ErrIllegalTransition", err)
	}
}

func TestShipRequiresProof(t *testing.T) {
	a := NewArtifact("art-1", validInput(), t0)
	ship := t0.Add(time.Hour)

	if err := a.Ship(ship); !errors.Is(err, ErrRealityGateNotPassed) {
		t.Fatalf("Ship without proof = %v, want gate error", err)
	}
	if KindOf(ErrRealityGateNotPassed) != KindGate {
		t.Error("gate error kind mismatch")
	}

	a.SubmitProof("https://example.com/sent")
	if err := a.Ship(ship); err != nil {
		t.Fatalf("Ship with proof: %v", err)
	}
	if a.Status != StatusShipped || a.ShippedAt == nil || !a.EditLocked {
		t.Errorf("after Ship: status=%q shipped_at=%v edit_locked=%v", a.Status, a.ShippedAt, a.EditLocked)
	}
	if !a.OnTime() {
		t.Error("shipped before deadline should be on time")
	}
	if err := a.Ship(ship); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("second Ship = %v, want ErrIllegalTransition", err)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		wantErr bool
	}{
		{StatusActive, StatusLocked, false},
		{StatusActive, StatusArchived, false},
		{StatusActive, StatusShipped, false},
		{StatusLocked, StatusShipped, false},
		{StatusLocked, StatusArchived, false},

		{StatusLocked, StatusActive, true},
		{StatusShipped, StatusArchived, true},
		{StatusShipped, StatusActive, true},
		{StatusArchived, StatusActive, true},
		{StatusArchived, StatusShipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			a := &Artifact{Status: tt.from}
			err := a.ValidateTransition(tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%q->%q) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
	if !StatusShipped.IsTerminal() || !StatusArchived.IsTerminal() || StatusActive.IsTerminal() {
		t.Error("IsTerminal mismatch")
	}
}

func TestOnTime_Late(t *testing.T) {
	a := NewArtifact("art-1", validInput(), t0)
	a.SubmitProof("https://example.com")
	if err := a.Ship(a.ShipDate.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if a.OnTime() {
		t.Error("shipped after deadline should be late")
	}
}
