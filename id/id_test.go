package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vndocker/pos-AI-community/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RunID", id.NewRunID, "wfrun_"},
		{"CheckpointID", id.NewCheckpointID, "ckpt_"},
		{"UserID", id.NewUserID, "user_"},
		{"AttemptID", id.NewAttemptID, "otp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"RunID", id.NewRunID, id.ParseRunID},
		{"CheckpointID", id.NewCheckpointID, id.ParseCheckpointID},
		{"UserID", id.NewUserID, id.ParseUserID},
		{"AttemptID", id.NewAttemptID, id.ParseAttemptID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseRunID rejects ckpt_", id.NewCheckpointID().String(), id.ParseRunID},
		{"ParseCheckpointID rejects user_", id.NewUserID().String(), id.ParseCheckpointID},
		{"ParseUserID rejects otp_", id.NewAttemptID().String(), id.ParseUserID},
		{"ParseAttemptID rejects wfrun_", id.NewRunID().String(), id.ParseAttemptID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	id.MustParse("not an id")
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		RunID id.RunID `json:"run_id"`
		Other id.ID    `json:"other"`
	}

	original := wrapper{RunID: id.NewRunID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var restored wrapper
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if restored.RunID.String() != original.RunID.String() {
		t.Errorf("RunID = %q, want %q", restored.RunID, original.RunID)
	}
	if !restored.Other.IsNil() {
		t.Error("expected nil Other after round-trip")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewUserID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromBytes.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromBytes.String(), original.String())
	}

	var nilScan id.ID
	if err := nilScan.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !nilScan.IsNil() {
		t.Error("expected nil after Scan(nil)")
	}

	nilVal, err := id.Nil.Value()
	if err != nil || nilVal != nil {
		t.Errorf("Nil.Value() = %v, %v; want nil, nil", nilVal, err)
	}

	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
