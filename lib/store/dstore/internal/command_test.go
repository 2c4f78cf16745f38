package internal

import (
	"bytes"
	"testing"
)

// TestCommandRoundTrip checks that commands survive serialization
func TestCommandRoundTrip(t *testing.T) {
	commands := []Command{
		{Type: CommandTSet, Key: "k", Value: []byte("v")},
		{Type: CommandTSet, Key: "empty-value", Value: nil},
		{Type: CommandTSetTTLIfUnset, Key: "lock/latch/c1", Value: []byte{0xde, 0xad}, TTLSec: 30},
		{Type: CommandTDelete, Key: "entities/c1/record"},
		{Type: CommandTSet, Key: "", Value: []byte("keyless")},
	}

	for _, want := range commands {
		t.Run(want.Type.String()+"/"+want.Key, func(t *testing.T) {
			data := want.Serialize()

			if len(data) != want.SizeBytes() {
				t.Errorf("Serialize produced %d bytes, SizeBytes says %d", len(data), want.SizeBytes())
			}

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize failed: %v", err)
			}

			if got.Type != want.Type || got.Key != want.Key || got.TTLSec != want.TTLSec {
				t.Errorf("round trip changed fields: got %+v, want %+v", got, want)
			}
			if !bytes.Equal(got.Value, want.Value) {
				t.Errorf("round trip changed value: got %q, want %q", got.Value, want.Value)
			}
		})
	}
}

// TestCommandDeserializeCorrupt checks that truncated data is rejected
func TestCommandDeserializeCorrupt(t *testing.T) {
	full := (&Command{Type: CommandTSet, Key: "some-key", Value: []byte("value")}).Serialize()

	var cmd Command
	if err := cmd.Deserialize(nil); err == nil {
		t.Error("Deserialize(nil) should fail")
	}
	if err := cmd.Deserialize(full[:5]); err == nil {
		t.Error("Deserialize of a truncated header should fail")
	}
	if err := cmd.Deserialize(full[:14]); err == nil {
		t.Error("Deserialize of a truncated key should fail")
	}
}

// TestCommandBufferReuse checks that Deserialize reuses the value buffer
func TestCommandBufferReuse(t *testing.T) {
	var cmd Command
	if err := cmd.Deserialize((&Command{Type: CommandTSet, Key: "a", Value: []byte("long-initial-value")}).Serialize()); err != nil {
		t.Fatal(err)
	}
	first := &cmd.Value[0]

	if err := cmd.Deserialize((&Command{Type: CommandTSet, Key: "a", Value: []byte("short")}).Serialize()); err != nil {
		t.Fatal(err)
	}
	if &cmd.Value[0] != first {
		t.Error("smaller value should reuse the existing buffer")
	}
	if string(cmd.Value) != "short" {
		t.Errorf("value = %q, want %q", cmd.Value, "short")
	}
}
