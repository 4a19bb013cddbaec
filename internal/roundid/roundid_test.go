package roundid

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	id := New()

	if len(id) != 26 {
		t.Errorf("expected 26 characters, got %d", len(id))
	}
	if err := Validate(id); err != nil {
		t.Errorf("generated ID failed validation: %v", err)
	}
}

func TestNewUnique(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestNewTimeSorted(t *testing.T) {
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, New())
		time.Sleep(2 * time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if strings.Compare(ids[i-1], ids[i]) >= 0 {
			t.Errorf("IDs not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestGeneratorWithReader(t *testing.T) {
	g := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0xff}, 64)))
	id := g.New()
	if err := Validate(id); err != nil {
		t.Fatalf("generated ID failed validation: %v", err)
	}
}

func TestEncode(t *testing.T) {
	var zero uuid.UUID
	if got := Encode(zero); got != strings.Repeat("0", 26) {
		t.Errorf("zero uuid encoded as %s", got)
	}

	var max uuid.UUID
	for i := range max {
		max[i] = 0xff
	}
	if got := Encode(max); got != "7"+strings.Repeat("z", 25) {
		t.Errorf("max uuid encoded as %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "01h2xcejqtf2nbrexx3vqjhp41", false},
		{"too short", "01h2xcejqt", true},
		{"too long", "01h2xcejqtf2nbrexx3vqjhp41a", true},
		{"first char too large", "81h2xcejqtf2nbrexx3vqjhp41", true},
		{"invalid char", "01h2xcejqtf2nbrexx3vqjhpi1", true},
		{"uppercase", "01H2XCEJQTF2NBREXX3VQJHP41", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
