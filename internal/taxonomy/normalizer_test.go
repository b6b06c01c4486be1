package taxonomy

import (
	"errors"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

func seededNormalizer(t *testing.T) (*Normalizer, *Hierarchy) {
	t.Helper()
	h := NewMemoryHierarchy()
	if err := h.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return NewNormalizer(h, nil), h
}

func TestNormalizer_Normalize(t *testing.T) {
	n, _ := seededNormalizer(t)

	tests := []struct {
		raw     string
		meta    domain.MetaTag
		want    string
		wantErr error
	}{
		{"stroke", domain.MetaDisease, "stroke", nil},
		{"CVA", domain.MetaDisease, "stroke", nil},
		{"c.v.a.", domain.MetaDisease, "stroke", nil},
		{"Cerebrovascular Accident", domain.MetaDisease, "stroke", nil},
		{"脳卒中", domain.MetaDisease, "stroke", nil},
		{"sEMG", domain.MetaMethod, "emg", nil},
		{"Gait Analysis", domain.MetaMethod, "gait_analysis", nil},
		{"stroke", domain.MetaMethod, "", domain.ErrUnknownTag},
		{"unheard_of", domain.MetaDisease, "", domain.ErrUnknownTag},
		{"", domain.MetaDisease, "", domain.ErrUnknownTag},
		{"stroke", domain.MetaTag("organ"), "", domain.ErrValidation},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.raw, tt.meta)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Normalize(%q, %s) err = %v, want %v", tt.raw, tt.meta, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Normalize(%q, %s) = %q, %v; want %q", tt.raw, tt.meta, got, err, tt.want)
		}
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n, h := seededNormalizer(t)
	for tag := range h.Tags("") {
		for _, raw := range append([]string{tag.Name}, tag.Aliases...) {
			once, err := n.Normalize(raw, tag.MetaTag)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", raw, err)
			}
			twice, err := n.Normalize(once, tag.MetaTag)
			if err != nil || twice != once {
				t.Errorf("Normalize(Normalize(%q)) = %q, %v; want %q", raw, twice, err, once)
			}
		}
	}
}

func TestNormalizer_NormalizeOrRegister(t *testing.T) {
	n, h := seededNormalizer(t)

	got, registered, err := n.NormalizeOrRegister("CVA", domain.MetaDisease)
	if err != nil || registered || got != "stroke" {
		t.Errorf("known alias: %q, %v, %v", got, registered, err)
	}

	got, registered, err = n.NormalizeOrRegister("Multiple Sclerosis", domain.MetaDisease)
	if err != nil || !registered || got != "multiple_sclerosis" {
		t.Fatalf("new tag: %q, %v, %v", got, registered, err)
	}
	if !h.IsCanonical(domain.MetaDisease, "multiple_sclerosis") {
		t.Error("tag was not registered")
	}

	if _, _, err := n.NormalizeOrRegister("...", domain.MetaDisease); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty key: got %v", err)
	}
}

func TestNormalizer_ResolveAny(t *testing.T) {
	n, _ := seededNormalizer(t)

	meta, tag, err := n.ResolveAny("electromyography")
	if err != nil || meta != domain.MetaMethod || tag != "emg" {
		t.Errorf("ResolveAny = %s, %q, %v", meta, tag, err)
	}
	if _, _, err := n.ResolveAny("nothing_like_it"); !errors.Is(err, domain.ErrUnknownTag) {
		t.Errorf("miss: got %v", err)
	}
}
