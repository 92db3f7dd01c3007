package router

import (
	"errors"
	"path/filepath"
	"testing"
)

func defaults() map[string]string {
	return map[string]string{
		CapabilityChat:  "gemini-2.5-pro",
		CapabilityImage: "imagen-4.0-generate-preview-06-06",
		CapabilityVideo: "veo-3.0-generate-preview",
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	t.Parallel()

	r, err := New(filepath.Join(t.TempDir(), "models.json"), defaults(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := r.Get("chat")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "gemini-2.5-pro" {
		t.Fatalf("Get(chat) = %q, want default", got)
	}
}

func TestSetUnknownCapability(t *testing.T) {
	t.Parallel()

	r, err := New(filepath.Join(t.TempDir(), "models.json"), defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Set("audio", "some-model"); !errors.Is(err, ErrUnknownCapability) {
		t.Fatalf("Set(audio) error = %v, want ErrUnknownCapability", err)
	}
	if _, err := r.Get("audio"); !errors.Is(err, ErrUnknownCapability) {
		t.Fatalf("Get(audio) error = %v, want ErrUnknownCapability", err)
	}
}

func TestSetPersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.json")
	r, err := New(path, defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Set("chat", "gemini-2.5-flash"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reloaded, err := New(path, defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get("chat")
	if err != nil {
		t.Fatal(err)
	}
	if got != "gemini-2.5-flash" {
		t.Fatalf("Get(chat) after restart = %q, want gemini-2.5-flash", got)
	}
}

func TestSnapshotIsStable(t *testing.T) {
	t.Parallel()

	r, err := New(filepath.Join(t.TempDir(), "models.json"), defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := r.Snapshot()
	if err := r.Set("chat", "gemini-2.5-flash"); err != nil {
		t.Fatal(err)
	}
	if snap[CapabilityChat] != "gemini-2.5-pro" {
		t.Fatalf("snapshot mutated by later Set: %q", snap[CapabilityChat])
	}
	if r.Snapshot()[CapabilityChat] != "gemini-2.5-flash" {
		t.Fatal("new snapshot missing rebind")
	}
}
