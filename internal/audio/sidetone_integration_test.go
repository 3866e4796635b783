//go:build integration

package audio

import (
	"context"
	"testing"
	"time"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func TestMalgoSidetone_ListDevices_Integration(t *testing.T) {
	s := NewMalgo(DefaultConfig())
	defer s.Close()

	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	devices, err := s.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	t.Logf("Found %d playback devices:", len(devices))
	for i := range devices {
		t.Logf("  [%d] %s", i, devices[i].Name())
	}
}

func TestMalgoSidetone_KeyTone_Integration(t *testing.T) {
	s := NewMalgo(DefaultConfig())
	defer s.Close()

	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	if err := s.Start(ctx); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyRunning)
	}

	// A single dit at 20 WPM.
	s.StartTone(600)
	time.Sleep(60 * time.Millisecond)
	s.StopTone()

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
}

func TestMalgoSidetone_ContextCancel_Integration(t *testing.T) {
	s := NewMalgo(DefaultConfig())
	defer s.Close()

	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	if s.IsRunning() {
		t.Error("IsRunning() = true after context cancel")
	}
}

func TestOtoSidetone_KeyTone_Integration(t *testing.T) {
	s := NewOto(DefaultConfig())
	defer s.Close()

	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.StartTone(600)
	time.Sleep(180 * time.Millisecond)
	s.StopTone()

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
