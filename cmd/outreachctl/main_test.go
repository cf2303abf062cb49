package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/matheus3301/outreach/internal/lock"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestUnreachableReportsLockHolder(t *testing.T) {
	dir := t.TempDir()
	down := grpcstatus.Error(codes.Unavailable, "connection refused")

	err := unreachable("main", dir, down)
	if !strings.Contains(err.Error(), "no daemon running") {
		t.Errorf("without lock: %v", err)
	}

	l, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Release() }()
	err = unreachable("main", dir, down)
	if !strings.Contains(err.Error(), "holds workspace") || !errors.Is(err, down) {
		t.Errorf("with lock: %v", err)
	}
}

func TestUnreachablePassesOtherErrors(t *testing.T) {
	other := grpcstatus.Error(codes.NotFound, "campaign missing")
	if got := unreachable("main", t.TempDir(), other); got != other {
		t.Errorf("unreachable() = %v, want %v", got, other)
	}
}

func TestParseRecipient(t *testing.T) {
	r := parseRecipient("Ana:Acme")
	if r.Name != "Ana" || r.Company != "Acme" {
		t.Errorf("parseRecipient(Ana:Acme) = %+v", r)
	}
	if r := parseRecipient("Bo"); r.Name != "Bo" || r.Company != "" {
		t.Errorf("parseRecipient(Bo) = %+v", r)
	}
}
