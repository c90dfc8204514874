package results

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/civiq-care/backend/internal/survey"
)

func TestFileSinkWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	rec := survey.Record{
		UserID:      "tg:12345",
		Answers:     map[int]int{1: 3, 2: 5},
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
		TotalScore:  8,
		MaxScore:    10,
		Percentage:  80,
	}
	if err := sink.Store(context.Background(), rec); err != nil {
		t.Fatalf("store: %v", err)
	}

	path := filepath.Join(dir, "results_tg_12345.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got survey.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal artifact: %v", err)
	}
	if got.UserID != rec.UserID || got.TotalScore != 8 || got.Answers[2] != 5 {
		t.Fatalf("artifact mismatch: %+v", got)
	}
}

func TestFileSinkOverwritesPriorArtifact(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ctx := context.Background()

	first := survey.Record{UserID: "u1", Answers: map[int]int{1: 1}, TotalScore: 1, MaxScore: 5, Percentage: 20}
	second := survey.Record{UserID: "u1", Answers: map[int]int{1: 5}, TotalScore: 5, MaxScore: 5, Percentage: 100}
	if err := sink.Store(ctx, first); err != nil {
		t.Fatalf("store first: %v", err)
	}
	if err := sink.Store(ctx, second); err != nil {
		t.Fatalf("store second: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one artifact, found %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var got survey.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalScore != 5 {
		t.Fatalf("artifact not overwritten: %+v", got)
	}
}

func TestFileSinkHonorsCancelledContext(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Store(ctx, survey.Record{UserID: "u1"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
