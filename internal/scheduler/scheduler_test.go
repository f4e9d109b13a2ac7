package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opentalon/leadgate/internal/analysis"
	"github.com/opentalon/leadgate/internal/store"
)

type countingAction struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (c *countingAction) run(_ context.Context, j Job) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, j)
	return "done", c.err
}

func (c *countingAction) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func TestStartValidation(t *testing.T) {
	noop := func(context.Context, Job) (string, error) { return "", nil }
	tests := []struct {
		name string
		jobs []Job
		want string
	}{
		{"missing name", []Job{{Schedule: "@every 1m", Action: "noop"}}, "name is required"},
		{"bad schedule", []Job{{Name: "a", Schedule: "every minute", Action: "noop"}}, "invalid schedule"},
		{"unknown action", []Job{{Name: "a", Schedule: "@hourly", Action: "nope"}}, "unknown action"},
		{"duplicate", []Job{
			{Name: "a", Schedule: "@hourly", Action: "noop"},
			{Name: "a", Schedule: "@daily", Action: "noop"},
		}, "defined twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(map[string]Action{"noop": noop}, nil)
			defer s.Stop()
			err := s.Start(tt.jobs)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Start err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRunNow(t *testing.T) {
	act := &countingAction{}
	s := New(map[string]Action{"count": act.run}, nil)
	defer s.Stop()
	if err := s.Start([]Job{{Name: "nightly", Schedule: "0 3 * * *", Action: "count", Limit: 5}}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	summary, err := s.RunNow(context.Background(), "nightly")
	if err != nil || summary != "done" {
		t.Fatalf("RunNow = %q, %v", summary, err)
	}
	if act.count() != 1 || act.jobs[0].Limit != 5 {
		t.Errorf("action saw %+v", act.jobs)
	}
	if _, err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
	if jobs := s.ListJobs(); len(jobs) != 1 || jobs[0].Name != "nightly" {
		t.Errorf("ListJobs = %+v", jobs)
	}
}

func TestRunNowReportsActionError(t *testing.T) {
	act := &countingAction{err: errors.New("db locked")}
	s := New(map[string]Action{"count": act.run}, nil)
	defer s.Stop()
	if err := s.Start([]Job{{Name: "j", Schedule: "@daily", Action: "count"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.RunNow(context.Background(), "j"); err == nil {
		t.Error("expected action error")
	}
}

func TestScheduledRunFires(t *testing.T) {
	act := &countingAction{}
	s := New(map[string]Action{"count": act.run}, nil)
	if err := s.Start([]Job{{Name: "tick", Schedule: "@every 1s", Action: "count"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for act.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if act.count() == 0 {
		t.Error("scheduled job never ran")
	}
}

type fakePending struct {
	records []store.LeadRecord
	limit   int
	err     error
}

func (f *fakePending) PendingAnalysis(_ context.Context, limit int) ([]store.LeadRecord, error) {
	f.limit = limit
	return f.records, f.err
}

type fakeAnalyzer struct{ ids []int64 }

func (f *fakeAnalyzer) Analyze(_ context.Context, l analysis.Lead, id int64) analysis.Outcome {
	f.ids = append(f.ids, id)
	return analysis.Outcome{LeadID: id, Success: l.TaxID != ""}
}

func TestReanalyzePending(t *testing.T) {
	src := &fakePending{records: []store.LeadRecord{
		{ID: 3, Company: "Acme", TaxID: "20123456789"},
		{ID: 7, Company: "Beta"},
	}}
	an := &fakeAnalyzer{}
	act := ReanalyzePending(src, an)

	summary, err := act(context.Background(), Job{Name: "r"})
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if src.limit != defaultReanalyzeLimit {
		t.Errorf("limit = %d, want default %d", src.limit, defaultReanalyzeLimit)
	}
	if len(an.ids) != 2 || an.ids[0] != 3 || an.ids[1] != 7 {
		t.Errorf("analyzed ids = %v", an.ids)
	}
	if summary != "reanalyzed 2 leads, 1 succeeded" {
		t.Errorf("summary = %q", summary)
	}

	if _, err := act(context.Background(), Job{Limit: 4}); err != nil || src.limit != 4 {
		t.Errorf("limit = %d, err %v", src.limit, err)
	}
}

func TestReanalyzePendingErrors(t *testing.T) {
	act := ReanalyzePending(&fakePending{err: errors.New("db gone")}, &fakeAnalyzer{})
	if _, err := act(context.Background(), Job{}); err == nil {
		t.Error("expected list error")
	}

	an := &fakeAnalyzer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	act = ReanalyzePending(&fakePending{records: []store.LeadRecord{{ID: 1}}}, an)
	if _, err := act(ctx, Job{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(an.ids) != 0 {
		t.Error("analyzed after cancellation")
	}
}
