package dedup

import (
	"strings"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	clusters := []Cluster{
		{Survivor: "a", Removed: []string{"b", "c"}, Size: 3},
		{Survivor: "d", Removed: []string{"e"}, Size: 2},
	}

	r := summarize(8, clusters, 7, 4, 250*time.Millisecond)

	if r.TotalDocuments != 8 {
		t.Errorf("TotalDocuments = %d, want 8", r.TotalDocuments)
	}
	if r.KeptCount != 5 || r.RemovedCount != 3 {
		t.Errorf("kept/removed = %d/%d, want 5/3", r.KeptCount, r.RemovedCount)
	}
	if r.DuplicateClusters != 2 {
		t.Errorf("DuplicateClusters = %d, want 2", r.DuplicateClusters)
	}
	if r.ClusterSizes[3] != 1 || r.ClusterSizes[2] != 1 || r.ClusterSizes[1] != 3 {
		t.Errorf("ClusterSizes = %v, want map[3:1 2:1 1:3]", r.ClusterSizes)
	}
	if want := 3.0 / 8.0; r.NearDuplicateRate != want {
		t.Errorf("NearDuplicateRate = %v, want %v", r.NearDuplicateRate, want)
	}
	if r.CandidatePairs != 7 || r.ConfirmedEdges != 4 {
		t.Errorf("candidates/confirmed = %d/%d, want 7/4", r.CandidatePairs, r.ConfirmedEdges)
	}
	if r.ProcessingTimeMs != 250 {
		t.Errorf("ProcessingTimeMs = %d, want 250", r.ProcessingTimeMs)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	r := summarize(0, nil, 0, 0, 0)
	if r.NearDuplicateRate != 0 {
		t.Errorf("NearDuplicateRate = %v, want 0 for empty input", r.NearDuplicateRate)
	}
	if len(r.ClusterSizes) != 0 {
		t.Errorf("ClusterSizes = %v, want empty", r.ClusterSizes)
	}
}

func TestSummarizeAllSingletons(t *testing.T) {
	r := summarize(4, nil, 0, 0, time.Millisecond)
	if r.KeptCount != 4 || r.RemovedCount != 0 {
		t.Errorf("kept/removed = %d/%d, want 4/0", r.KeptCount, r.RemovedCount)
	}
	if r.ClusterSizes[1] != 4 {
		t.Errorf("ClusterSizes = %v, want map[1:4]", r.ClusterSizes)
	}
}

func TestResultValidate(t *testing.T) {
	valid := func() *Result {
		return &Result{
			Kept:    []string{"a", "d"},
			Removed: map[string]string{"b": "a", "c": "a"},
			Clusters: []Cluster{
				{Survivor: "a", Removed: []string{"b", "c"}, Size: 3},
			},
			Report: Report{
				TotalDocuments:    4,
				KeptCount:         2,
				RemovedCount:      2,
				DuplicateClusters: 1,
				ClusterSizes:      map[int]int{3: 1, 1: 1},
			},
		}
	}

	tests := []struct {
		name     string
		mutate   func(r *Result)
		errorMsg string
	}{
		{
			name:   "consistent result",
			mutate: func(r *Result) {},
		},
		{
			name:     "partition does not cover input",
			mutate:   func(r *Result) { r.Report.TotalDocuments = 5 },
			errorMsg: "total documents",
		},
		{
			name:     "kept count mismatch",
			mutate:   func(r *Result) { r.Report.KeptCount = 3; r.Report.TotalDocuments = 4 },
			errorMsg: "kept_count",
		},
		{
			name: "id both kept and removed",
			mutate: func(r *Result) {
				r.Kept = []string{"a", "b"}
			},
			errorMsg: "both kept and removed",
		},
		{
			name: "removal points at missing survivor",
			mutate: func(r *Result) {
				r.Removed["c"] = "ghost"
			},
			errorMsg: "not kept",
		},
		{
			name: "cluster survivor was removed",
			mutate: func(r *Result) {
				r.Clusters[0].Survivor = "b"
			},
			errorMsg: "not kept",
		},
		{
			name: "cluster size disagrees with members",
			mutate: func(r *Result) {
				r.Clusters[0].Size = 5
			},
			errorMsg: "size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}
