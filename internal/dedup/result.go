package dedup

import (
	"fmt"
	"time"
)

// Result is the outcome of one deduplication run: the kept/removed
// partition, the duplicate clusters behind it, and aggregate statistics.
type Result struct {
	// Kept holds the IDs of surviving documents in ingestion order.
	Kept []string `json:"kept"`

	// Removed maps each removed document ID to the ID of the survivor it
	// duplicates.
	Removed map[string]string `json:"removed"`

	// Clusters lists the duplicate clusters (size >= 2) ordered by the
	// ingestion position of their earliest member.
	Clusters []Cluster `json:"clusters"`

	// Report carries the run statistics.
	Report Report `json:"report"`
}

// Report aggregates statistics for a deduplication run.
type Report struct {
	// TotalDocuments is the input batch size.
	TotalDocuments int `json:"total_documents"`

	// KeptCount and RemovedCount partition TotalDocuments.
	KeptCount    int `json:"kept_count"`
	RemovedCount int `json:"removed_count"`

	// DuplicateClusters counts clusters of size >= 2.
	DuplicateClusters int `json:"duplicate_clusters"`

	// ClusterSizes is a histogram from cluster size to occurrence count.
	// Size 1 counts the documents that belong to no duplicate cluster.
	ClusterSizes map[int]int `json:"cluster_sizes"`

	// NearDuplicateRate is RemovedCount/TotalDocuments, 0 for empty input.
	NearDuplicateRate float64 `json:"near_duplicate_rate"`

	// CandidatePairs counts distinct pairs surfaced by LSH banding;
	// ConfirmedEdges counts those that passed threshold verification.
	CandidatePairs int `json:"candidate_pairs"`
	ConfirmedEdges int `json:"confirmed_edges"`

	// ProcessingTimeMs is the wall-clock duration of the run.
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// summarize builds the aggregate report for a finished run.
func summarize(total int, clusters []Cluster, candidates, confirmed int, elapsed time.Duration) Report {
	r := Report{
		TotalDocuments:   total,
		ClusterSizes:     make(map[int]int),
		CandidatePairs:   candidates,
		ConfirmedEdges:   confirmed,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	clustered := 0
	for _, c := range clusters {
		r.DuplicateClusters++
		r.ClusterSizes[c.Size]++
		r.RemovedCount += len(c.Removed)
		clustered += c.Size
	}
	if singletons := total - clustered; singletons > 0 {
		r.ClusterSizes[1] = singletons
	}

	r.KeptCount = total - r.RemovedCount
	if total > 0 {
		r.NearDuplicateRate = float64(r.RemovedCount) / float64(total)
	}
	return r
}

// Validate checks the internal consistency of a result: the kept and
// removed sets must partition the input, every removal must point at a kept
// survivor, and the report counters must agree with the underlying data.
func (r *Result) Validate() error {
	if len(r.Kept)+len(r.Removed) != r.Report.TotalDocuments {
		return fmt.Errorf("kept (%d) + removed (%d) != total documents (%d)",
			len(r.Kept), len(r.Removed), r.Report.TotalDocuments)
	}
	if r.Report.KeptCount != len(r.Kept) {
		return fmt.Errorf("report kept_count %d != %d kept ids", r.Report.KeptCount, len(r.Kept))
	}
	if r.Report.RemovedCount != len(r.Removed) {
		return fmt.Errorf("report removed_count %d != %d removed ids", r.Report.RemovedCount, len(r.Removed))
	}
	if r.Report.DuplicateClusters != len(r.Clusters) {
		return fmt.Errorf("report duplicate_clusters %d != %d clusters", r.Report.DuplicateClusters, len(r.Clusters))
	}

	kept := make(map[string]struct{}, len(r.Kept))
	for _, id := range r.Kept {
		if _, dup := kept[id]; dup {
			return fmt.Errorf("kept id %q appears twice", id)
		}
		if _, alsoRemoved := r.Removed[id]; alsoRemoved {
			return fmt.Errorf("id %q is both kept and removed", id)
		}
		kept[id] = struct{}{}
	}
	for id, survivor := range r.Removed {
		if _, ok := kept[survivor]; !ok {
			return fmt.Errorf("removed id %q points at survivor %q which is not kept", id, survivor)
		}
	}

	for i, c := range r.Clusters {
		if _, ok := kept[c.Survivor]; !ok {
			return fmt.Errorf("cluster %d survivor %q is not kept", i, c.Survivor)
		}
		if c.Size != len(c.Removed)+1 {
			return fmt.Errorf("cluster %d size %d != %d removed + survivor", i, c.Size, len(c.Removed))
		}
		for _, id := range c.Removed {
			if got := r.Removed[id]; got != c.Survivor {
				return fmt.Errorf("cluster %d member %q maps to survivor %q, want %q", i, id, got, c.Survivor)
			}
		}
	}
	return nil
}
