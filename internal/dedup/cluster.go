package dedup

import (
	"sort"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/similarity"
)

// Cluster is one connected component of confirmed near-duplicate edges.
// Membership is transitive: A~B and B~C place all three in one cluster even
// when A and C never met the threshold directly.
type Cluster struct {
	// Survivor is the ID of the document kept to represent the cluster.
	Survivor string `json:"survivor"`

	// Removed lists the member IDs marked as duplicates, in ingestion order.
	Removed []string `json:"removed"`

	// Size is the total member count including the survivor.
	Size int `json:"size"`
}

// buildClusters groups confirmed edges into connected components and elects
// one survivor per component. It returns the duplicate clusters (components
// of size two or more) ordered by the ingestion position of their earliest
// member, plus the removed-ID to survivor-ID mapping.
func buildClusters(docs []corpus.Document, edges []similarity.Pair, policy SurvivorPolicy) ([]Cluster, map[string]string) {
	removed := make(map[string]string)
	if len(edges) == 0 {
		return nil, removed
	}

	uf := newUnionFind(len(docs))
	for _, e := range edges {
		uf.union(e.A, e.B)
	}

	// Group member indices under their root. Ascending iteration keeps each
	// member list in ingestion order.
	components := make(map[int][]int)
	for i := range docs {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	var clusters []Cluster
	var firstMember []int
	for _, members := range components {
		if len(members) < 2 {
			continue // singleton, not a duplicate cluster
		}

		survivor := electSurvivor(docs, members, policy)
		c := Cluster{Survivor: docs[survivor].ID, Size: len(members)}
		for _, m := range members {
			if m == survivor {
				continue
			}
			c.Removed = append(c.Removed, docs[m].ID)
			removed[docs[m].ID] = docs[survivor].ID
		}

		clusters = append(clusters, c)
		firstMember = append(firstMember, members[0])
	}

	// Map iteration order is randomized, so anchor the cluster order to the
	// earliest member of each component.
	sort.Sort(&clustersByFirstMember{clusters: clusters, first: firstMember})
	return clusters, removed
}

// electSurvivor picks the surviving member index under the policy. Member
// slices are in ingestion order and positions are unique, so both policies
// define a total order and elections are deterministic.
func electSurvivor(docs []corpus.Document, members []int, policy SurvivorPolicy) int {
	best := members[0]
	if policy != SurvivorHighestQualityScore {
		return best
	}

	bestScore := docs[best].QualityScore()
	for _, m := range members[1:] {
		if score := docs[m].QualityScore(); score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

// clustersByFirstMember sorts clusters and their first-member positions in
// lockstep.
type clustersByFirstMember struct {
	clusters []Cluster
	first    []int
}

func (s *clustersByFirstMember) Len() int           { return len(s.clusters) }
func (s *clustersByFirstMember) Less(i, j int) bool { return s.first[i] < s.first[j] }
func (s *clustersByFirstMember) Swap(i, j int) {
	s.clusters[i], s.clusters[j] = s.clusters[j], s.clusters[i]
	s.first[i], s.first[j] = s.first[j], s.first[i]
}
