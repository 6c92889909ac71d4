package insights

import (
	"math"
	"sort"

	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

// watchTimeFactor approximates average watch time as a share of the concept's
// duration. It is a placeholder, not a measurement.
const watchTimeFactor = 0.85

const topStruggles = 3

type ConceptInsight struct {
	ConceptID     string  `json:"conceptId"`
	ConceptName   string  `json:"conceptName"`
	SessionID     string  `json:"sessionId,omitempty"`
	ReplayCount   int     `json:"replayCount"`
	DropOffCount  int     `json:"dropOffCount"`
	TotalEvents   int     `json:"totalEvents"`
	AvgWatchTime  float64 `json:"avgWatchTime"`
	StruggleScore float64 `json:"struggleScore"`
}

type ClusterInsight struct {
	Cluster            views.Cluster `json:"cluster"`
	EmployeeCount      int           `json:"employeeCount"`
	StrugglingConcepts []string      `json:"strugglingConcepts"`
	AvgEngagement      float64       `json:"avgEngagement"`
}

// ClusterAssigner maps a trainee to a behavioral cluster. Assignment happens
// outside this package.
type ClusterAssigner interface {
	ClusterOf(t views.TraineeView) (views.Cluster, bool)
}

// StoredClusters reads the label stored on the Trainee-View.
type StoredClusters struct{}

func (StoredClusters) ClusterOf(t views.TraineeView) (views.Cluster, bool) {
	c := views.Cluster(t.Cluster)
	return c, c.Valid()
}

type tally struct {
	replays, dropOffs, total int
}

// StruggleScore is min(100, (replays*2 + dropOffs*3) / max(total, 1) * 20).
func StruggleScore(replays, dropOffs, total int) float64 {
	score := (float64(replays*2+dropOffs*3) / float64(max(total, 1))) * 20
	return math.Min(score, 100)
}

// ComputeConceptInsights scores every concept against the events scoped to it
// and orders them by score, keeping definition order among equal scores.
// A concept with a session only counts events from that session.
func ComputeConceptInsights(events []playback.Event, concepts []*catalog.Concept) []ConceptInsight {
	type key struct{ session, concept string }
	bySessionConcept := make(map[key]*tally)
	byConcept := make(map[string]*tally)
	bump := func(m map[key]*tally, k key, kind playback.Kind) {
		t := m[k]
		if t == nil {
			t = &tally{}
			m[k] = t
		}
		count(t, kind)
	}
	for _, ev := range events {
		if ev.ConceptID == "" {
			continue
		}
		bump(bySessionConcept, key{ev.SessionID, ev.ConceptID}, ev.Kind)
		t := byConcept[ev.ConceptID]
		if t == nil {
			t = &tally{}
			byConcept[ev.ConceptID] = t
		}
		count(t, ev.Kind)
	}

	out := make([]ConceptInsight, 0, len(concepts))
	for _, c := range concepts {
		if c == nil {
			continue
		}
		var t *tally
		if c.SessionID != "" {
			t = bySessionConcept[key{c.SessionID, c.ConceptID}]
		} else {
			t = byConcept[c.ConceptID]
		}
		if t == nil {
			t = &tally{}
		}
		out = append(out, ConceptInsight{
			ConceptID:     c.ConceptID,
			ConceptName:   c.Name,
			SessionID:     c.SessionID,
			ReplayCount:   t.replays,
			DropOffCount:  t.dropOffs,
			TotalEvents:   t.total,
			AvgWatchTime:  watchTimeFactor * c.Duration(),
			StruggleScore: StruggleScore(t.replays, t.dropOffs, t.total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StruggleScore > out[j].StruggleScore })
	return out
}

func count(t *tally, kind playback.Kind) {
	t.total++
	switch kind {
	case playback.KindReplay:
		t.replays++
	case playback.KindDropOff:
		t.dropOffs++
	}
}

// ComputeClusterInsights returns one entry per cluster label, in label order,
// including clusters without members.
func ComputeClusterInsights(trainees []views.TraineeView, events []playback.Event, concepts []*catalog.Concept, assigner ClusterAssigner) []ClusterInsight {
	if assigner == nil {
		assigner = StoredClusters{}
	}
	clusterOf := make(map[string]views.Cluster, len(trainees))
	members := make(map[views.Cluster]int, len(views.Clusters))
	for _, t := range trainees {
		c, ok := assigner.ClusterOf(t)
		if !ok {
			continue
		}
		if _, seen := clusterOf[t.TraineeID]; seen {
			continue
		}
		clusterOf[t.TraineeID] = c
		members[c]++
	}

	type stats struct {
		struggles map[string]int
		// firstSeen orders concepts missing from the catalog after known ones.
		firstSeen []string
		events    int
		dropOffs  int
	}
	perCluster := make(map[views.Cluster]*stats, len(views.Clusters))
	for _, c := range views.Clusters {
		perCluster[c] = &stats{struggles: map[string]int{}}
	}
	for _, ev := range events {
		c, ok := clusterOf[ev.TraineeID]
		if !ok {
			continue
		}
		s := perCluster[c]
		s.events++
		if ev.Kind == playback.KindDropOff {
			s.dropOffs++
		}
		if ev.ConceptID == "" || !ev.Kind.Struggle() {
			continue
		}
		if _, seen := s.struggles[ev.ConceptID]; !seen {
			s.firstSeen = append(s.firstSeen, ev.ConceptID)
		}
		s.struggles[ev.ConceptID]++
	}

	order := make(map[string]int, len(concepts))
	names := make(map[string]string, len(concepts))
	for _, c := range concepts {
		if c == nil {
			continue
		}
		if _, ok := order[c.ConceptID]; !ok {
			order[c.ConceptID] = len(order)
			names[c.ConceptID] = c.Name
		}
	}

	out := make([]ClusterInsight, 0, len(views.Clusters))
	for _, c := range views.Clusters {
		s := perCluster[c]
		ids := make([]string, 0, len(s.struggles))
		ids = append(ids, s.firstSeen...)
		rank := func(id string) int {
			if r, ok := order[id]; ok {
				return r
			}
			return len(order)
		}
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := ids[i], ids[j]
			if s.struggles[a] != s.struggles[b] {
				return s.struggles[a] > s.struggles[b]
			}
			return rank(a) < rank(b)
		})
		if len(ids) > topStruggles {
			ids = ids[:topStruggles]
		}
		labels := make([]string, 0, len(ids))
		for _, id := range ids {
			if name := names[id]; name != "" {
				labels = append(labels, name)
			} else {
				labels = append(labels, id)
			}
		}
		out = append(out, ClusterInsight{
			Cluster:            c,
			EmployeeCount:      members[c],
			StrugglingConcepts: labels,
			AvgEngagement:      engagement(s.events, s.dropOffs),
		})
	}
	return out
}

// engagement is the share of member events that were not drop-offs, 0..100.
func engagement(events, dropOffs int) float64 {
	if events == 0 {
		return 0
	}
	return 100 * (1 - float64(dropOffs)/float64(events))
}
