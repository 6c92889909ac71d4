package views

// TraineeProgress is the Trainee-View as served to readers.
type TraineeProgress struct {
	Trainee    TraineeView       `json:"trainee"`
	ProgramIDs []string          `json:"program_ids"`
	Sessions   []SessionProgress `json:"sessions"`
}

type SessionProgress struct {
	Entry  SessionEntry `json:"entry"`
	Events []EventRow   `json:"events"`
}

// SessionSummary is a Program-View or Trainer-View session with events
// grouped per trainee in first-seen order.
type SessionSummary struct {
	Entry       SessionEntry    `json:"entry"`
	ProgramName string          `json:"program_name,omitempty"`
	Trainees    []TraineeEvents `json:"trainees"`
}

type TraineeEvents struct {
	TraineeID   string     `json:"trainee_id"`
	PseudonymID string     `json:"pseudonym_id,omitempty"`
	Events      []EventRow `json:"events"`
}

type ProgramSummary struct {
	Program  ProgramView      `json:"program"`
	Sessions []SessionSummary `json:"sessions"`
}

type TrainerSummary struct {
	Trainer  TrainerView      `json:"trainer"`
	Programs []ProgramView    `json:"programs"`
	Sessions []SessionSummary `json:"sessions"`
}

// GroupByTrainee splits one entry's events per trainee, keeping arrival order.
func GroupByTrainee(rows []EventRow) []TraineeEvents {
	out := make([]TraineeEvents, 0, 4)
	idx := make(map[string]int, 4)
	for _, r := range rows {
		i, ok := idx[r.TraineeID]
		if !ok {
			i = len(out)
			idx[r.TraineeID] = i
			out = append(out, TraineeEvents{TraineeID: r.TraineeID, PseudonymID: r.PseudonymID})
		}
		out[i].Events = append(out[i].Events, r)
	}
	return out
}
