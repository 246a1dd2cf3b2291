package model

// Slot is one player position in a squad. Position, team and price are
// snapshots taken when the player was bought.
type Slot struct {
	PlayerID PlayerID
	Position Position
	TeamID   TeamID
	Price    int64
	Starter  bool
}

// Squad is the ledger state of one owner.
type Squad struct {
	Owner         Owner
	Slots         []Slot
	Budget        int64
	TotalPoints   int64
	FreeTransfers int
	WildcardUsed  bool
	Captain       PlayerID
	ViceCaptain   PlayerID
	JoinedPeriod  uint64
	PeriodPoints  map[uint64]int64
}

// Slot returns the slot holding id.
func (s *Squad) Slot(id PlayerID) (Slot, bool) {
	for _, sl := range s.Slots {
		if sl.PlayerID == id {
			return sl, true
		}
	}
	return Slot{}, false
}

// IsStarter reports whether id is in the squad and marked as a starter.
func (s *Squad) IsStarter(id PlayerID) bool {
	sl, ok := s.Slot(id)
	return ok && sl.Starter
}

// TeamCount returns the number of slots affiliated with team.
func (s *Squad) TeamCount(team TeamID) int {
	n := 0
	for _, sl := range s.Slots {
		if sl.TeamID == team {
			n++
		}
	}
	return n
}

// Starters returns the starter slots in squad order.
func (s *Squad) Starters() []Slot {
	out := make([]Slot, 0, len(s.Slots))
	for _, sl := range s.Slots {
		if sl.Starter {
			out = append(out, sl)
		}
	}
	return out
}

// Clone returns a deep copy that shares nothing with s.
func (s *Squad) Clone() *Squad {
	c := *s
	c.Slots = append([]Slot(nil), s.Slots...)
	c.PeriodPoints = make(map[uint64]int64, len(s.PeriodPoints))
	for k, v := range s.PeriodPoints {
		c.PeriodPoints[k] = v
	}
	return &c
}

// MatchStats are one player's raw statistics for a period.
type MatchStats struct {
	Played        bool   `koanf:"played" json:"played"`
	Goals         uint32 `koanf:"goals" json:"goals"`
	Assists       uint32 `koanf:"assists" json:"assists"`
	CleanSheets   uint32 `koanf:"clean_sheets" json:"clean_sheets"`
	PenaltySaves  uint32 `koanf:"penalty_saves" json:"penalty_saves"`
	PenaltyMisses uint32 `koanf:"penalty_misses" json:"penalty_misses"`
	YellowCards   uint32 `koanf:"yellow_cards" json:"yellow_cards"`
	RedCards      uint32 `koanf:"red_cards" json:"red_cards"`
	OwnGoals      uint32 `koanf:"own_goals" json:"own_goals"`
}

// ScoreLeaf is the (owner, score) pair committed for one period.
type ScoreLeaf struct {
	Owner Owner  `json:"owner"`
	Score uint64 `json:"score"`
}
