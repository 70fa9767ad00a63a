package game

// InitializeTurn picks a random team and enters the spinning phase. The Store
// commits the pick once the spin delay has passed.
type InitializeTurn struct{}

func (InitializeTurn) apply(s *State, e *env) Result {
	if len(s.Teams) == 0 {
		return ignored(ReasonNoTeams)
	}
	s.PendingTurnTeamID = s.Teams[e.rng.Intn(len(s.Teams))].ID
	s.InitialTurnSelection = true
	return Result{Outcome: Accepted, spin: true}
}

// NextTurn rotates through teams in list order. Without a current team it spins.
// A current id that no longer names a team counts as position -1.
type NextTurn struct{}

func (NextTurn) apply(s *State, e *env) Result {
	if len(s.Teams) == 0 {
		return ignored(ReasonNoTeams)
	}
	if s.CurrentTurnTeamID == "" {
		return InitializeTurn{}.apply(s, e)
	}
	next := (s.teamIndex(s.CurrentTurnTeamID) + 1) % len(s.Teams)
	s.CurrentTurnTeamID = s.Teams[next].ID
	return accepted(0)
}

// SetCurrentTurn hands the turn to a team directly and cancels any spin.
type SetCurrentTurn struct {
	TeamID string
}

func (c SetCurrentTurn) apply(s *State, _ *env) Result {
	if s.team(c.TeamID) == nil {
		return ignored(ReasonUnknownTeam)
	}
	s.CurrentTurnTeamID = c.TeamID
	s.InitialTurnSelection = false
	s.PendingTurnTeamID = ""
	return accepted(0)
}

// settleTurn ends the spin. The picked team may have been removed meanwhile,
// in which case the first team takes the turn.
type settleTurn struct{}

func (settleTurn) apply(s *State, _ *env) Result {
	if !s.InitialTurnSelection {
		return ignored(ReasonNone)
	}
	s.InitialTurnSelection = false
	pick := s.PendingTurnTeamID
	s.PendingTurnTeamID = ""
	switch {
	case pick != "" && s.team(pick) != nil:
		s.CurrentTurnTeamID = pick
	case len(s.Teams) > 0:
		s.CurrentTurnTeamID = s.Teams[0].ID
	default:
		s.CurrentTurnTeamID = ""
	}
	return accepted(0)
}
