package scheduler

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Schedule: s.cfg.Schedule,
		Timezone: s.cfg.Timezone,
		Runs:     s.runs,
		Skipped:  s.skipped,
		LastEnd:  s.lastEnd,
	}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	if s.lastErr != nil {
		snap.LastErr = s.lastErr.Error()
	}
	if s.c != nil && s.entryID != 0 {
		e := s.c.Entry(s.entryID)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	return snap
}
