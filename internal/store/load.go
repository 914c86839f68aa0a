package store

// loadAll reads every table into the in-memory image. Called once at Open,
// before the store serves any request.
func (s *Store) loadAll() error {
	if err := s.loadLanes(); err != nil {
		return err
	}
	if err := s.loadTasks(); err != nil {
		return err
	}
	if err := s.loadAgents(); err != nil {
		return err
	}
	if err := s.loadRoles(); err != nil {
		return err
	}
	if err := s.loadBackendMappings(); err != nil {
		return err
	}
	if err := s.loadSyncErrors(); err != nil {
		return err
	}
	if err := s.loadTeams(); err != nil {
		return err
	}
	if err := s.loadPipelines(); err != nil {
		return err
	}
	return s.loadPipelineRuns()
}
