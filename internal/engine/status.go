package engine

import (
	"errors"
	"io/fs"

	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/mirror"
	"github.com/bianoble/repo-mirror/internal/state"
)

// StatusResult describes the last recorded pass.
type StatusResult struct {
	StatePath string
	// Record is nil when no pass has been recorded yet.
	Record *state.PassRecord
	Tally  map[string]int
	Failed []state.RefRecord
}

// Status loads the pass record named by cfg. A missing record is not an
// error.
func Status(cfg *config.Config) (*StatusResult, error) {
	res := &StatusResult{StatePath: cfg.Repository.StatePath()}

	rec, err := state.Load(res.StatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.Record = rec
	res.Tally = rec.Tally()
	for _, r := range rec.Refs {
		if r.Outcome != string(mirror.Promoted) {
			res.Failed = append(res.Failed, r)
		}
	}
	return res, nil
}

// Ref returns the recorded outcome of one ref from the last pass.
func (s *StatusResult) Ref(name string) (state.RefRecord, bool) {
	if s.Record == nil {
		return state.RefRecord{}, false
	}
	return s.Record.Lookup(name)
}
