package engine

import "time"

type SessionStatus struct {
	PID    int           `json:"pid"`
	Status ProcessStatus `json:"status"`
}

// List reports every stored session. It does not count as activity.
func (e *Engine) List() map[int64]SessionStatus {
	out := make(map[int64]SessionStatus, e.store.Len())
	for _, sess := range e.store.Snapshot() {
		out[sess.ID] = SessionStatus{PID: sess.PID, Status: sess.Status()}
	}
	return out
}

type SessionInfo struct {
	ID             int64         `json:"session_id"`
	Command        string        `json:"command"`
	Args           []string      `json:"args"`
	PID            int           `json:"pid"`
	PGID           int           `json:"pgid"`
	Status         ProcessStatus `json:"status"`
	LogPath        string        `json:"log_path,omitempty"`
	BytesBuffered  int           `json:"bytes_buffered"`
	SeekPosition   int           `json:"seek_position"`
	SearchPosition int           `json:"search_position"`
	StartedAt      time.Time     `json:"started_at"`
	LastActivity   time.Time     `json:"last_activity"`
}

// Info describes one session without touching its activity timestamp.
func (e *Engine) Info(id int64) (*SessionInfo, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	seek, search, length := sess.Positions()
	return &SessionInfo{
		ID:             sess.ID,
		Command:        sess.Command,
		Args:           sess.Args,
		PID:            sess.PID,
		PGID:           sess.PGID,
		Status:         sess.Status(),
		LogPath:        sess.LogPath,
		BytesBuffered:  length,
		SeekPosition:   seek,
		SearchPosition: search,
		StartedAt:      sess.StartedAt,
		LastActivity:   sess.LastActivity(),
	}, nil
}

// InfoAll describes every stored session ordered by id.
func (e *Engine) InfoAll() []SessionInfo {
	sessions := e.store.Snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		if info, err := e.Info(sess.ID); err == nil {
			out = append(out, *info)
		}
	}
	return out
}
