package trace

import "sync"

// ArchiveSink is a volatile Sink retaining completed query transcripts in a
// process local slice. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Each stored and returned transcript is
// copied to prevent external mutation of internal state.
type ArchiveSink struct {
	mu          sync.RWMutex
	transcripts [][]Entry

	// Limit caps the number of retained transcripts; the oldest is evicted
	// when a flush would exceed it. Zero means unbounded.
	Limit int
}

// NewArchiveSink constructs an empty in-memory transcript archive.
func NewArchiveSink() *ArchiveSink {
	return &ArchiveSink{}
}

// Flush implements Sink, archiving a copy of the completed transcript.
// Empty transcripts are ignored.
func (s *ArchiveSink) Flush(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, snapshot)
	if s.Limit > 0 && len(s.transcripts) > s.Limit {
		s.transcripts = s.transcripts[len(s.transcripts)-s.Limit:]
	}
	return nil
}

// Transcripts returns copies of all archived transcripts, oldest first.
func (s *ArchiveSink) Transcripts() [][]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]Entry, len(s.transcripts))
	for i, tr := range s.transcripts {
		cp := make([]Entry, len(tr))
		copy(cp, tr)
		out[i] = cp
	}
	return out
}

// Last returns a copy of the most recently archived transcript, or nil when
// the archive is empty.
func (s *ArchiveSink) Last() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.transcripts) == 0 {
		return nil
	}
	tr := s.transcripts[len(s.transcripts)-1]
	cp := make([]Entry, len(tr))
	copy(cp, tr)
	return cp
}

// Len returns the number of archived transcripts.
func (s *ArchiveSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}
