package glyph

import "sync"

// Hit records one glyph-bearing message from an author.
type Hit struct {
	Matches int `json:"matches"`
	Total   int `json:"total"`
}

// Recorder accumulates glyph hits per author uid. It is observability
// state only: nothing feeds it back into the Policy.
type Recorder struct {
	mu   sync.Mutex
	hits map[string][]Hit
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{hits: make(map[string][]Hit)}
}

// Record notes a glyph-bearing message from uid.
func (r *Recorder) Record(uid string, matches, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[uid] = append(r.hits[uid], Hit{Matches: matches, Total: total})
}

// HitCount returns how many glyph-bearing messages uid has sent.
func (r *Recorder) HitCount(uid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hits[uid])
}

// Stats returns the hit count per author.
func (r *Recorder) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.hits))
	for uid, hits := range r.hits {
		out[uid] = len(hits)
	}
	return out
}
