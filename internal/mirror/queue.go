package mirror

import (
	"sync"

	"github.com/nao1215/canvasmirror/internal/model"
)

// Queue is the list of files selected for download during discovery.
// The lock is held only for the copy, never across I/O.
//
// A local path is queued at most once. The same Canvas file is often reached
// through several routes (its folder, a module item, a link in a page), and
// two downloads into one path would share a temp file.
type Queue struct {
	mu    sync.Mutex
	files []model.RemoteFile
	paths map[string]struct{}
}

// Append adds files to the queue and returns how many were new.
func (q *Queue) Append(files ...model.RemoteFile) int {
	if len(files) == 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paths == nil {
		q.paths = make(map[string]struct{})
	}
	added := 0
	for _, f := range files {
		if _, dup := q.paths[f.LocalPath]; dup {
			continue
		}
		q.paths[f.LocalPath] = struct{}{}
		q.files = append(q.files, f)
		added++
	}
	return added
}

// Len returns the number of queued files.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

// Snapshot returns a copy of the queued files.
func (q *Queue) Snapshot() []model.RemoteFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.RemoteFile, len(q.files))
	copy(out, q.files)
	return out
}
