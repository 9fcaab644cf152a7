// Package report writes a compressed JSONL journal of one render run:
// every map block that could not be read, then a summary line.
package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"voxelmap.ai/internal/world/mapblock"
)

type Entry struct {
	Kind  string    `json:"kind"`
	RunID string    `json:"run_id"`
	Time  time.Time `json:"time"`

	Pos   *[3]int16 `json:"pos,omitempty"`
	Error string    `json:"error,omitempty"`

	Summary *Summary `json:"summary,omitempty"`
}

type Summary struct {
	World        string `json:"world"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FailedBlocks int    `json:"failed_blocks"`
	DurationMs   int64  `json:"duration_ms"`
}

// Journal is safe for concurrent use. A nil *Journal records nothing.
type Journal struct {
	runID string

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	failed int
	err    error
}

// Create opens path (conventionally *.jsonl.zst) for writing.
func Create(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Journal{
		runID: uuid.NewString(),
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

func (j *Journal) BlockFailed(pos mapblock.Position, err error) {
	if j == nil {
		return
	}
	p := [3]int16{pos.X, pos.Y, pos.Z}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failed++
	j.writeLocked(Entry{Kind: "block_error", Pos: &p, Error: err.Error()})
}

// Finish appends the summary and closes the file. The first write error,
// if any, is returned.
func (j *Journal) Finish(s Summary) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	s.FailedBlocks = j.failed
	j.writeLocked(Entry{Kind: "summary", Summary: &s})
	return j.closeLocked()
}

func (j *Journal) writeLocked(e Entry) {
	if j.err != nil || j.w == nil {
		return
	}
	e.RunID = j.runID
	e.Time = time.Now().UTC()
	b, err := json.Marshal(e)
	if err != nil {
		j.err = err
		return
	}
	if _, err := j.w.Write(b); err != nil {
		j.err = err
		return
	}
	j.err = j.w.WriteByte('\n')
}

func (j *Journal) closeLocked() error {
	if j.w == nil {
		return j.err
	}
	if err := j.w.Flush(); err != nil && j.err == nil {
		j.err = err
	}
	if err := j.enc.Close(); err != nil && j.err == nil {
		j.err = err
	}
	if err := j.f.Close(); err != nil && j.err == nil {
		j.err = err
	}
	j.w, j.enc, j.f = nil, nil, nil
	return j.err
}

// Read decodes a journal written by Journal.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
