package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is the persisted PID record: first line is the PID, second line is
// optional JSON meta carrying the process start time. The meta lets readers
// reject a PID that the OS has recycled for an unrelated process.
type Record struct {
	PID       int
	StartUnix int64
}

type recordMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// Alive reports whether the recorded PID names a live process that still
// matches the recorded start time (when one was captured).
func (r Record) Alive() bool {
	if !pidAlive(r.PID) || isZombie(r.PID) {
		return false
	}
	if r.StartUnix > 0 {
		if cur := procStartUnix(r.PID); cur > 0 && cur != r.StartUnix {
			return false // PID reused by another process
		}
	}
	return true
}

// ReadRecord parses a PID record. A missing file surfaces the os.IsNotExist
// error unchanged; callers treat that as "not running". Legacy files holding
// only a bare PID are accepted with zero meta.
func ReadRecord(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	pidLine, rest, _ := strings.Cut(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return Record{}, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	rec := Record{PID: pid}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		var m recordMeta
		if err := json.Unmarshal([]byte(rest), &m); err == nil {
			rec.StartUnix = m.StartUnix
		}
	}
	return rec, nil
}

// WriteRecord persists a record with exclusive creation. An existing file
// fails with os.IsExist so concurrent starts cannot both claim the record.
func WriteRecord(path string, r Record) error {
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o750)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(r.PID))
	sb.WriteByte('\n')
	if r.StartUnix > 0 {
		meta, _ := json.Marshal(recordMeta{StartUnix: r.StartUnix})
		sb.Write(meta)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RemoveRecord deletes the record; a record that is already gone is fine.
func RemoveRecord(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
