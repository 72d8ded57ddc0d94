package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"sitedeploy/internal/util"
)

const (
	Prefix      = "backup_"
	stampLayout = "20060102_150405"
	DefaultKeep = 5
)

var nameRe = regexp.MustCompile(`^backup_(\d{8}_\d{6})(?:_(\d+))?$`)

// Snapshot is one retained copy of the content tree.
type Snapshot struct {
	Name    string
	Path    string
	Created time.Time
	Seq     int
}

// Manager creates and rotates snapshots in Dir.
type Manager struct {
	Dir  string
	Keep int

	now func() time.Time
}

func NewManager(dir string, keep int) *Manager {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Manager{Dir: dir, Keep: keep, now: time.Now}
}

// ParseName returns the snapshot encoded in name, or false if name does
// not follow the naming convention.
func ParseName(name string) (Snapshot, bool) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return Snapshot{}, false
	}
	t, err := time.ParseInLocation(stampLayout, m[1], time.Local)
	if err != nil {
		return Snapshot{}, false
	}
	seq := 0
	if m[2] != "" {
		seq, err = strconv.Atoi(m[2])
		if err != nil {
			return Snapshot{}, false
		}
	}
	return Snapshot{Name: name, Created: t, Seq: seq}, true
}

// Create copies source into a new snapshot named after the current time.
// Two snapshots within the same second get a numeric suffix.
func (m *Manager) Create(source string) (Snapshot, error) {
	if !util.DirExists(source) {
		return Snapshot{}, fmt.Errorf("backup source %s: not a directory", source)
	}
	if err := util.MkdirAll(m.Dir, 0o755); err != nil {
		return Snapshot{}, err
	}

	base := Prefix + m.now().Format(stampLayout)
	name := base
	for i := 1; util.PathExists(filepath.Join(m.Dir, name)); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}

	dst := filepath.Join(m.Dir, name)
	if err := util.CopyTree(source, dst); err != nil {
		_ = os.RemoveAll(dst)
		return Snapshot{}, fmt.Errorf("create backup %s: %w", name, err)
	}

	s, _ := ParseName(name)
	s.Path = dst
	return s, nil
}

// List returns the snapshots in Dir, newest first. A missing Dir is empty.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		s.Path = filepath.Join(m.Dir, e.Name())
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// Rotate deletes every snapshot outside the Keep most recent and returns
// the removed ones. Entries already gone are ignored.
func (m *Manager) Rotate() ([]Snapshot, error) {
	list, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(list) <= m.Keep {
		return nil, nil
	}

	var removed []Snapshot
	for _, s := range list[m.Keep:] {
		if err := os.RemoveAll(s.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove backup %s: %w", s.Name, err)
		}
		removed = append(removed, s)
	}
	return removed, nil
}

// Size returns the total size of the snapshot's files.
func (s Snapshot) Size() (int64, error) {
	return util.TreeSize(s.Path)
}
