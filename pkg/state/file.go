package state

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FileStore keeps all module records in a single JSON document:
//
//	{"modules":{"network":{"complete":true,"timestamp":"...","health":"healthy"}}}
//
// Records are read with gjson and updated in place with sjson, and the file
// is replaced atomically via a rename. The file is written only by the one
// orchestrator process for the duration of a run; concurrent CLI invocations
// against the same file are a documented external precondition, not guarded
// here.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given path. The parent
// directory is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []byte(`{}`), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading state file %s", s.path)
	}
	if len(data) == 0 {
		return []byte(`{}`), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.Errorf("state file %s is not valid JSON", s.path)
	}
	return data, nil
}

func (s *FileStore) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating state directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp state file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "writing temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "closing temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replacing state file %s", s.path)
	}
	return nil
}

func (s *FileStore) IsComplete(name string) (bool, error) {
	data, err := s.read()
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(data, "modules."+name+".complete").Bool(), nil
}

func (s *FileStore) MarkComplete(name, health string) error {
	return s.put(name, true, health)
}

func (s *FileStore) MarkFailed(name, health string) error {
	return s.put(name, false, health)
}

func (s *FileStore) put(name string, complete bool, health string) error {
	data, err := s.read()
	if err != nil {
		return err
	}
	base := "modules." + name
	for _, set := range []struct {
		path  string
		value interface{}
	}{
		{base + ".complete", complete},
		{base + ".timestamp", time.Now().Format(time.RFC3339)},
		{base + ".health", health},
	} {
		data, err = sjson.SetBytes(data, set.path, set.value)
		if err != nil {
			return errors.Wrapf(err, "updating state record for %s", name)
		}
	}
	return s.write(data)
}

func (s *FileStore) Reset(name string) error {
	data, err := s.read()
	if err != nil {
		return err
	}
	data, err = sjson.DeleteBytes(data, "modules."+name)
	if err != nil {
		return errors.Wrapf(err, "deleting state record for %s", name)
	}
	return s.write(data)
}

func (s *FileStore) Get(name string) (Record, bool, error) {
	data, err := s.read()
	if err != nil {
		return Record{}, false, err
	}
	node := gjson.GetBytes(data, "modules."+name)
	if !node.Exists() {
		return Record{}, false, nil
	}
	return recordFromJSON(name, node), true, nil
}

func (s *FileStore) All() ([]Record, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []Record
	gjson.GetBytes(data, "modules").ForEach(func(key, value gjson.Result) bool {
		out = append(out, recordFromJSON(key.String(), value))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func recordFromJSON(name string, node gjson.Result) Record {
	rec := Record{
		Name:     name,
		Complete: node.Get("complete").Bool(),
		Health:   node.Get("health").String(),
	}
	if ts := node.Get("timestamp").String(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = parsed
		}
	}
	return rec
}
