// Package file is a config.Source backed by a single file or directory on
// disk, watched for changes with fsnotify.
package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/omalloc/reqbody/contrib/config"
)

type source struct {
	path string
}

// NewSource returns a config.Source that loads path (a single file, or every
// regular file in a directory) and watches it for writes.
func NewSource(path string) config.Source {
	return &source{path: path}
}

func (s *source) Load() ([]*config.KeyValue, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return s.loadDir()
	}
	return s.loadFile(s.path)
}

func (s *source) loadDir() ([]*config.KeyValue, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, err
	}
	kvs := make([]*config.KeyValue, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kv, err := s.loadFile(filepath.Join(s.path, e.Name()))
		if err != nil {
			return nil, err
		}
		kvs = append(kvs, kv...)
	}
	return kvs, nil
}

func (s *source) loadFile(path string) ([]*config.KeyValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []*config.KeyValue{{
		Key:    filepath.Base(path),
		Value:  data,
		Format: formatOf(path),
	}}, nil
}

func formatOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "yaml", "yml", "json":
		return ext
	default:
		return "yaml"
	}
}

func (s *source) Watch() (config.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.path); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &watcher{source: s, w: w}, nil
}

type watcher struct {
	source *source
	w      *fsnotify.Watcher
}

func (w *watcher) Next() ([]*config.KeyValue, error) {
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return nil, nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			return w.source.Load()
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil, nil
			}
			return nil, err
		}
	}
}

func (w *watcher) Stop() error {
	return w.w.Close()
}
