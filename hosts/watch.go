package hosts

import (
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/treemana/gorelay/log"
)

// Watch reloads the table whenever the backing file changes. The parent
// directory is watched so editors that replace the file instead of
// writing it in place are still seen. A reload that fails to parse
// keeps the previous snapshot.
func (t *Table) Watch() error {
	if len(t.path) == 0 {
		return errors.New("table not backed by a file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = watcher.Add(filepath.Dir(t.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.watch(watcher)

	log.Sugar.Infof("hosts watching %s", t.path)
	return nil
}

// Close stops the watcher, if one was started.
func (t *Table) Close() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
}

func (t *Table) watch(watcher *fsnotify.Watcher) {
	defer close(t.done)
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(t.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			m, err := parseFile(t.path)
			if err != nil {
				log.Sugar.Warnf("hosts reload %s error=[%+v]", t.path, err)
				continue
			}
			t.m.Store(&m)
			log.Sugar.Infof("hosts reloaded, %d names", len(m))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Sugar.Warnf("hosts watch error=[%+v]", err)

		case <-t.stop:
			return
		}
	}
}
