package filestruct

import (
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/Giulio2002/filestruct/internal/livemap"
	"github.com/Giulio2002/filestruct/mmap"
)

// File is a read-only source file from which chunks are mapped.
//
// A File is not safe for concurrent use; callers must serialize access.
type File struct {
	f    *os.File // nil once closed
	path string
	size int64

	opts *fileOptions
	log  logrus.FieldLogger

	// live tracks mappings not yet released, keyed by mapping ID.
	live   livemap.Map[*mapping]
	nextID uint32
}

// Open opens path read-only and records its size.
func Open(path string, opts ...Option) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger.WithField("path", path)

	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Error("unable to open file")
		return nil, WrapError(ErrIO, err)
	}

	fi, err := f.Stat()
	if err != nil {
		log.WithError(err).Error("unable to find the size of file")
		f.Close()
		return nil, WrapError(ErrIO, err)
	}

	log.WithField("size", fi.Size()).Info("opened file")
	return &File{
		f:    f,
		path: path,
		size: fi.Size(),
		opts: o,
		log:  log,
	}, nil
}

// Close closes the file descriptor. Closing an already closed File is a
// no-op. Chunks mapped from the file stay readable after Close; they still
// have to be torn down.
func (fl *File) Close() error {
	if fl == nil || fl.f == nil {
		return nil
	}

	if n := fl.live.Len(); n > 0 {
		ids := make([]uint32, 0, n)
		fl.live.ForEach(func(id uint32, _ *mapping) {
			ids = append(ids, id)
		})
		slices.Sort(ids)
		fl.log.WithFields(logrus.Fields{
			"mappings": n,
			"ids":      ids,
		}).Warn("closing file with live mappings")
	}

	if err := fl.f.Close(); err != nil {
		fl.log.WithError(err).Warn("unable to close file")
		return WrapError(ErrIO, err)
	}

	fl.f = nil
	fl.size = 0
	return nil
}

// Size returns the size of the file in bytes, or 0 once closed.
func (fl *File) Size() int64 {
	return fl.size
}

// Path returns the path the file was opened with.
func (fl *File) Path() string {
	return fl.path
}

// Closed reports whether Close has succeeded.
func (fl *File) Closed() bool {
	return fl.f == nil
}

// LiveMappings returns the number of OS mappings made from this file that
// have not been released yet.
func (fl *File) LiveMappings() int {
	return fl.live.Len()
}

func (fl *File) fd() int {
	return int(fl.f.Fd())
}

func (fl *File) track(m *mmap.Map) *mapping {
	fl.nextID++
	mp := &mapping{id: fl.nextID, m: m, file: fl}
	mp.refs.Store(1)
	fl.live.Set(mp.id, mp)
	return mp
}

func (fl *File) untrack(mp *mapping) {
	if cur, ok := fl.live.Get(mp.id); !ok || cur != mp {
		fl.log.WithField("mapping", mp.id).Warn("releasing untracked mapping")
		return
	}
	fl.live.Delete(mp.id)
}
