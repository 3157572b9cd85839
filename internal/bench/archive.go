package bench

import (
	"context"
	"errors"
	"time"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

// ArchiveSource tells where LoadPublicArchive got its datapoints
type ArchiveSource string

const (
	FromRemote ArchiveSource = metrics.SourceRemote
	FromCache  ArchiveSource = metrics.SourceCache
	FromEmpty  ArchiveSource = metrics.SourceEmpty
)

// LoadedArchive is a public archive with its origin
type LoadedArchive struct {
	Archive *datapoint.Archive
	Source  ArchiveSource
	// Err is the download failure when Source is not FromRemote
	Err error
}

// LoadPublicArchive downloads the module's public archive within the
// archive timeout. A failed download falls back to the last cached copy,
// then to an empty archive; both only warn. Concurrent callers share one
// download.
func (m *Module) LoadPublicArchive(ctx context.Context) *LoadedArchive {
	ctx, span := tracer.Start(ctx, "bench.LoadPublicArchive")
	defer span.End()

	v, _, _ := m.fetch.Do(m.id, func() (interface{}, error) {
		return m.loadArchive(ctx), nil
	})
	loaded := v.(*LoadedArchive)
	m.metrics.ArchiveLoaded(m.id, string(loaded.Source))
	return loaded
}

func (m *Module) loadArchive(ctx context.Context) *LoadedArchive {
	start := time.Now()
	defer m.metrics.Since(metrics.StageArchive, start)

	if m.repo == nil {
		err := errors.New("no remote configured")
		return m.fallback(err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.archiveTimeout)
	defer cancel()

	archive, err := m.repo.FetchArchive(ctx)
	if err != nil {
		return m.fallback(err)
	}

	util.InfoLog("Loaded %d public datapoints for %s", archive.Len(), m.id)
	m.logger.LogArchive(m.id, string(FromRemote), archive.Len(), nil)
	m.cacheArchive(archive)
	return &LoadedArchive{Archive: archive, Source: FromRemote}
}

func (m *Module) fallback(cause error) *LoadedArchive {
	if m.store != nil {
		cached, err := m.store.LoadArchive(m.id)
		if err != nil {
			util.DebugLog("Failed to read cached archive: %v", err)
		}
		if cached != nil {
			archive, err := datapoint.ParseArchive(cached.Body)
			if err == nil {
				util.WarnLog("Could not download the public archive (%v); using the copy from %s",
					cause, cached.FetchedAt.Format("2006-01-02 15:04"))
				m.logger.LogArchive(m.id, string(FromCache), archive.Len(), cause)
				return &LoadedArchive{Archive: archive, Source: FromCache, Err: cause}
			}
			util.DebugLog("Cached archive is unreadable: %v", err)
		}
	}

	util.WarnLog("Could not download the public archive (%v); continuing with an empty archive", cause)
	m.logger.LogArchive(m.id, string(FromEmpty), 0, cause)
	return &LoadedArchive{Archive: datapoint.NewArchive(), Source: FromEmpty, Err: cause}
}

func (m *Module) cacheArchive(a *datapoint.Archive) {
	if m.store == nil {
		return
	}
	body, err := a.Encode()
	if err != nil {
		util.DebugLog("Failed to encode archive for caching: %v", err)
		return
	}
	err = m.store.SaveArchive(&store.CachedArchive{
		ModuleID:  m.id,
		Points:    a.Len(),
		Body:      body,
		FetchedAt: m.now(),
	})
	if err != nil {
		util.WarnLog("Failed to cache archive: %v", err)
	}
}
