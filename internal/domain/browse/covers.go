package browse

import (
	"context"
	"image"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// CoverFetcher downloads and decodes a cover image.
type CoverFetcher interface {
	FetchCover(ctx context.Context, ref string) (image.Image, error)
}

// coverList identifies which navigator list a cover job writes to.
type coverList string

const (
	listSongs     coverList = "songs"
	listItems     coverList = "items"
	listPlaylists coverList = "playlists"
)

type coverKey struct {
	list coverList
	id   string
}

// coverJob fetches one image and hands it to apply.
type coverJob struct {
	id    string
	ref   string
	apply func(image.Image)
}

// CoverLoader runs best-effort cover downloads in the background.
// Jobs are keyed by list and item identity so a job already in flight is
// not started twice, and a list's jobs can be cancelled when it is
// replaced. Failures are logged at debug level and dropped.
type CoverLoader struct {
	fetcher CoverFetcher
	limit   int

	mu   sync.Mutex
	jobs map[coverKey]*jobHandle
	wg   sync.WaitGroup
}

type jobHandle struct {
	cancel context.CancelFunc
}

// NewCoverLoader creates a loader running at most concurrency downloads
// per batch.
func NewCoverLoader(fetcher CoverFetcher, concurrency int) *CoverLoader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CoverLoader{
		fetcher: fetcher,
		limit:   concurrency,
		jobs:    make(map[coverKey]*jobHandle),
	}
}

func (l *CoverLoader) start(list coverList, jobs []coverJob) {
	if l == nil || len(jobs) == 0 {
		return
	}

	type runnable struct {
		job    coverJob
		ctx    context.Context
		handle *jobHandle
	}

	l.mu.Lock()
	var batch []runnable
	for _, j := range jobs {
		if j.ref == "" {
			continue
		}
		key := coverKey{list, j.id}
		if _, running := l.jobs[key]; running {
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		h := &jobHandle{cancel: cancel}
		l.jobs[key] = h
		batch = append(batch, runnable{job: j, ctx: ctx, handle: h})
	}
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		var g errgroup.Group
		g.SetLimit(l.limit)
		for _, r := range batch {
			g.Go(func() error {
				defer l.finish(coverKey{list, r.job.id}, r.handle)
				if r.ctx.Err() != nil {
					return nil
				}
				img, err := l.fetcher.FetchCover(r.ctx, r.job.ref)
				if err != nil {
					log.Debug().Err(err).Str("ref", r.job.ref).Msg("Cover load failed")
					return nil
				}
				if r.ctx.Err() != nil {
					return nil
				}
				r.job.apply(img)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// finish removes the job entry unless it was already replaced.
func (l *CoverLoader) finish(key coverKey, h *jobHandle) {
	h.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jobs[key] == h {
		delete(l.jobs, key)
	}
}

func (l *CoverLoader) cancel(list coverList) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, h := range l.jobs {
		if key.list == list {
			h.cancel()
			delete(l.jobs, key)
		}
	}
}

// CancelAll stops every pending job.
func (l *CoverLoader) CancelAll() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, h := range l.jobs {
		h.cancel()
		delete(l.jobs, key)
	}
}

// Wait blocks until all started batches have finished.
func (l *CoverLoader) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}
