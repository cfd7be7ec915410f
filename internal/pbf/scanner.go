package pbf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/paulmach/osm"
	"golang.org/x/sync/errgroup"
)

// Features this decoder understands. A header requiring anything else is a
// decode error rather than silently wrong output.
var supportedFeatures = map[string]bool{
	"OsmSchema-V0.6": true,
	"DenseNodes":     true,
}

// decodeJob carries one data blob through the worker pool. done is closed
// by the decoding worker; the emitter waits on it to restore file order.
type decodeJob struct {
	blob *blob
	done chan struct{}
	objs []osm.Object
	err  error
}

// Scanner decodes an .osm.pbf stream into osm.Node/osm.Way/osm.Relation
// elements. Blobs are decoded concurrently by procs workers and re-sequenced
// into file order. Usage mirrors bufio.Scanner:
//
//	s := pbf.NewScanner(ctx, r, runtime.NumCPU())
//	defer s.Close()
//	for s.Scan() {
//		obj := s.Object()
//		...
//	}
//	if err := s.Err(); err != nil { ... }
type Scanner struct {
	cancel  context.CancelFunc
	objects chan []osm.Object

	batch   []osm.Object
	i       int
	current osm.Object

	mu     sync.Mutex
	err    error
	closed bool
}

// NewScanner starts decoding from r with the given worker count.
func NewScanner(ctx context.Context, r io.Reader, procs int) *Scanner {
	if procs < 1 {
		procs = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Scanner{
		cancel:  cancel,
		objects: make(chan []osm.Object, procs),
	}

	jobs := make(chan *decodeJob, procs)
	order := make(chan *decodeJob, procs)

	g, gctx := errgroup.WithContext(ctx)

	// Reader: frame blobs and hand them to the pool, preserving order.
	g.Go(func() error {
		defer close(jobs)
		defer close(order)

		br := newBlobReader(r)
		sawHeader := false
		for {
			b, err := br.next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			switch b.kind {
			case blobTypeHeader:
				if err := checkHeader(b); err != nil {
					return err
				}
				sawHeader = true
			case blobTypeData:
				if !sawHeader {
					return &DecodeError{Offset: b.offset, Err: fmt.Errorf("data blob before header blob")}
				}
				job := &decodeJob{blob: b, done: make(chan struct{})}
				select {
				case jobs <- job:
				case <-gctx.Done():
					return gctx.Err()
				}
				select {
				case order <- job:
				case <-gctx.Done():
					return gctx.Err()
				}
			default:
				return &DecodeError{Offset: b.offset, Err: fmt.Errorf("unknown blob type %q", b.kind)}
			}
		}
	})

	// Workers: decompress and decode blobs out of order.
	for i := 0; i < procs; i++ {
		g.Go(func() error {
			for job := range jobs {
				job.objs, job.err = decodeDataBlob(job.blob)
				close(job.done)
			}
			return nil
		})
	}

	// Emitter: restore file order and surface the first decode failure.
	g.Go(func() error {
		for job := range order {
			select {
			case <-job.done:
			case <-gctx.Done():
				return gctx.Err()
			}
			if job.err != nil {
				return job.err
			}
			select {
			case s.objects <- job.objs:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	go func() {
		err := g.Wait()
		s.mu.Lock()
		if s.err == nil && err != nil && !(s.closed && errors.Is(err, context.Canceled)) {
			s.err = err
		}
		s.mu.Unlock()
		close(s.objects)
	}()

	return s
}

// Scan advances to the next object. It returns false at end of stream, on a
// decode error, or after Close; Err reports which.
func (s *Scanner) Scan() bool {
	for {
		if s.i < len(s.batch) {
			s.current = s.batch[s.i]
			s.i++
			return true
		}
		batch, ok := <-s.objects
		if !ok {
			return false
		}
		s.batch = batch
		s.i = 0
	}
}

// Object returns the element read by the last call to Scan.
func (s *Scanner) Object() osm.Object {
	return s.current
}

// Err returns the first error encountered while decoding, if any.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops decoding and releases the workers. Safe to call more than once.
func (s *Scanner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	// Drain so the emitter can finish and the wait goroutine closes the
	// channel.
	for range s.objects {
	}
	return nil
}

// checkHeader validates an OSMHeader blob's required features.
func checkHeader(b *blob) error {
	payload, err := blobPayload(b.data)
	if err != nil {
		return &DecodeError{Offset: b.offset, Err: err}
	}
	h, err := parseHeaderBlock(payload)
	if err != nil {
		return &DecodeError{Offset: b.offset, Err: err}
	}
	for _, f := range h.requiredFeatures {
		if !supportedFeatures[f] {
			return &DecodeError{Offset: b.offset, Err: fmt.Errorf("unsupported required feature %q", f)}
		}
	}
	return nil
}

// decodeDataBlob turns one OSMData blob into its elements.
func decodeDataBlob(b *blob) ([]osm.Object, error) {
	payload, err := blobPayload(b.data)
	if err != nil {
		return nil, &DecodeError{Offset: b.offset, Err: err}
	}
	block, err := parsePrimitiveBlock(payload)
	if err != nil {
		return nil, &DecodeError{Offset: b.offset, Err: err}
	}
	return block.objects(), nil
}
