/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/cognigate/runtime/pkg/shared/logging"
)

// BufferedStore batches AuditRecord inserts so the hot execution-tracking
// path is never blocked on a database round trip: Write appends to an
// in-memory buffer and flushes it to the underlying Repository on whichever
// comes first, a size threshold or an interval tick.
type BufferedStore struct {
	repo          Repository
	log           logr.Logger
	flushInterval time.Duration
	batchSize     int

	mu     sync.Mutex
	buffer []AuditRecord

	stop chan struct{}
	done chan struct{}
}

// NewBufferedStore wraps repo with batching. batchSize <= 0 defaults to 100;
// flushInterval <= 0 defaults to 5s.
func NewBufferedStore(repo Repository, log logr.Logger, batchSize int, flushInterval time.Duration) *BufferedStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	store := &BufferedStore{
		repo:          repo,
		log:           log,
		flushInterval: flushInterval,
		batchSize:     batchSize,
	}
	store.start()
	return store
}

func (s *BufferedStore) start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				s.flush(context.Background())
				return
			case <-ticker.C:
				s.flush(context.Background())
			}
		}
	}()
}

// Write appends record to the buffer, flushing synchronously if the batch
// threshold is reached.
func (s *BufferedStore) Write(ctx context.Context, record AuditRecord) {
	s.mu.Lock()
	s.buffer = append(s.buffer, record)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(ctx)
	}
}

func (s *BufferedStore) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if err := s.repo.InsertAuditRecords(ctx, batch); err != nil {
		logging.Warn(s.log, "buffered audit flush failed, records dropped",
			logging.NewFields().Component("audit").KV("batchSize", len(batch)).Error(err))
	}
}

// Close stops the periodic flush loop and flushes any remaining buffered
// records synchronously.
func (s *BufferedStore) Close() {
	close(s.stop)
	<-s.done
}
