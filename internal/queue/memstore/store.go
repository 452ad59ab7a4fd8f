// Package memstore is an in-process implementation of queue.Store.
// Safe for concurrent access. Intended for unit tests and local development;
// nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuongbtq/issue-runner/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// Store keeps lists, hashes and sets in maps guarded by one mutex
type Store struct {
	mu      sync.Mutex
	lists   map[string][]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	expires map[string]time.Time
	now     func() time.Time
}

// New returns an empty Store
func New() *Store {
	return &Store{
		lists:   make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// LPush prepends values; the last value ends up at the head
func (s *Store) LPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	list := s.lists[key]
	for _, v := range values {
		list = append([]string{v}, list...)
	}
	s.lists[key] = list
	return nil
}

// RPush appends values
func (s *Store) RPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	s.lists[key] = append(s.lists[key], values...)
	return nil
}

// LPop removes and returns the head of the list
func (s *Store) LPop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	list := s.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	head := list[0]
	if len(list) == 1 {
		delete(s.lists, key)
	} else {
		s.lists[key] = list[1:]
	}
	return head, true, nil
}

// LLen returns the list length
func (s *Store) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	return int64(len(s.lists[key])), nil
}

// LRange returns the elements between start and stop inclusive; negative
// indexes count from the tail as in Redis.
func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []string{}, nil
	}

	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// LRem removes every occurrence of value
func (s *Store) LRem(_ context.Context, key string, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	list := s.lists[key]
	kept := list[:0:0]
	var removed int64
	for _, v := range list {
		if v == value {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		delete(s.lists, key)
	} else {
		s.lists[key] = kept
	}
	return removed, nil
}

// HSet sets the given hash fields
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGet returns one hash field
func (s *Store) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	v, ok := s.hashes[key][field]
	return v, ok, nil
}

// HGetAll returns a copy of the hash
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// HIncrBy increments an integer hash field
func (s *Store) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	var n int64
	if raw := h[field]; raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash value is not an integer: %w", err)
		}
		n = parsed
	}
	n += incr
	h[field] = strconv.FormatInt(n, 10)
	return n, nil
}

// SAdd adds members to a set
func (s *Store) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem removes members and returns how many were present
func (s *Store) SRem(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	set := s.sets[key]
	var removed int64
	for _, m := range members {
		if _, ok := set[m]; ok {
			delete(set, m)
			removed++
		}
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return removed, nil
}

// SMove atomically moves member from src to dst
func (s *Store) SMove(_ context.Context, src, dst, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(src)
	s.expireLocked(dst)

	from := s.sets[src]
	if _, ok := from[member]; !ok {
		return false, nil
	}
	delete(from, member)
	if len(from) == 0 {
		delete(s.sets, src)
	}

	to, ok := s.sets[dst]
	if !ok {
		to = make(map[string]struct{})
		s.sets[dst] = to
	}
	to[member] = struct{}{}
	return true, nil
}

// SMembers returns the members of a set in no particular order
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

// SIsMember reports whether member belongs to the set
func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	_, ok := s.sets[key][member]
	return ok, nil
}

// SCard returns the set size
func (s *Store) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	return int64(len(s.sets[key])), nil
}

// Del removes keys of any type
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.deleteLocked(k)
	}
	return nil
}

// Exists reports whether key holds any value
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(key)

	if _, ok := s.lists[key]; ok {
		return true, nil
	}
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.sets[key]
	return ok, nil
}

// Expire sets a time to live on key
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		s.deleteLocked(key)
		return nil
	}
	s.expires[key] = s.now().Add(ttl)
	return nil
}

// Ping always succeeds
func (s *Store) Ping(_ context.Context) error { return nil }

// SetClock overrides the clock used for key expiry
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) expireLocked(key string) {
	deadline, ok := s.expires[key]
	if ok && !s.now().Before(deadline) {
		s.deleteLocked(key)
	}
}

func (s *Store) deleteLocked(key string) {
	delete(s.lists, key)
	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.expires, key)
}
