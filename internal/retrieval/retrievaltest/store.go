// Package retrievaltest provides an in-memory ObjectStore for tests.
package retrievaltest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Store operations that accept injected faults.
const (
	OpList    = "list"
	OpHead    = "head"
	OpRestore = "restore"
	OpGet     = "get"
)

// Object is one stored object
type Object struct {
	Key          string
	Body         []byte
	LastModified time.Time
	StorageClass string
}

// RestoreCall records one RestoreObject invocation
type RestoreCall struct {
	Container string
	Key       string
	Days      int
	Tier      types.TierSpeed
}

// pageFault prefixes the fault keys registered by FailPage
const pageFault = "page\x00"

type fault struct {
	remaining int
	err       error
}

// Store is an in-memory types.ObjectStore. Listings are sorted by key and
// paginated by PageSize; continuation tokens are the offset of the next page.
type Store struct {
	// PageSize limits the number of records per page (default 1000)
	PageSize int

	mu       sync.Mutex
	objects  map[string]map[string]Object
	faults   map[string]*fault
	calls    map[string]int
	restores []RestoreCall
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		objects: make(map[string]map[string]Object),
		faults:  make(map[string]*fault),
		calls:   make(map[string]int),
	}
}

// Put adds or replaces an object
func (s *Store) Put(container string, obj Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[container] == nil {
		s.objects[container] = make(map[string]Object)
	}
	s.objects[container][obj.Key] = obj
}

// Fail makes the next times calls of op on key return err. An empty key
// matches every key; for OpList the key is the prefix. A negative times
// fails forever.
func (s *Store) Fail(op, key string, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op+"\x00"+key] = &fault{remaining: times, err: err}
}

// FailPage makes the next times listing calls that resume from token return
// err, so a listing can fail after its first pages succeeded. Tokens are
// the offset of the page, e.g. "1000" for the second page of 1000.
func (s *Store) FailPage(token string, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[pageFault+token] = &fault{remaining: times, err: err}
}

// Calls returns how many times op was invoked
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Restores returns the recorded restore calls
func (s *Store) Restores() []RestoreCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RestoreCall(nil), s.restores...)
}

// ListObjectsPage implements types.ObjectStore
func (s *Store) ListObjectsPage(ctx context.Context, container, prefix, token string) (types.ObjectPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpList, prefix); err != nil {
		return types.ObjectPage{}, err
	}
	if token != "" {
		if err := s.inject(pageFault + token); err != nil {
			return types.ObjectPage{}, err
		}
	}

	bucket, ok := s.objects[container]
	if !ok {
		return types.ObjectPage{}, errors.NewError(errors.ErrCodeBucketNotFound, "no such bucket: "+container)
	}

	keys := make([]string, 0, len(bucket))
	for key := range bucket {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 || n > len(keys) {
			return types.ObjectPage{}, errors.NewError(errors.ErrCodeInvalidRequest, "invalid continuation token "+token)
		}
		offset = n
	}

	size := s.PageSize
	if size <= 0 {
		size = 1000
	}
	end := min(offset+size, len(keys))

	var page types.ObjectPage
	for _, key := range keys[offset:end] {
		obj := bucket[key]
		page.Records = append(page.Records, types.ObjectRecord{
			Key:              key,
			LastModified:     obj.LastModified,
			Size:             int64(len(obj.Body)),
			StorageClassHint: obj.StorageClass,
		})
	}
	if end < len(keys) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

// HeadObject implements types.ObjectStore
func (s *Store) HeadObject(ctx context.Context, container, key string) (types.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpHead, key); err != nil {
		return types.ObjectMetadata{}, err
	}

	obj, err := s.lookup(container, key)
	if err != nil {
		return types.ObjectMetadata{}, err
	}
	class := obj.StorageClass
	if class == "" {
		class = "STANDARD"
	}
	return types.ObjectMetadata{
		Key:          key,
		Size:         int64(len(obj.Body)),
		LastModified: obj.LastModified,
		StorageClass: class,
	}, nil
}

// RestoreObject implements types.ObjectStore
func (s *Store) RestoreObject(ctx context.Context, container, key string, days int, tier types.TierSpeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpRestore, key); err != nil {
		return err
	}

	if _, err := s.lookup(container, key); err != nil {
		return err
	}
	s.restores = append(s.restores, RestoreCall{Container: container, Key: key, Days: days, Tier: tier})
	return nil
}

// GetObject implements types.ObjectStore
func (s *Store) GetObject(ctx context.Context, container, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpGet, key); err != nil {
		return nil, err
	}

	obj, err := s.lookup(container, key)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(obj.StorageClass) {
	case "GLACIER", "DEEP_ARCHIVE":
		return nil, errors.NewError(errors.ErrCodeInvalidObjectState,
			fmt.Sprintf("object %s is archived", key))
	}
	return io.NopCloser(bytes.NewReader(obj.Body)), nil
}

// enter counts the call and returns an injected fault, if any. Callers hold mu.
func (s *Store) enter(ctx context.Context, op, key string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, k := range []string{op + "\x00" + key, op + "\x00"} {
		if err := s.inject(k); err != nil {
			return err
		}
	}
	return nil
}

// inject consumes one use of the fault registered under k. Callers hold mu.
func (s *Store) inject(k string) error {
	f, ok := s.faults[k]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

func (s *Store) lookup(container, key string) (Object, error) {
	obj, ok := s.objects[container][key]
	if !ok {
		return Object{}, errors.NewError(errors.ErrCodeObjectNotFound,
			fmt.Sprintf("no such key: %s/%s", container, key))
	}
	return obj, nil
}
