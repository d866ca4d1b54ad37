// Package memory provides an in-process, versioned storage backend. It backs
// dry runs and tests, and mimics the versioning semantics of S3: every write
// to a versioned bucket appends a version, an unversioned bucket keeps a
// single "null" version per key.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

const nullVersion = "null"

type objectVersion struct {
	id          string
	data        []byte
	contentType string
	modified    time.Time
}

// BucketState is the configuration recorded for a bucket.
type BucketState struct {
	PublicAccessBlockDisabled bool
	PublicRead                bool
	IndexDocument             string
	ErrorDocument             string
	Versioning                bool
}

type bucket struct {
	state   BucketState
	objects map[string][]objectVersion
}

// Backend is a concurrency-safe in-memory storage.Backend.
type Backend struct {
	mu      sync.Mutex
	region  string
	buckets map[string]*bucket
	failOn  map[string]error
	calls   []string
	seq     int
	last    time.Time

	// Now returns the current time; versions always get strictly increasing times
	Now func() time.Time
}

var _ storage.Backend = (*Backend)(nil)

// New creates an empty backend reporting region.
func New(region string) *Backend {
	return &Backend{
		region:  region,
		buckets: make(map[string]*bucket),
		failOn:  make(map[string]error),
		Now:     time.Now,
	}
}

// Fail makes every later call of op (a Backend method name) return err.
// A nil err clears the failure.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failOn, op)
		return
	}
	b.failOn[op] = err
}

// Calls returns the names of the methods called so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// State returns the configuration of name.
func (b *Backend) State(name string) (BucketState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bkt, ok := b.buckets[name]
	if !ok {
		return BucketState{}, false
	}
	return bkt.state, true
}

// Keys returns the keys stored in name, sorted.
func (b *Backend) Keys(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	bkt, ok := b.buckets[name]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(bkt.objects))
	for k := range bkt.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the content type of key's head version.
func (b *Backend) ContentType(name, key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bkt, ok := b.buckets[name]; ok {
		if versions := bkt.objects[key]; len(versions) > 0 {
			return versions[len(versions)-1].contentType
		}
	}
	return ""
}

func (b *Backend) Name() string   { return "memory" }
func (b *Backend) Region() string { return b.region }

func (b *Backend) WebsiteURL(bucket string) string {
	return "memory://" + bucket + "/"
}

// enter records op and returns its injected failure, if any. Callers hold mu.
func (b *Backend) enter(op string) error {
	b.calls = append(b.calls, op)
	return b.failOn[op]
}

func (b *Backend) lookup(name string) (*bucket, error) {
	bkt, ok := b.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNoSuchBucket, name)
	}
	return bkt, nil
}

func (b *Backend) now() time.Time {
	t := b.Now()
	if !t.After(b.last) {
		t = b.last.Add(time.Millisecond)
	}
	b.last = t
	return t
}

func (b *Backend) BucketExists(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("BucketExists"); err != nil {
		return false, err
	}
	_, ok := b.buckets[name]
	return ok, nil
}

func (b *Backend) CreateBucket(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("CreateBucket"); err != nil {
		return err
	}
	if _, ok := b.buckets[name]; ok {
		return fmt.Errorf("bucket already exists: %s", name)
	}
	b.buckets[name] = &bucket{objects: make(map[string][]objectVersion)}
	return nil
}

// configure applies fn to an existing bucket's state.
func (b *Backend) configure(op, name string, fn func(*BucketState)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(op); err != nil {
		return err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return err
	}
	fn(&bkt.state)
	return nil
}

func (b *Backend) DisablePublicAccessBlock(_ context.Context, name string) error {
	return b.configure("DisablePublicAccessBlock", name, func(s *BucketState) { s.PublicAccessBlockDisabled = true })
}

func (b *Backend) SetPublicReadPolicy(_ context.Context, name string) error {
	return b.configure("SetPublicReadPolicy", name, func(s *BucketState) { s.PublicRead = true })
}

func (b *Backend) ConfigureWebsite(_ context.Context, name, indexDocument, errorDocument string) error {
	return b.configure("ConfigureWebsite", name, func(s *BucketState) {
		s.IndexDocument = indexDocument
		s.ErrorDocument = errorDocument
	})
}

func (b *Backend) EnableVersioning(_ context.Context, name string) error {
	return b.configure("EnableVersioning", name, func(s *BucketState) { s.Versioning = true })
}

func (b *Backend) PutObject(_ context.Context, name, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("PutObject"); err != nil {
		return err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return err
	}
	b.write(bkt, key, data, contentType)
	return nil
}

// write appends a version of key, or replaces the null version when the
// bucket is not versioned. Callers hold mu.
func (b *Backend) write(bkt *bucket, key string, data []byte, contentType string) {
	v := objectVersion{data: data, contentType: contentType, modified: b.now()}
	if !bkt.state.Versioning {
		v.id = nullVersion
		bkt.objects[key] = []objectVersion{v}
		return
	}
	b.seq++
	v.id = "v" + strconv.Itoa(b.seq)
	bkt.objects[key] = append(bkt.objects[key], v)
}

func (b *Backend) head(name, key string) (*objectVersion, error) {
	bkt, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	versions := bkt.objects[key]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrNoSuchKey, name, key)
	}
	return &versions[len(versions)-1], nil
}

func (b *Backend) HeadVersion(_ context.Context, name, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("HeadVersion"); err != nil {
		return "", err
	}
	v, err := b.head(name, key)
	if err != nil {
		return "", err
	}
	return v.id, nil
}

func (b *Backend) GetObject(_ context.Context, name, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("GetObject"); err != nil {
		return nil, err
	}
	v, err := b.head(name, key)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.data), nil
}

func (b *Backend) CopyVersion(_ context.Context, name, key, versionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("CopyVersion"); err != nil {
		return err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return err
	}
	for _, v := range bkt.objects[key] {
		if v.id == versionID {
			b.write(bkt, key, bytes.Clone(v.data), v.contentType)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s@%s", types.ErrNoSuchKey, name, key, versionID)
}

func (b *Backend) ListVersions(_ context.Context, name, key string) ([]storage.Version, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListVersions"); err != nil {
		return nil, err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	stored := bkt.objects[key]
	versions := make([]storage.Version, 0, len(stored))
	for i, v := range stored {
		versions = append(versions, storage.Version{
			ID:         v.id,
			ModifiedAt: v.modified,
			IsLatest:   i == len(stored)-1,
		})
	}
	return versions, nil
}

func (b *Backend) DeleteAllVersions(_ context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteAllVersions"); err != nil {
		return 0, err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, versions := range bkt.objects {
		deleted += len(versions)
	}
	bkt.objects = make(map[string][]objectVersion)
	return deleted, nil
}

func (b *Backend) DeleteBucket(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteBucket"); err != nil {
		return err
	}
	bkt, err := b.lookup(name)
	if err != nil {
		return err
	}
	if len(bkt.objects) > 0 {
		return fmt.Errorf("bucket not empty: %s", name)
	}
	delete(b.buckets, name)
	return nil
}
