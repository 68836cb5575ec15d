package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/iiifviewer/internal/domain"
)

const sessionLockStripes = 64

type sessionStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, payload io.Reader) error
}

type sessionSnapshot struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	ManifestURL string          `json:"manifestUrl,omitempty"`
	Language    string          `json:"language"`
	Document    json.RawMessage `json:"document"`
	Regions     RegionStore     `json:"regions,omitempty"`
}

// Sessions keeps the viewer sessions at the storage. Every mutation goes through Update, which serializes the
// changes of a given session.
type Sessions struct {
	Storage sessionStorage
	Viewer  *Viewer

	locks [sessionLockStripes]sync.Mutex
}

// Init the internal state.
func (ss *Sessions) Init() error {
	if ss.Storage == nil {
		return errors.New("internal/service/Sessions.Storage can't be nil")
	}
	if ss.Viewer == nil {
		return errors.New("internal/service/Sessions.Viewer can't be nil")
	}
	return nil
}

// Create opens the document in a new session.
func (ss *Sessions) Create(ctx context.Context, rawURL, language string) (_ *Session, err error) {
	span, ctx := startSpan(ctx, "Sessions.Create")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	s, err := ss.Viewer.Open(ctx, rawURL, language)
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New().String()
	span.SetTag("session", s.ID)
	if err := ss.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Load a session. Unknown or expired sessions fail with ErrNotFound.
func (ss *Sessions) Load(ctx context.Context, id string) (_ *Session, err error) {
	span, ctx := startSpan(ctx, "Sessions.Load")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	reader, err := ss.Storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fail to get the session: %w", err)
	}
	if reader == nil {
		return nil, newNotFoundError(fmt.Errorf("session '%s' not found", id))
	}
	defer reader.Close()

	var snapshot sessionSnapshot
	if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("fail to decode the session: %w", err)
	}
	doc, err := domain.ParseDocument(snapshot.Document)
	if err != nil {
		return nil, fmt.Errorf("fail to parse the session document: %w", err)
	}
	if snapshot.Regions == nil {
		snapshot.Regions = make(RegionStore)
	}
	return &Session{
		ID:          snapshot.ID,
		URL:         snapshot.URL,
		ManifestURL: snapshot.ManifestURL,
		Language:    snapshot.Language,
		Document:    doc,
		Regions:     snapshot.Regions,
		raw:         snapshot.Document,
	}, nil
}

// Save stores the session.
func (ss *Sessions) Save(ctx context.Context, s *Session) (err error) {
	span, ctx := startSpan(ctx, "Sessions.Save")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	payload, err := json.Marshal(sessionSnapshot{
		ID:          s.ID,
		URL:         s.URL,
		ManifestURL: s.ManifestURL,
		Language:    s.Language,
		Document:    s.raw,
		Regions:     s.Regions,
	})
	if err != nil {
		return fmt.Errorf("fail to encode the session: %w", err)
	}
	if err := ss.Storage.Put(ctx, s.ID, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("fail to put the session: %w", err)
	}
	return nil
}

// Update loads the session, applies fn and stores the result. The session is not stored when fn fails.
func (ss *Sessions) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	mutex := ss.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	s, err := ss.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := ss.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (ss *Sessions) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &ss.locks[h.Sum32()%sessionLockStripes]
}

type memoryEntry struct {
	payload []byte
	expires time.Time
}

// MemoryStorage is an in-process session storage with expiration, used when no Redis is configured.
type MemoryStorage struct {
	TTL time.Duration

	entries map[string]memoryEntry
	mutex   sync.Mutex
	now     func() time.Time
}

// Init the internal state.
func (ms *MemoryStorage) Init() error {
	if ms.TTL <= 0 {
		return errors.New("internal/service/MemoryStorage.TTL must be positive")
	}
	ms.entries = make(map[string]memoryEntry)
	if ms.now == nil {
		ms.now = time.Now
	}
	return nil
}

// Get returns nil when the key is missing or expired. Reading an entry extends its expiration.
func (ms *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	entry, ok := ms.entries[key]
	if !ok {
		return nil, nil
	}
	now := ms.now()
	if now.After(entry.expires) {
		delete(ms.entries, key)
		return nil, nil
	}
	entry.expires = now.Add(ms.TTL)
	ms.entries[key] = entry
	return io.NopCloser(bytes.NewReader(entry.payload)), nil
}

// Put stores the payload, dropping the expired entries.
func (ms *MemoryStorage) Put(_ context.Context, key string, payload io.Reader) error {
	content, err := io.ReadAll(payload)
	if err != nil {
		return fmt.Errorf("fail to read payload: %w", err)
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := ms.now()
	for k, entry := range ms.entries {
		if now.After(entry.expires) {
			delete(ms.entries, k)
		}
	}
	ms.entries[key] = memoryEntry{payload: content, expires: now.Add(ms.TTL)}
	return nil
}
