package graphcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"green-route-server/preprocessing"
	"green-route-server/routing"

	"github.com/redis/go-redis/v9"
)

// StaticRecord is the persisted output of the static feature pass: raw
// (unnormalized) columns in graph edge order.
type StaticRecord struct {
	Fingerprint string
	Keys        []routing.EdgeKey
	Columns     preprocessing.Columns
	SavedAt     time.Time
}

// WeightStore persists static feature columns across restarts. Load returns
// an error wrapping routing.ErrNotFound when nothing matches fingerprint.
type WeightStore interface {
	Load(ctx context.Context, fingerprint string) (*StaticRecord, error)
	Save(ctx context.Context, rec *StaticRecord) error
	Name() string
}

// Fingerprint identifies a network file, the static layer files and the
// settings scored against them. Any change to one of them invalidates stored
// columns.
func Fingerprint(networkPath string, edges int, settings preprocessing.Settings, src preprocessing.Sources) (string, error) {
	files := []string{networkPath}
	if settings.TreeVsUrban || settings.TreeCover {
		files = append(files, src.GreenLayer)
	}
	if settings.TreeVsUrban {
		files = append(files, src.UrbanLayer)
	}
	if settings.Water {
		files = append(files, src.WaterFile)
	}

	h := sha256.New()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %v: %w", path, err, routing.ErrConfiguration)
		}
		fmt.Fprintf(h, "%s|%d|%d\n", filepath.Base(path), info.Size(), info.ModTime().UnixNano())
	}
	fmt.Fprintf(h, "edges=%d tvu=%t tc=%t w=%t g=%g",
		edges, settings.TreeVsUrban, settings.TreeCover, settings.Water, settings.GridCellM)
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}

func encodeRecord(rec *StaticRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*StaticRecord, error) {
	var rec StaticRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FileStore keeps a single gob record on local disk.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Load(_ context.Context, fingerprint string) (*StaticRecord, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("weight cache %s: %w", s.Path, routing.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read weight cache %s: %w", s.Path, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode weight cache %s: %w", s.Path, err)
	}
	if rec.Fingerprint != fingerprint {
		return nil, fmt.Errorf("weight cache %s is stale: %w", s.Path, routing.ErrNotFound)
	}
	return rec, nil
}

// Save writes through a temp file so a crash never leaves a torn record.
func (s *FileStore) Save(_ context.Context, rec *StaticRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode weight cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create weight cache dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write weight cache %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace weight cache %s: %w", s.Path, err)
	}
	return nil
}

// RedisStore keeps records under prefix + fingerprint, so stale entries
// simply age out with the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "greenroute:static:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + fingerprint
}

func (s *RedisStore) Load(ctx context.Context, fingerprint string) (*StaticRecord, error) {
	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis weight cache %s: %w", s.key(fingerprint), routing.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(fingerprint), err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode redis weight cache: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *StaticRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode weight cache: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.Fingerprint), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(rec.Fingerprint), err)
	}
	return nil
}

// NopStore never persists anything.
type NopStore struct{}

func (NopStore) Name() string { return "none" }

func (NopStore) Load(context.Context, string) (*StaticRecord, error) {
	return nil, fmt.Errorf("weight cache disabled: %w", routing.ErrNotFound)
}

func (NopStore) Save(context.Context, *StaticRecord) error { return nil }

// OpenRedis connects to addr and verifies the connection with a PING.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
