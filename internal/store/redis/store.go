package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

// DefaultPageSize is the SSCAN count hint used per page.
const DefaultPageSize = 100

// document is the JSON form of a record in Redis.
type document struct {
	RecordID      string       `json:"record_id"`
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Author        string       `json:"author"`
	RepositoryURL string       `json:"repository_url"`
	FundingURL    string       `json:"funding_url"`
	Tags          []domain.Tag `json:"tags"`
	LastActivity  string       `json:"last_activity"`
	Status        string       `json:"status"`
	RevisionTag   string       `json:"revision_tag"`
	Archived      bool         `json:"archived"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Store keeps catalog records in Redis.
type Store struct {
	client   *redis.Client
	keys     Keys
	pageSize int64
	now      func() time.Time
}

// NewStore creates a new Redis store.
func NewStore(client *redis.Client, prefix string, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		client:   client,
		keys:     NewKeys(prefix),
		pageSize: int64(pageSize),
		now:      time.Now,
	}
}

// Query implements store.Store using SSCAN cursors over the active set.
func (s *Store) Query(ctx context.Context, cursor string) (store.Page, error) {
	var c uint64
	if cursor != "" {
		n, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return store.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		c = n
	}

	ids, next, err := s.client.SScan(ctx, s.keys.Active(), c, "", s.pageSize).Result()
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to scan records: %w", err)
	}

	records, err := s.getMany(ctx, ids)
	if err != nil {
		return store.Page{}, err
	}

	page := store.Page{Records: records}
	if next != 0 {
		page.HasMore = true
		page.NextCursor = strconv.FormatUint(next, 10)
	}
	return page, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, rec domain.Record) (string, error) {
	rec.RecordID = uuid.NewString()
	now := s.now()
	doc := toDocument(rec)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.Record(rec.RecordID), data, 0)
	pipe.SAdd(ctx, s.keys.Active(), rec.RecordID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create record %s: %w", rec.ID, err)
	}

	return rec.RecordID, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, recordID string, patch domain.RecordPatch) error {
	doc, err := s.get(ctx, recordID)
	if err != nil {
		return err
	}

	rec, err := fromDocument(doc)
	if err != nil {
		return err
	}
	patch.Apply(&rec)

	updated := toDocument(rec)
	updated.Archived = doc.Archived
	updated.CreatedAt = doc.CreatedAt
	updated.UpdatedAt = s.now()

	return s.save(ctx, updated)
}

// Archive implements store.Store. The document stays in place, flagged, and
// moves from the active set to the archived set.
func (s *Store) Archive(ctx context.Context, recordID string) error {
	doc, err := s.get(ctx, recordID)
	if err != nil {
		return err
	}

	doc.Archived = true
	doc.UpdatedAt = s.now()
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", recordID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.Record(recordID), data, 0)
	pipe.SMove(ctx, s.keys.Active(), s.keys.Archived(), recordID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive record %s: %w", recordID, err)
	}
	return nil
}

// Get returns one record by id, archived or not.
func (s *Store) Get(ctx context.Context, recordID string) (domain.Record, bool, error) {
	doc, err := s.get(ctx, recordID)
	if err != nil {
		return domain.Record{}, false, err
	}
	rec, err := fromDocument(doc)
	return rec, doc.Archived, err
}

func (s *Store) get(ctx context.Context, recordID string) (document, error) {
	data, err := s.client.Get(ctx, s.keys.Record(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return document{}, fmt.Errorf("%w: %s", store.ErrRecordNotFound, recordID)
		}
		return document{}, fmt.Errorf("failed to get record: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to unmarshal record %s: %w", recordID, err)
	}
	return doc, nil
}

func (s *Store) getMany(ctx context.Context, ids []string) ([]domain.Record, error) {
	if len(ids) == 0 {
		return []domain.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.Record(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	records := make([]domain.Record, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Listed in the active set but the document is gone.
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", ids[i], err)
		}
		rec, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", doc.RecordID, err)
	}
	if err := s.client.Set(ctx, s.keys.Record(doc.RecordID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save record %s: %w", doc.RecordID, err)
	}
	return nil
}

func toDocument(rec domain.Record) document {
	tags := rec.Tags
	if tags == nil {
		tags = []domain.Tag{}
	}
	return document{
		RecordID:      rec.RecordID,
		ID:            rec.ID,
		Name:          rec.Name,
		Description:   rec.Description,
		Author:        rec.Author,
		RepositoryURL: rec.RepositoryURL,
		FundingURL:    rec.FundingURL,
		Tags:          tags,
		LastActivity:  domain.FormatTimestamp(rec.LastActivity),
		Status:        string(rec.Status),
		RevisionTag:   rec.RevisionTag,
	}
}

func fromDocument(doc document) (domain.Record, error) {
	if doc.ID == "" {
		return domain.Record{}, fmt.Errorf("record %s has no business key", doc.RecordID)
	}
	last, err := domain.ParseTimestamp(doc.LastActivity)
	if err != nil {
		return domain.Record{}, fmt.Errorf("record %s: last_activity: %w", doc.RecordID, err)
	}
	return domain.Record{
		RecordID:      doc.RecordID,
		ID:            doc.ID,
		Name:          doc.Name,
		Description:   doc.Description,
		Author:        doc.Author,
		RepositoryURL: doc.RepositoryURL,
		FundingURL:    doc.FundingURL,
		Tags:          doc.Tags,
		LastActivity:  last,
		Status:        domain.ActivityStatus(doc.Status),
		RevisionTag:   doc.RevisionTag,
	}, nil
}
