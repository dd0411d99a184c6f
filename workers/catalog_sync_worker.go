package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"content-unlock-service/metrics"
	"content-unlock-service/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ManifestSource fetches the catalog manifest object.
type ManifestSource interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// CatalogSyncer mirrors the external catalog manifest into catalog_items.
type CatalogSyncer struct {
	DB     *gorm.DB
	Source ManifestSource
	Key    string
	Log    *zap.Logger
}

func NewCatalogSyncer(db *gorm.DB, source ManifestSource, key string, log *zap.Logger) *CatalogSyncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogSyncer{DB: db, Source: source, Key: key, Log: log}
}

type manifest struct {
	Items []manifestItem `json:"items" yaml:"items"`
}

type manifestItem struct {
	ItemID      int64  `json:"item_id" yaml:"item_id"`
	Slug        string `json:"slug" yaml:"slug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Duration    string `json:"duration" yaml:"duration"`
	Price       int64  `json:"price" yaml:"price"`
	ImageRef    string `json:"image_ref" yaml:"image_ref"`
	Locator     string `json:"locator" yaml:"locator"`
}

// Sync fetches the manifest and upserts every item. Items missing from the
// manifest are left in place: purchased items must stay resolvable.
func (s *CatalogSyncer) Sync(ctx context.Context) (int, error) {
	raw, err := s.Source.GetObject(ctx, s.Key)
	if err != nil {
		metrics.RecordCatalogSync(false)
		return 0, err
	}
	items, err := DecodeManifest(s.Key, raw)
	if err != nil {
		metrics.RecordCatalogSync(false)
		return 0, err
	}
	if len(items) == 0 {
		s.Log.Info("[CATALOG] manifest is empty, nothing to mirror", zap.String("key", s.Key))
		metrics.RecordCatalogSync(true)
		return 0, nil
	}

	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug",
			"title",
			"description",
			"duration",
			"price",
			"image_ref",
			"locator",
			"synced_at",
		}),
	}).Create(&items).Error; err != nil {
		metrics.RecordCatalogSync(false)
		return 0, fmt.Errorf("failed to upsert %d catalog item(s): %w", len(items), err)
	}

	metrics.RecordCatalogSync(true)
	s.Log.Info("[CATALOG] mirrored items", zap.Int("count", len(items)), zap.String("key", s.Key))
	return len(items), nil
}

// DecodeManifest parses a JSON or YAML manifest (by key extension) and
// normalizes the items. Invalid items fail the whole manifest.
func DecodeManifest(key string, raw []byte) ([]models.CatalogItem, error) {
	var m manifest
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", key, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", key, err)
		}
	}

	now := time.Now().UTC()
	items := make([]models.CatalogItem, 0, len(m.Items))
	seen := make(map[int64]bool, len(m.Items))
	for i, it := range m.Items {
		if it.ItemID <= 0 {
			return nil, fmt.Errorf("manifest %s: item %d has no item_id", key, i)
		}
		if seen[it.ItemID] {
			return nil, fmt.Errorf("manifest %s: duplicate item_id %d", key, it.ItemID)
		}
		seen[it.ItemID] = true
		if it.Price < 0 {
			return nil, fmt.Errorf("manifest %s: item %d has negative price", key, it.ItemID)
		}
		it.Title = norm.NFC.String(strings.TrimSpace(it.Title))
		if it.Title == "" {
			return nil, fmt.Errorf("manifest %s: item %d has no title", key, it.ItemID)
		}
		if it.Slug == "" {
			it.Slug = slug.Make(it.Title)
		}
		items = append(items, models.CatalogItem{
			ItemID:      it.ItemID,
			Slug:        it.Slug,
			Title:       it.Title,
			Description: strings.TrimSpace(it.Description),
			Duration:    it.Duration,
			Price:       it.Price,
			ImageRef:    it.ImageRef,
			Locator:     it.Locator,
			SyncedAt:    now,
		})
	}
	return items, nil
}

// StartCatalogScheduler runs Sync once immediately and then every interval.
// The caller shuts the returned scheduler down.
func StartCatalogScheduler(syncer *CatalogSyncer, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			if _, err := syncer.Sync(ctx); err != nil {
				syncer.Log.Error("[CATALOG] sync failed, keeping previous mirror", zap.Error(err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
