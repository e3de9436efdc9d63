package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"sensorhub/internal/models"
	"sensorhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

var testNow = time.Date(2024, 1, 5, 23, 59, 0, 0, time.UTC)

func newTestService(t *testing.T, cache repository.CacheRepository) (ReadingService, *repository.FakeReadingRepository) {
	t.Helper()
	repo := repository.NewFakeReadingRepository()
	repo.Now = func() time.Time { return testNow }
	return NewReadingService(repo, cache, time.Minute, nil), repo
}

func newRedisCache(t *testing.T) repository.CacheRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return repository.NewCacheRepository(client)
}

func TestIngestRejectsEmpty(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	for _, payload := range []map[string]interface{}{
		{},
		{"channel_1": nil},
		{"device": "pi-1"},
	} {
		if _, err := svc.Ingest(ctx, payload); !errors.Is(err, ErrValidation) {
			t.Fatalf("Ingest(%v) err = %v; want ErrValidation", payload, err)
		}
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Fatalf("count = %d; want 0", n)
	}
}

func TestIngestAndGet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Ingest(ctx, map[string]interface{}{"channel_2": 21.5, "extra": "ignored"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, ok := got.Channels.Get(2); !ok || v != 21.5 {
		t.Fatalf("channel 2 = %v, %v", v, ok)
	}
	for _, ch := range []models.Channel{1, 3, 4, 5} {
		if _, ok := got.Channels.Get(ch); ok {
			t.Fatalf("channel %d set; want null", ch)
		}
	}
}

func TestByChannelInvalidIndexIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 1.0}); err != nil {
		t.Fatal(err)
	}

	for _, index := range []int{0, 6, -1} {
		if _, err := svc.ByChannel(ctx, index); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("ByChannel(%d) err = %v; want ErrNotFound", index, err)
		}
	}
	if _, err := svc.ByChannel(ctx, 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ByChannel(2) err = %v; want ErrNotFound", err)
	}
	points, err := svc.ByChannel(ctx, 1)
	if err != nil || len(points) != 1 {
		t.Fatalf("ByChannel(1) = %v, %v", points, err)
	}
}

func TestByChannelAndPeriodValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, index := range []int{0, 6} {
		_, err := svc.ByChannelAndPeriod(ctx, index, "2024-01-01", "2024-01-05")
		if !errors.Is(err, ErrValidation) || !errors.Is(err, models.ErrInvalidChannel) {
			t.Fatalf("index %d err = %v", index, err)
		}
	}
	_, err := svc.ByChannelAndPeriod(ctx, 1, "2024/01/01", "2024-01-05")
	if !errors.Is(err, ErrValidation) || !errors.Is(err, models.ErrInvalidDate) {
		t.Fatalf("bad date err = %v", err)
	}

	points, err := svc.ByChannelAndPeriod(ctx, 3, "2024-01-01", "2024-01-05")
	if err != nil {
		t.Fatalf("empty period: %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Fatalf("points = %#v; want empty non-nil slice", points)
	}
}

func TestByChannelAndPeriodEndDayInclusive(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, map[string]interface{}{"sensor_3": 19.75}); err != nil {
		t.Fatal(err)
	}

	points, err := svc.ByChannelAndPeriod(ctx, 3, "2024-01-05", "2024-01-05")
	if err != nil || len(points) != 1 {
		t.Fatalf("same-day period = %v, %v", points, err)
	}
	points, err = svc.ByChannelAndPeriod(ctx, 3, "2024-01-01", "2024-01-04")
	if err != nil || len(points) != 0 {
		t.Fatalf("earlier period = %v, %v", points, err)
	}
}

func TestPeriodCacheInvalidatedByWrites(t *testing.T) {
	svc, repo := newTestService(t, newRedisCache(t))
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 1.0}); err != nil {
		t.Fatal(err)
	}
	points, err := svc.ByChannelAndPeriod(ctx, 1, "2024-01-05", "2024-01-05")
	if err != nil || len(points) != 1 {
		t.Fatalf("first query = %v, %v", points, err)
	}

	// A write behind the service's back is not seen until the generation moves.
	if _, err := repo.Insert(ctx, models.ChannelValues{1: 2}); err != nil {
		t.Fatal(err)
	}
	points, _ = svc.ByChannelAndPeriod(ctx, 1, "2024-01-05", "2024-01-05")
	if len(points) != 1 {
		t.Fatalf("cached query returned %d points; want 1", len(points))
	}

	if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 3.0}); err != nil {
		t.Fatal(err)
	}
	points, _ = svc.ByChannelAndPeriod(ctx, 1, "2024-01-05", "2024-01-05")
	if len(points) != 3 {
		t.Fatalf("after ingest got %d points; want 3", len(points))
	}

	if err := svc.Delete(ctx, points[0].ID); err != nil {
		t.Fatal(err)
	}
	points, _ = svc.ByChannelAndPeriod(ctx, 1, "2024-01-05", "2024-01-05")
	if len(points) != 2 {
		t.Fatalf("after delete got %d points; want 2", len(points))
	}

	if _, err := svc.Update(ctx, points[0].ID, map[string]interface{}{"channel_1": 9.0}); err != nil {
		t.Fatal(err)
	}
	points, _ = svc.ByChannelAndPeriod(ctx, 1, "2024-01-05", "2024-01-05")
	if points[0].Value != 9 {
		t.Fatalf("after update value = %v; want 9", points[0].Value)
	}
}

func TestUpdatePreservesOtherChannels(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 1.0, "channel_2": 2.0})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(ctx, created.ID, map[string]interface{}{"channel_2": 20.0, "channel_4": 4.0})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := map[models.Channel]float64{1: 1, 2: 20, 4: 4}
	for _, ch := range models.AllChannels() {
		v, ok := updated.Channels.Get(ch)
		w, set := want[ch]
		if ok != set || v != w {
			t.Fatalf("channel %d = %v, %v; want %v, %v", ch, v, ok, w, set)
		}
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	if _, err := svc.Update(ctx, 999, map[string]interface{}{"channel_1": 1.0}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Update(999) err = %v; want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, created.ID, map[string]interface{}{"channel_7": 1.0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("Update(channel_7) err = %v; want ErrValidation", err)
	}
}

func TestDeleteThenMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Ingest(ctx, map[string]interface{}{"channel_5": 5.0})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second Delete err = %v; want ErrNotFound", err)
	}
	all, err := svc.List(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("List = %v, %v", all, err)
	}
}

func TestChannelStats(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	for _, v := range []float64{1, 2, 6} {
		if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_2": v}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 100.0}); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.ChannelStats(ctx, 2, "2024-01-05", "2024-01-05")
	if err != nil {
		t.Fatalf("ChannelStats: %v", err)
	}
	if stats.Count != 3 || stats.Avg != 3 || stats.Min != 1 || stats.Max != 6 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := svc.ChannelStats(ctx, 6, "2024-01-05", "2024-01-05"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ChannelStats(6) err = %v; want ErrValidation", err)
	}
}

func TestExport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, map[string]interface{}{"channel_1": 1.5}); err != nil {
		t.Fatal(err)
	}

	file, err := svc.Export(ctx, "csv", "", "")
	if err != nil {
		t.Fatalf("Export csv: %v", err)
	}
	if file.ContentType != "text/csv" || !strings.HasPrefix(file.Filename, "sensor_data_") || !strings.HasSuffix(file.Filename, ".csv") {
		t.Fatalf("file = %s %s", file.Filename, file.ContentType)
	}
	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %v, %v", records, err)
	}

	file, err = svc.Export(ctx, "XLSX", "2024-01-01", "2024-01-05")
	if err != nil {
		t.Fatalf("Export xlsx: %v", err)
	}
	if !strings.HasSuffix(file.Filename, ".xlsx") || len(file.Data) == 0 {
		t.Fatalf("xlsx file = %s (%d bytes)", file.Filename, len(file.Data))
	}

	if _, err := svc.Export(ctx, "pdf", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("Export pdf err = %v; want ErrValidation", err)
	}
	if _, err := svc.Export(ctx, "csv", "2024-01-01", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("half period err = %v; want ErrValidation", err)
	}
}

func TestRepositoryFailurePropagates(t *testing.T) {
	svc, repo := newTestService(t, nil)
	repo.Err = errors.New("connection refused")

	_, err := svc.Ingest(context.Background(), map[string]interface{}{"channel_1": 1.0})
	if err == nil || errors.Is(err, ErrValidation) || errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v; want store failure", err)
	}
}
