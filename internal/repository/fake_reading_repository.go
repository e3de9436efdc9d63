package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sensorhub/internal/models"
)

// FakeReadingRepository is an in-memory ReadingRepository for tests.
// Ids increase monotonically and are never reused.
type FakeReadingRepository struct {
	mu     sync.Mutex
	rows   map[uint]models.SensorData
	nextID uint

	// Now stamps created_at on insert. Defaults to time.Now().UTC().
	Now func() time.Time
	// Err, when set, is returned by every call.
	Err error
}

func NewFakeReadingRepository() *FakeReadingRepository {
	return &FakeReadingRepository{
		rows:   make(map[uint]models.SensorData),
		nextID: 1,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (f *FakeReadingRepository) Insert(_ context.Context, values models.ChannelValues) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(values) == 0 {
		return nil, models.ErrNoChannels
	}

	row := models.NewSensorData(values)
	row.ID = f.nextID
	row.CreatedAt = f.Now()
	f.nextID++
	f.rows[row.ID] = *row

	reading := row.Reading()
	return &reading, nil
}

func (f *FakeReadingRepository) GetAll(context.Context) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.filter(func(models.Reading) bool { return true }), nil
}

func (f *FakeReadingRepository) GetByID(_ context.Context, id uint) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("reading %d: %w", id, ErrNotFound)
	}
	reading := row.Reading()
	return &reading, nil
}

func (f *FakeReadingRepository) GetByChannel(_ context.Context, ch models.Channel) ([]models.ChannelPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("channel %d: %w", ch, ErrNotFound)
	}
	points := project(f.filter(func(models.Reading) bool { return true }), ch)
	if len(points) == 0 {
		return nil, fmt.Errorf("channel %d: %w", ch, ErrNotFound)
	}
	return points, nil
}

func (f *FakeReadingRepository) GetByChannelAndPeriod(_ context.Context, ch models.Channel, start, end time.Time) ([]models.ChannelPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if !ch.Valid() {
		return nil, models.ErrInvalidChannel
	}
	period := models.NewPeriod(start, end)
	return project(f.filter(func(r models.Reading) bool { return period.Contains(r.CreatedAt) }), ch), nil
}

func (f *FakeReadingRepository) GetByPeriod(_ context.Context, start, end time.Time) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	period := models.NewPeriod(start, end)
	return f.filter(func(r models.Reading) bool { return period.Contains(r.CreatedAt) }), nil
}

func (f *FakeReadingRepository) GetChannelStats(_ context.Context, ch models.Channel, start, end time.Time) (*models.ChannelStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if !ch.Valid() {
		return nil, models.ErrInvalidChannel
	}
	period := models.NewPeriod(start, end)
	stats := &models.ChannelStats{Channel: ch}
	var sum float64
	for _, p := range project(f.filter(func(r models.Reading) bool { return period.Contains(r.CreatedAt) }), ch) {
		if stats.Count == 0 || p.Value < stats.Min {
			stats.Min = p.Value
		}
		if stats.Count == 0 || p.Value > stats.Max {
			stats.Max = p.Value
		}
		sum += p.Value
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Avg = sum / float64(stats.Count)
	}
	return stats, nil
}

func (f *FakeReadingRepository) Update(_ context.Context, id uint, values models.ChannelValues) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("update reading %d: %w", id, ErrNotFound)
	}
	row.Apply(values)
	f.rows[id] = row
	reading := row.Reading()
	return &reading, nil
}

func (f *FakeReadingRepository) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.rows[id]; !ok {
		return fmt.Errorf("delete reading %d: %w", id, ErrNotFound)
	}
	delete(f.rows, id)
	return nil
}

func (f *FakeReadingRepository) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return int64(len(f.rows)), nil
}

// filter returns matching readings ordered by id. Callers hold f.mu.
func (f *FakeReadingRepository) filter(keep func(models.Reading) bool) []models.Reading {
	out := make([]models.Reading, 0, len(f.rows))
	for _, row := range f.rows {
		reading := row.Reading()
		if keep(reading) {
			out = append(out, reading)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func project(readings []models.Reading, ch models.Channel) []models.ChannelPoint {
	out := make([]models.ChannelPoint, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Channels.Get(ch); ok {
			out = append(out, models.ChannelPoint{ID: r.ID, Channel: ch, Value: v, CreatedAt: r.CreatedAt})
		}
	}
	return out
}
