package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensorhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadingRepository is the durable store for sensor readings.
type ReadingRepository interface {
	// Insert stores a new reading with the given channel values and created_at set to now.
	Insert(ctx context.Context, values models.ChannelValues) (*models.Reading, error)

	// GetAll returns every reading ordered by id.
	GetAll(ctx context.Context) ([]models.Reading, error)

	GetByID(ctx context.Context, id uint) (*models.Reading, error)

	// GetByChannel returns readings where the channel is set, projected onto it.
	// ErrNotFound when nothing matches.
	GetByChannel(ctx context.Context, ch models.Channel) ([]models.ChannelPoint, error)

	// GetByChannelAndPeriod returns readings where the channel is set and created_at falls in
	// [start 00:00, end+1 day 00:00). An empty result is not an error.
	GetByChannelAndPeriod(ctx context.Context, ch models.Channel, start, end time.Time) ([]models.ChannelPoint, error)

	// GetByPeriod returns full readings created within the inclusive day range.
	GetByPeriod(ctx context.Context, start, end time.Time) ([]models.Reading, error)

	GetChannelStats(ctx context.Context, ch models.Channel, start, end time.Time) (*models.ChannelStats, error)

	// Update overwrites the supplied channels and leaves the rest untouched.
	Update(ctx context.Context, id uint, values models.ChannelValues) (*models.Reading, error)

	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type readingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) Insert(ctx context.Context, values models.ChannelValues) (*models.Reading, error) {
	if len(values) == 0 {
		return nil, models.ErrNoChannels
	}

	row := models.NewSensorData(values)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert reading: %w", err)
	}

	reading := row.Reading()
	return &reading, nil
}

func (r *readingRepository) GetAll(ctx context.Context) ([]models.Reading, error) {
	var rows []models.SensorData
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return toReadings(rows), nil
}

func (r *readingRepository) GetByID(ctx context.Context, id uint) (*models.Reading, error) {
	var row models.SensorData
	err := r.db.WithContext(ctx).First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reading %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get reading %d: %w", id, err)
	}
	reading := row.Reading()
	return &reading, nil
}

func (r *readingRepository) GetByChannel(ctx context.Context, ch models.Channel) ([]models.ChannelPoint, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("channel %d: %w", ch, ErrNotFound)
	}

	var rows []models.SensorData
	err := r.channelQuery(ctx, ch).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list channel %d: %w", ch, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("channel %d: %w", ch, ErrNotFound)
	}
	return toPoints(rows, ch), nil
}

func (r *readingRepository) GetByChannelAndPeriod(ctx context.Context, ch models.Channel, start, end time.Time) ([]models.ChannelPoint, error) {
	if !ch.Valid() {
		return nil, models.ErrInvalidChannel
	}

	period := models.NewPeriod(start, end)
	var rows []models.SensorData
	err := r.channelQuery(ctx, ch).
		Where("created_at >= ? AND created_at < ?", period.From, period.To).
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("list channel %d in period: %w", ch, err)
	}
	return toPoints(rows, ch), nil
}

func (r *readingRepository) GetByPeriod(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	period := models.NewPeriod(start, end)
	var rows []models.SensorData
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", period.From, period.To).
		Order("id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("list readings in period: %w", err)
	}
	return toReadings(rows), nil
}

func (r *readingRepository) GetChannelStats(ctx context.Context, ch models.Channel, start, end time.Time) (*models.ChannelStats, error) {
	if !ch.Valid() {
		return nil, models.ErrInvalidChannel
	}

	period := models.NewPeriod(start, end)
	stats := &models.ChannelStats{Channel: ch}

	// COUNT(col) skips NULLs, so rows without this channel don't contribute.
	row := r.db.WithContext(ctx).
		Model(&models.SensorData{}).
		Select(fmt.Sprintf("COUNT(%[1]s), COALESCE(AVG(%[1]s), 0), COALESCE(MIN(%[1]s), 0), COALESCE(MAX(%[1]s), 0)", ch.Column())).
		Where("created_at >= ? AND created_at < ?", period.From, period.To).
		Row()

	if err := row.Scan(&stats.Count, &stats.Avg, &stats.Min, &stats.Max); err != nil {
		return nil, fmt.Errorf("channel %d stats: %w", ch, err)
	}
	return stats, nil
}

func (r *readingRepository) Update(ctx context.Context, id uint, values models.ChannelValues) (*models.Reading, error) {
	var reading models.Reading
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SensorData
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		updates := make(map[string]interface{}, len(values))
		for ch, v := range values {
			if ch.Valid() {
				updates[ch.Column()] = v
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&row).Updates(updates).Error; err != nil {
				return err
			}
			row.Apply(values)
		}

		reading = row.Reading()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update reading %d: %w", id, err)
	}
	return &reading, nil
}

func (r *readingRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.SensorData{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete reading %d: %w", id, err)
	}
	return nil
}

func (r *readingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SensorData{}).
		Count(&count).
		Error
	return count, err
}

// channelQuery selects the id, the channel column and created_at for rows where the channel is set.
func (r *readingRepository) channelQuery(ctx context.Context, ch models.Channel) *gorm.DB {
	col := ch.Column()
	return r.db.WithContext(ctx).
		Model(&models.SensorData{}).
		Select("id", col, "created_at").
		Where(fmt.Sprintf("%s IS NOT NULL", col)).
		Order("id ASC")
}

func toReadings(rows []models.SensorData) []models.Reading {
	out := make([]models.Reading, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Reading())
	}
	return out
}

func toPoints(rows []models.SensorData, ch models.Channel) []models.ChannelPoint {
	out := make([]models.ChannelPoint, 0, len(rows))
	for i := range rows {
		reading := rows[i].Reading()
		v, ok := reading.Channels.Get(ch)
		if !ok {
			continue
		}
		out = append(out, models.ChannelPoint{
			ID:        reading.ID,
			Channel:   ch,
			Value:     v,
			CreatedAt: reading.CreatedAt,
		})
	}
	return out
}
