package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sensorhub/internal/logger"
	"sensorhub/internal/models"
	"sensorhub/internal/repository"
	"sensorhub/internal/utils"
)

const generationKey = "readings:generation"

type ReadingService interface {
	// Ingest stores the channel entries of payload; any other key is ignored.
	Ingest(ctx context.Context, payload map[string]interface{}) (*models.Reading, error)
	List(ctx context.Context) ([]models.Reading, error)
	Get(ctx context.Context, id uint) (*models.Reading, error)

	// ByChannel does not pre-check the index: an index outside 1..5 matches no rows and
	// yields repository.ErrNotFound, the same as a valid channel with no data.
	ByChannel(ctx context.Context, index int) ([]models.ChannelPoint, error)

	// ByChannelAndPeriod rejects indexes outside 1..5 and unparsable dates with a ValidationError.
	ByChannelAndPeriod(ctx context.Context, index int, startDate, endDate string) ([]models.ChannelPoint, error)
	ChannelStats(ctx context.Context, index int, startDate, endDate string) (*models.ChannelStats, error)

	Update(ctx context.Context, id uint, payload map[string]interface{}) (*models.Reading, error)
	Delete(ctx context.Context, id uint) error
	Export(ctx context.Context, format, startDate, endDate string) (*ExportFile, error)
	Count(ctx context.Context) (int64, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type readingService struct {
	repo     repository.ReadingRepository
	cache    repository.CacheRepository
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewReadingService(
	repo repository.ReadingRepository,
	cache repository.CacheRepository,
	cacheTTL time.Duration,
	log *logger.Logger,
) ReadingService {
	if cache == nil {
		cache = repository.NewNoopCache()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &readingService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.WithComponent("reading_service"),
	}
}

func (s *readingService) Ingest(ctx context.Context, payload map[string]interface{}) (*models.Reading, error) {
	values, err := ExtractChannelValues(payload)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, invalid(models.ErrNoChannels)
	}

	reading, err := s.repo.Insert(ctx, values)
	if err != nil {
		return nil, err
	}
	s.bumpGeneration(ctx)
	return reading, nil
}

func (s *readingService) List(ctx context.Context) ([]models.Reading, error) {
	return s.repo.GetAll(ctx)
}

func (s *readingService) Get(ctx context.Context, id uint) (*models.Reading, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *readingService) ByChannel(ctx context.Context, index int) ([]models.ChannelPoint, error) {
	ch, err := models.ParseChannel(index)
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", index, repository.ErrNotFound)
	}
	return s.repo.GetByChannel(ctx, ch)
}

func (s *readingService) ByChannelAndPeriod(ctx context.Context, index int, startDate, endDate string) ([]models.ChannelPoint, error) {
	ch, start, end, err := parseChannelPeriod(index, startDate, endDate)
	if err != nil {
		return nil, err
	}

	key := s.periodKey(ctx, ch, start, end)
	if key != "" {
		var cached []models.ChannelPoint
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.WithError(err).Warn("period cache read failed")
		} else if found {
			return cached, nil
		}
	}

	points, err := s.repo.GetByChannelAndPeriod(ctx, ch, start, end)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, points, s.cacheTTL); err != nil {
			s.log.WithError(err).Warn("period cache write failed")
		}
	}
	return points, nil
}

func (s *readingService) ChannelStats(ctx context.Context, index int, startDate, endDate string) (*models.ChannelStats, error) {
	ch, start, end, err := parseChannelPeriod(index, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.repo.GetChannelStats(ctx, ch, start, end)
}

func (s *readingService) Update(ctx context.Context, id uint, payload map[string]interface{}) (*models.Reading, error) {
	values, err := ExtractChannelValues(payload)
	if err != nil {
		return nil, err
	}

	reading, err := s.repo.Update(ctx, id, values)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		s.bumpGeneration(ctx)
	}
	return reading, nil
}

func (s *readingService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bumpGeneration(ctx)
	return nil
}

func (s *readingService) Export(ctx context.Context, format, startDate, endDate string) (*ExportFile, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" && format != "excel" {
		return nil, invalid(fmt.Errorf("unsupported format %q, use csv or xlsx", format))
	}

	var (
		readings []models.Reading
		err      error
	)
	switch {
	case startDate == "" && endDate == "":
		readings, err = s.repo.GetAll(ctx)
	case startDate == "" || endDate == "":
		return nil, invalid(errors.New("start_date and end_date must be given together"))
	default:
		var start, end time.Time
		if start, end, err = parseDates(startDate, endDate); err != nil {
			return nil, err
		}
		readings, err = s.repo.GetByPeriod(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for export: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	var buf bytes.Buffer

	if format == "csv" {
		if err := utils.WriteCSV(&buf, readings); err != nil {
			return nil, fmt.Errorf("failed to write csv: %w", err)
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("sensor_data_%s.csv", timestamp),
			ContentType: "text/csv",
			Data:        buf.Bytes(),
		}, nil
	}

	if err := utils.WriteExcel(&buf, readings); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("sensor_data_%s.xlsx", timestamp),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

func (s *readingService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// periodKey returns "" when caching is off or the generation cannot be read.
func (s *readingService) periodKey(ctx context.Context, ch models.Channel, start, end time.Time) string {
	if !s.cache.Enabled() {
		return ""
	}
	gen, err := s.cache.Get(ctx, generationKey)
	if err != nil {
		s.log.WithError(err).Warn("cache generation read failed")
		return ""
	}
	if gen == "" {
		gen = "0"
	}
	return fmt.Sprintf("readings:period:g%s:c%d:%s:%s", gen, ch,
		start.Format(models.DateLayout), end.Format(models.DateLayout))
}

// bumpGeneration invalidates every cached period result.
func (s *readingService) bumpGeneration(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if _, err := s.cache.Increment(ctx, generationKey); err != nil {
		s.log.WithError(err).Warn("cache generation bump failed")
	}
}

func parseChannelPeriod(index int, startDate, endDate string) (models.Channel, time.Time, time.Time, error) {
	ch, err := models.ParseChannel(index)
	if err != nil {
		return 0, time.Time{}, time.Time{}, invalid(err)
	}
	start, end, err := parseDates(startDate, endDate)
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	return ch, start, end, nil
}

func parseDates(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := models.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid(fmt.Errorf("start_date: %w", err))
	}
	end, err := models.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid(fmt.Errorf("end_date: %w", err))
	}
	return start, end, nil
}
