package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
)

var ErrInvalidStationURL = errors.New("station url must be an absolute http(s) url")

// DefaultStations are seeded into an empty station table. The first one
// becomes the default.
var DefaultStations = []database.Station{
	{
		Name:        "Lofi Girl",
		URL:         "https://play.streamafrica.net/lofiradio",
		Description: "Lofi hip hop radio - beats to relax/study to",
	},
}

// StationService manages the station catalogue.
type StationService struct {
	repo   database.StationRepository
	logger logging.Logger
}

func NewStationService(repo database.StationRepository, logger logging.Logger) *StationService {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &StationService{
		repo:   repo,
		logger: logger.With(logging.String("component", "stations")),
	}
}

func (s *StationService) All(ctx context.Context) ([]*database.Station, error) {
	return s.repo.FindAll(ctx)
}

func (s *StationService) ByID(ctx context.Context, id int64) (*database.Station, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *StationService) ByName(ctx context.Context, name string) (*database.Station, error) {
	return s.repo.FindByName(ctx, name)
}

func (s *StationService) Default(ctx context.Context) (*database.Station, error) {
	return s.repo.FindDefault(ctx)
}

// Add creates a station. Names are unique ignoring case.
func (s *StationService) Add(ctx context.Context, name, rawURL, description string) (*database.Station, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("station name must not be empty")
	}
	if err := validateStationURL(rawURL); err != nil {
		return nil, err
	}

	station := &database.Station{
		Name:        name,
		URL:         rawURL,
		Description: strings.TrimSpace(description),
	}
	if err := s.repo.Create(ctx, station); err != nil {
		return nil, err
	}

	s.logger.Info("Station added",
		logging.Int64("station_id", station.ID),
		logging.String("name", station.Name))
	return station, nil
}

// Remove deletes a station and reports whether it existed.
func (s *StationService) Remove(ctx context.Context, id int64) (bool, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("Station removed", logging.Int64("station_id", id))
	}
	return removed, nil
}

// SetDefault makes the station the only default one.
func (s *StationService) SetDefault(ctx context.Context, id int64) (*database.Station, error) {
	ok, err := s.repo.SetDefault(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, database.ErrStationNotFound
	}

	s.logger.Info("Default station changed", logging.Int64("station_id", id))
	return s.repo.FindByID(ctx, id)
}

// Resolve finds the station a user asked for. An empty query means the
// default station; a numeric query is tried as an id before a name.
func (s *StationService) Resolve(ctx context.Context, query string) (*database.Station, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.FindDefault(ctx)
	}

	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		station, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return station, nil
		}
		if !errors.Is(err, database.ErrStationNotFound) {
			return nil, err
		}
	}

	return s.repo.FindByName(ctx, query)
}

// Seed inserts DefaultStations when no station exists yet.
func (s *StationService) Seed(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for i, def := range DefaultStations {
		station := def
		station.IsDefault = i == 0
		if err := s.repo.Create(ctx, &station); err != nil {
			return fmt.Errorf("failed to seed station %s: %w", def.Name, err)
		}
		s.logger.Info("Seeded station", logging.String("name", station.Name))
	}
	return nil
}

func validateStationURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidStationURL, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidStationURL, rawURL)
	}
	return nil
}
