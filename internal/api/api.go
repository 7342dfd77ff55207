package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	playTimeout             = 45 * time.Second
)

// AudioController is the part of the session manager the API drives.
type AudioController interface {
	HasSession(guildID string) bool
	GetSession(guildID string) (pipeline.Snapshot, bool)
	Sessions() []pipeline.Snapshot
	Join(ctx context.Context, guildID, channelID string) (pipeline.Snapshot, error)
	StartStream(guildID, url string) error
	Cleanup(guildID string)
	CleanupAll()
}

type HealthReporter interface {
	Status(ctx context.Context) services.HealthStatus
}

// API handles the dashboard HTTP endpoints.
type API struct {
	name     string
	version  string
	audio    AudioController
	stations *services.StationService
	profiles *services.ProfileService
	health   HealthReporter
	changed  func()
	logger   logging.Logger
}

type Dependencies struct {
	Name     string
	Version  string
	Audio    AudioController
	Stations *services.StationService
	Profiles *services.ProfileService
	Health   HealthReporter
	// SessionsChanged runs after a session is started or stopped.
	SessionsChanged func()
	Logger          logging.Logger
}

func NewAPI(deps Dependencies) *API {
	if deps.Logger == nil {
		deps.Logger = logging.NullLogger()
	}
	if deps.SessionsChanged == nil {
		deps.SessionsChanged = func() {}
	}
	if deps.Name == "" {
		deps.Name = "lofi-bot"
	}
	return &API{
		name:     deps.Name,
		version:  deps.Version,
		audio:    deps.Audio,
		stations: deps.Stations,
		profiles: deps.Profiles,
		health:   deps.Health,
		changed:  deps.SessionsChanged,
		logger:   deps.Logger.With(logging.String("component", "api")),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

type InfoResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

type CreateStationRequest struct {
	Name        string `json:"name" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
}

type PlayRequest struct {
	ChannelID string `json:"channelId" binding:"required"`
	StationID int64  `json:"stationId"`
}

type PlayResponse struct {
	Status  string            `json:"status"`
	Station *database.Station `json:"station"`
	Session pipeline.Snapshot `json:"session"`
}

type StopResponse struct {
	Status  string `json:"status"`
	GuildID string `json:"guildId,omitempty"`
	Stopped int    `json:"stopped,omitempty"`
}

func abortWithError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: msg, StatusCode: code})
}

func (a *API) internalError(c *gin.Context, op string, err error) {
	a.logger.Error("Request failed", logging.String("op", op), logging.Error(err))
	abortWithError(c, http.StatusInternalServerError, "internal server error")
}

func (a *API) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Name:    a.name,
		Version: a.version,
		Endpoints: []string{
			"/health",
			"/metrics",
			"/api/stations",
			"/api/leaderboard",
			"/api/guilds",
		},
	})
}

// Health answers 503 when the bot is unhealthy.
func (a *API) Health(c *gin.Context) {
	status := a.health.Status(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (a *API) ListStations(c *gin.Context) {
	stations, err := a.stations.All(c.Request.Context())
	if err != nil {
		a.internalError(c, "list_stations", err)
		return
	}
	c.JSON(http.StatusOK, stations)
}

func (a *API) GetStation(c *gin.Context) {
	id, ok := stationID(c)
	if !ok {
		return
	}

	station, err := a.stations.ByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrStationNotFound) {
		abortWithError(c, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		a.internalError(c, "get_station", err)
		return
	}
	c.JSON(http.StatusOK, station)
}

func (a *API) CreateStation(c *gin.Context) {
	var req CreateStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	station, err := a.stations.Add(c.Request.Context(), req.Name, req.URL, req.Description)
	switch {
	case errors.Is(err, services.ErrInvalidStationURL):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrStationExists):
		abortWithError(c, http.StatusConflict, "a station with that name already exists")
	case err != nil:
		a.internalError(c, "create_station", err)
	default:
		c.JSON(http.StatusCreated, station)
	}
}

func (a *API) DeleteStation(c *gin.Context) {
	id, ok := stationID(c)
	if !ok {
		return
	}

	removed, err := a.stations.Remove(c.Request.Context(), id)
	if err != nil {
		a.internalError(c, "delete_station", err)
		return
	}
	if !removed {
		abortWithError(c, http.StatusNotFound, "station not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) SetDefaultStation(c *gin.Context) {
	id, ok := stationID(c)
	if !ok {
		return
	}

	station, err := a.stations.SetDefault(c.Request.Context(), id)
	if errors.Is(err, database.ErrStationNotFound) {
		abortWithError(c, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		a.internalError(c, "set_default_station", err)
		return
	}
	c.JSON(http.StatusOK, station)
}

func (a *API) GlobalLeaderboard(c *gin.Context) {
	limit, ok := leaderboardLimit(c)
	if !ok {
		return
	}

	top, err := a.profiles.TopGlobal(c.Request.Context(), limit)
	if err != nil {
		a.internalError(c, "global_leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, top)
}

func (a *API) GuildLeaderboard(c *gin.Context) {
	limit, ok := leaderboardLimit(c)
	if !ok {
		return
	}

	top, err := a.profiles.TopByGuild(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		a.internalError(c, "guild_leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, top)
}

// ListSessions returns the guilds that currently have an audio session.
func (a *API) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, a.audio.Sessions())
}

func (a *API) SessionStatus(c *gin.Context) {
	snap, ok := a.audio.GetSession(c.Param("id"))
	if !ok {
		abortWithError(c, http.StatusNotFound, "no active session for guild")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Play joins a voice channel and starts a station, the default one when
// no station id is given.
func (a *API) Play(c *gin.Context) {
	guildID := c.Param("id")

	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if a.audio.HasSession(guildID) {
		abortWithError(c, http.StatusConflict, "already playing in this guild")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), playTimeout)
	defer cancel()

	var (
		station *database.Station
		err     error
	)
	if req.StationID != 0 {
		station, err = a.stations.ByID(ctx, req.StationID)
	} else {
		station, err = a.stations.Default(ctx)
	}
	if errors.Is(err, database.ErrStationNotFound) {
		abortWithError(c, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		a.internalError(c, "play", err)
		return
	}

	snap, err := a.audio.Join(ctx, guildID, req.ChannelID)
	switch {
	case errors.Is(err, pipeline.ErrSessionExists):
		abortWithError(c, http.StatusConflict, "already playing in this guild")
		return
	case errors.Is(err, pipeline.ErrConnectionTimeout):
		abortWithError(c, http.StatusGatewayTimeout, "timed out joining the voice channel")
		return
	case err != nil:
		a.logger.Warn("Failed to join voice channel", logging.String("guild_id", guildID), logging.Error(err))
		abortWithError(c, http.StatusBadGateway, "could not join the voice channel")
		return
	}

	if err := a.audio.StartStream(guildID, station.URL); err != nil {
		a.audio.Cleanup(guildID)
		a.changed()
		a.internalError(c, "play", err)
		return
	}
	a.changed()

	if current, ok := a.audio.GetSession(guildID); ok {
		snap = current
	}
	a.logger.Info("Stream started from API",
		logging.String("guild_id", guildID),
		logging.String("station", station.Name))
	c.JSON(http.StatusOK, PlayResponse{Status: "playing", Station: station, Session: snap})
}

func (a *API) Stop(c *gin.Context) {
	guildID := c.Param("id")
	if !a.audio.HasSession(guildID) {
		abortWithError(c, http.StatusNotFound, "no active session for guild")
		return
	}

	a.audio.Cleanup(guildID)
	a.changed()
	c.JSON(http.StatusOK, StopResponse{Status: "stopped", GuildID: guildID})
}

func (a *API) StopAll(c *gin.Context) {
	count := len(a.audio.Sessions())
	a.audio.CleanupAll()
	a.changed()
	c.JSON(http.StatusOK, StopResponse{Status: "stopped", Stopped: count})
}

func stationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "invalid station id")
		return 0, false
	}
	return id, true
}

func leaderboardLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLeaderboardLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxLeaderboardLimit), true
}
