package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/mkarlsen/roomsense/internal/influx"
	"github.com/mkarlsen/roomsense/internal/models"
	middleware "github.com/mkarlsen/roomsense/internal/server/middlewares"
)

var validate = validator.New()

// TelemetryClient is the query layer the handlers depend on.
type TelemetryClient interface {
	ScalarSeries(ctx context.Context, field models.Field, bounds influx.RangeBounds, window influx.WindowSpec) (iter.Seq[models.ScalarSample], error)
	CombinedSeries(ctx context.Context, bounds influx.RangeBounds, window influx.WindowSpec) (iter.Seq[models.Sample], error)
	LatestScalar(ctx context.Context, field models.Field) *models.ScalarSample
	LatestCombined(ctx context.Context) *models.Sample
}

// Server holds the handler dependencies.
type Server struct {
	client TelemetryClient
	log    *logrus.Logger
}

func (s *Server) registerRoutes(app *fiber.App, auth, cache fiber.Handler) {
	temp := app.Group("/temp", auth, cache)
	temp.Get("/current", s.scalarCurrent(models.FieldTemperature))
	temp.Get("/range/:range", s.scalarSpan(models.FieldTemperature))
	temp.Get("/from/:start/to/:stop", s.scalarFromTo(models.FieldTemperature))

	humidity := app.Group("/humidity", auth, cache)
	humidity.Get("/current", s.scalarCurrent(models.FieldHumidity))
	humidity.Get("/range/:range", s.scalarSpan(models.FieldHumidity))
	humidity.Get("/from/:start/to/:stop", s.scalarFromTo(models.FieldHumidity))

	sensor := app.Group("/sensor", auth, cache)
	sensor.Get("/current", s.combinedCurrent)
	sensor.Get("/range/:range", s.combinedSpan)
	sensor.Get("/from/:start/to/:stop", s.combinedFromTo)
}

func (s *Server) scalarCurrent(field models.Field) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sample := s.client.LatestScalar(c.UserContext(), field)
		if sample == nil {
			return fiber.NewError(fiber.StatusInternalServerError,
				fmt.Sprintf("could not get current %s reading", field))
		}
		return c.JSON(sample)
	}
}

func (s *Server) scalarSpan(field models.Field) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, window, err := planSpanParam(c)
		if err != nil {
			return err
		}

		start := time.Now()
		seq, err := s.client.ScalarSeries(c.UserContext(), field, bounds, window)
		if err != nil {
			return queryError(err)
		}
		samples := collect(seq)

		s.logFetched(c, string(field), len(samples), time.Since(start))
		return c.JSON(samples)
	}
}

func (s *Server) scalarFromTo(field models.Field) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, window, err := planRangeParams(c)
		if err != nil {
			return err
		}

		start := time.Now()
		seq, err := s.client.ScalarSeries(c.UserContext(), field, bounds, window)
		if err != nil {
			return queryError(err)
		}
		samples := collect(seq)

		s.logFetched(c, string(field), len(samples), time.Since(start))
		return c.JSON(samples)
	}
}

func (s *Server) combinedCurrent(c *fiber.Ctx) error {
	sample := s.client.LatestCombined(c.UserContext())
	if sample == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not get current sensor reading")
	}
	return c.JSON(sample)
}

func (s *Server) combinedSpan(c *fiber.Ctx) error {
	bounds, window, err := planSpanParam(c)
	if err != nil {
		return err
	}

	start := time.Now()
	seq, err := s.client.CombinedSeries(c.UserContext(), bounds, window)
	if err != nil {
		return queryError(err)
	}
	samples := collect(seq)

	s.logFetched(c, "combined", len(samples), time.Since(start))
	return c.JSON(samples)
}

func (s *Server) combinedFromTo(c *fiber.Ctx) error {
	bounds, window, err := planRangeParams(c)
	if err != nil {
		return err
	}

	start := time.Now()
	seq, err := s.client.CombinedSeries(c.UserContext(), bounds, window)
	if err != nil {
		return queryError(err)
	}
	samples := collect(seq)

	s.logFetched(c, "combined", len(samples), time.Since(start))
	return c.JSON(samples)
}

// planSpanParam parses the :range duration parameter and plans the query.
func planSpanParam(c *fiber.Ctx) (influx.RangeBounds, influx.WindowSpec, error) {
	raw := c.Params("range")
	d, err := time.ParseDuration(raw)
	if err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("could not parse %q as a duration", raw))
	}

	bounds, window, err := influx.PlanSpan(d)
	if err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return bounds, window, nil
}

// rangeParams holds the explicit epoch-ms bounds of a /from/:start/to/:stop
// request.
type rangeParams struct {
	Start uint64 `validate:"required"`
	Stop  uint64 `validate:"required,gtfield=Start"`
}

// planRangeParams parses and validates the :start/:stop parameters and plans
// the query.
func planRangeParams(c *fiber.Ctx) (influx.RangeBounds, influx.WindowSpec, error) {
	var p rangeParams
	var err error

	if p.Start, err = strconv.ParseUint(c.Params("start"), 10, 64); err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid start timestamp %q", c.Params("start")))
	}
	if p.Stop, err = strconv.ParseUint(c.Params("stop"), 10, 64); err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid stop timestamp %q", c.Params("stop")))
	}
	if err := validate.Struct(p); err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	bounds, window, err := influx.PlanRange(p.Start, p.Stop)
	if err != nil {
		return influx.RangeBounds{}, influx.WindowSpec{},
			fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return bounds, window, nil
}

// queryError maps query-layer failures to HTTP statuses. InvalidRange is a
// caller error; everything else (query failure, schema mismatch) is ours.
func queryError(err error) error {
	if errors.Is(err, influx.ErrInvalidRange) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// collect drains a result sequence, normalizing empty to a non-nil slice so
// the response is always a JSON array.
func collect[T any](seq iter.Seq[T]) []T {
	out := slices.Collect(seq)
	if out == nil {
		out = []T{}
	}
	return out
}

func (s *Server) logFetched(c *fiber.Ctx, series string, n int, took time.Duration) {
	s.log.WithFields(logrus.Fields{
		"request_id": c.Locals(middleware.RequestIDKey),
		"series":     series,
		"samples":    n,
		"took":       took.String(),
	}).Debug("fetched series")
}
