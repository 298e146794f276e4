package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/config"
	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/domain"
)

// CallAPI is the surface the router drives. The call engine satisfies it.
type CallAPI interface {
	Snapshot() domain.Call
	StartCall(ctx context.Context, target string) error
	AnswerCall(ctx context.Context) error
	DenyCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	SetAudioInput(deviceID string) error
	SetAudioOutput(deviceID string) error
	ListAudioDevices(kind domain.DeviceKind) ([]domain.Device, error)
}

type callView struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Caller  string `json:"caller"`
	Callee  string `json:"callee"`
	Elapsed int    `json:"elapsed_seconds"`
	Timer   string `json:"timer"`
}

type startRequest struct {
	Number string `json:"number" binding:"required"`
}

type deviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

func SetupRouter(cfg *config.Config, api CallAPI, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	grp := r.Group("/api")

	grp.GET("/call", func(c *gin.Context) {
		c.JSON(http.StatusOK, toView(api.Snapshot()))
	})

	grp.POST("/call", func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := api.StartCall(c.Request.Context(), req.Number); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, toView(api.Snapshot()))
	})

	grp.POST("/call/answer", action(api.AnswerCall, api))
	grp.POST("/call/deny", action(api.DenyCall, api))
	grp.POST("/call/end", action(api.EndCall, api))

	grp.GET("/devices", func(c *gin.Context) {
		kind, ok := parseKind(c.Query("kind"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be input or output"})
			return
		}
		devs, err := api.ListAudioDevices(kind)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, devs)
	})

	grp.POST("/devices/input", selectDevice(api.SetAudioInput))
	grp.POST("/devices/output", selectDevice(api.SetAudioOutput))

	return r
}

func action(fn func(context.Context) error, api CallAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, toView(api.Snapshot()))
	}
}

func selectDevice(fn func(string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := fn(req.DeviceID); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func toView(call domain.Call) callView {
	return callView{
		ID:      call.ID,
		State:   call.State.String(),
		Caller:  call.Caller,
		Callee:  call.Callee,
		Elapsed: int(call.Elapsed.Seconds()),
		Timer:   call.Timer(),
	}
}

func parseKind(q string) (domain.DeviceKind, bool) {
	switch q {
	case "", "any":
		return domain.AnyDevice, true
	case "input":
		return domain.AudioInput, true
	case "output":
		return domain.AudioOutput, true
	default:
		return domain.AnyDevice, false
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoCall):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCallActive),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrCallTornDown):
		return http.StatusConflict
	case errors.Is(err, core.ErrMediaDenied):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
