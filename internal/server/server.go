// Package server exposes detection, style transfer and noise maps over HTTP.
package server

import (
	"context"
	"image"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/pipeline"
	"github.com/dudu/ruse/internal/styletransfer"
)

// Detector finds faces and annotates them for a view
type Detector interface {
	DetectImage(ctx context.Context, img image.Image, view geometry.Size) (pipeline.Outcome, error)
}

// Stylizer restyles an in-memory image
type Stylizer interface {
	ExecuteImage(content image.Image, req styletransfer.Request) styletransfer.Result
}

type Server struct {
	app       *fiber.App
	addr      string
	detector  Detector
	stylizer  Stylizer
	noise     config.NoiseConfig
	validator *validator.Validate
	timeout   time.Duration
}

// New builds the fiber app and registers routes. A nil detector or
// stylizer disables its route with 503.
func New(cfg config.ServerConfig, noiseCfg config.NoiseConfig, det Detector, st Stylizer) *Server {
	app := fiber.New(fiber.Config{
		AppName:       "ruse",
		BodyLimit:     cfg.BodyLimitMB * 1024 * 1024,
		StrictRouting: true,
		CaseSensitive: true,
		JSONEncoder:   jsoniter.Marshal,
		JSONDecoder:   jsoniter.Unmarshal,
	})

	s := &Server{
		app:       app,
		addr:      cfg.Addr,
		detector:  det,
		stylizer:  st,
		noise:     noiseCfg,
		validator: newValidator(),
		timeout:   30 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(NewRequestIDMiddleware())
	s.app.Use(LoggerConfig())

	s.app.Get("/healthz", s.handleHealth)

	v1 := s.app.Group("/v1")
	v1.Post("/detect", s.handleDetect)
	v1.Post("/stylize", s.handleStylize)
	v1.Get("/noise", s.handleNoise)
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown
func (s *Server) Listen() error {
	log.Info(log.Fields{"addr": s.addr}, "[server.Listen] listening")
	return s.app.Listen(s.addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
