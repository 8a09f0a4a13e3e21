// Package server exposes the console's HTTP API and websocket update feed.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/mission"
	"fleetconsole/internal/store"
	"fleetconsole/internal/tracker"
)

// Server ties the drone registry store and the tracking session to HTTP.
type Server struct {
	app     *fiber.App
	store   *store.Store
	session *tracker.Session
	hub     *Hub
	log     *slog.Logger
}

// New builds the fiber app and its routes. The session's updates are wired
// into the websocket hub so every client sees every entry change.
func New(st *store.Store, session *tracker.Session, log *slog.Logger) *Server {
	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		store:   st,
		session: session,
		hub:     NewHub(log),
		log:     log,
	}
	s.routes()
	go s.hub.Run()
	session.OnUpdate(func(snap fleet.Snapshot) {
		s.hub.Broadcast("entry_update", snap)
	})
	return s
}

func (s *Server) routes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)

	api.Get("/drones", s.handleListDrones)
	api.Post("/drones", s.handleCreateDrone)
	api.Get("/drones/:id", s.handleGetDrone)
	api.Put("/drones/:id", s.handleUpdateDrone)
	api.Delete("/drones/:id", s.handleDeleteDrone)
	api.Post("/drones/:id/ping", s.handlePingDrone)
	api.Post("/test-connection", s.handleTestConnection)

	api.Get("/tracking", s.handleListTracking)
	api.Post("/tracking", s.handleAttach)
	api.Get("/tracking/:id", s.handleGetTracking)
	api.Delete("/tracking/:id", s.handleDetach)
	api.Post("/tracking/:id/activate", s.handleActivate)
	api.Put("/tracking/:id/mission", s.handleReplaceMission)
	api.Post("/tracking/:id/restart", s.handleRestart)
	api.Get("/tracking/:id/report", s.handleReport)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.hub.handleClient))
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Hub exposes the websocket hub so the session feed can be wired in.
func (s *Server) Hub() *Hub { return s.hub }

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("http api listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the listener and disconnects websocket clients.
func (s *Server) Shutdown() error {
	s.hub.Close()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"tracked": s.session.Len(),
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleListDrones(c *fiber.Ctx) error {
	drones, err := s.store.ListDrones()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(drones)
}

func (s *Server) handleCreateDrone(c *fiber.Ctx) error {
	var d store.DroneRecord
	if err := c.BodyParser(&d); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.store.CreateDrone(&d); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (s *Server) handleGetDrone(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	d, err := s.store.GetDrone(uint(id))
	if err != nil {
		return droneErr(err)
	}
	return c.JSON(d)
}

func (s *Server) handleUpdateDrone(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	var fields map[string]any
	if err := c.BodyParser(&fields); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	d, err := s.store.UpdateDrone(uint(id), fields)
	if err != nil {
		return droneErr(err)
	}
	return c.JSON(d)
}

func (s *Server) handleDeleteDrone(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	if err := s.store.DeleteDrone(uint(id)); err != nil {
		return droneErr(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePingDrone(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	d, err := s.store.Ping(uint(id))
	if err != nil {
		return droneErr(err)
	}
	return c.JSON(d)
}

func (s *Server) handleTestConnection(c *fiber.Ctx) error {
	var body struct {
		Hostname string `json:"hostname"`
	}
	if err := c.BodyParser(&body); err != nil || body.Hostname == "" {
		return fiber.NewError(fiber.StatusBadRequest, "hostname is required")
	}
	ctx, cancel := context.WithTimeout(c.Context(), 6*time.Second)
	defer cancel()
	return c.JSON(store.TestConnection(ctx, body.Hostname))
}

func (s *Server) handleListTracking(c *fiber.Ctx) error {
	return c.JSON(s.session.All())
}

func (s *Server) handleAttach(c *fiber.Ctx) error {
	var spec tracker.AttachSpec
	if err := c.BodyParser(&spec); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	snap, err := s.session.Attach(spec)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(snap)
}

func (s *Server) handleGetTracking(c *fiber.Ctx) error {
	snap, ok := s.session.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "entry is not being tracked")
	}
	return c.JSON(snap)
}

func (s *Server) handleDetach(c *fiber.Ctx) error {
	if err := s.session.Detach(c.Params("id")); err != nil {
		return trackingErr(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleActivate(c *fiber.Ctx) error {
	if err := s.session.SetActive(c.Params("id")); err != nil {
		return trackingErr(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleReplaceMission(c *fiber.Ctx) error {
	var body struct {
		Points []mission.Point `json:"points"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.session.ReplaceMission(c.Params("id"), body.Points); err != nil {
		return trackingErr(err)
	}
	snap, _ := s.session.Get(c.Params("id"))
	return c.JSON(snap)
}

func (s *Server) handleRestart(c *fiber.Ctx) error {
	if err := s.session.Restart(c.Params("id")); err != nil {
		return trackingErr(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	rec, err := s.session.Report(c.Params("id"))
	if err != nil {
		return trackingErr(err)
	}
	return c.JSON(rec)
}

func droneErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func trackingErr(err error) error {
	if errors.Is(err, tracker.ErrNotTracked) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
