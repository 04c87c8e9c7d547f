// fpscand exposes the engine's five operations over HTTP. It is thin glue:
// all protocol and biometric behavior lives in the engine packages, and
// byte fields cross this boundary base64-encoded inside JSON.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/internal/logging"
	"github.com/veritouch/fpscan/pkg/scanner"
)

type errorResponse struct {
	Error string       `json:"error"`
	Kind  scanner.Kind `json:"kind"`
}

func main() {
	cfgPath := flag.String("config", "", "TOML config file")
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		slog.Error("setup logging", slog.Any("error", err))
		os.Exit(1)
	}

	session := scanner.NewSession(cfg, scanner.Probe(cfg))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(errorResponse{Error: err.Error(), Kind: scanner.KindOf(err)})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/api/connect", func(c *fiber.Ctx) error {
		res, err := session.Connect(c.Context())
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/api/disconnect", func(c *fiber.Ctx) error {
		session.Disconnect()
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/api/status", func(c *fiber.Ctx) error {
		return c.JSON(session.Status())
	})

	app.Post("/api/capture", func(c *fiber.Ctx) error {
		var opts scanner.CaptureOptions
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&opts); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid capture options: "+err.Error())
			}
		}
		res, err := session.Capture(c.Context(), opts)
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/api/match", func(c *fiber.Ctx) error {
		var req struct {
			TemplateA []byte `json:"templateA"`
			TemplateB []byte `json:"templateB"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid match request: "+err.Error())
		}
		// match is total: decode failures come back as a zero-score result
		return c.JSON(session.Match(req.TemplateA, req.TemplateB))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		session.Disconnect()
		if err := app.Shutdown(); err != nil {
			slog.Warn("shutdown", slog.Any("error", err))
		}
	}()

	slog.Info("fpscand listening", slog.String("addr", *addr))
	if err := app.Listen(*addr); err != nil {
		slog.Error("listen", slog.Any("error", err))
		os.Exit(1)
	}
}

// engineError maps engine error kinds onto HTTP status codes.
func engineError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch scanner.KindOf(err) {
	case scanner.KindDeviceNotFound:
		code = fiber.StatusNotFound
	case scanner.KindPermissionDenied:
		code = fiber.StatusForbidden
	case scanner.KindAlreadyCapturing:
		code = fiber.StatusConflict
	case scanner.KindNoFinger, scanner.KindLowQuality:
		code = fiber.StatusUnprocessableEntity
	case scanner.KindTransferTimeout:
		code = fiber.StatusGatewayTimeout
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error(), Kind: scanner.KindOf(err)})
}
