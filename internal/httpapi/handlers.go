package httpapi

import (
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/config"
	gwws "github.com/neoedge/gateway/internal/websocket"
)

type handler struct {
	deps Dependencies
}

// dashboard serves the single-page live dashboard, grounded on
// original_source/web.py's GET / (which reads index.html from disk); here
// the markup is rendered once at boot and held in memory.
func (h *handler) dashboard(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if h.deps.DashboardTpl == "" {
		return c.SendString(defaultDashboardHTML)
	}
	return c.SendString(h.deps.DashboardTpl)
}

// healthz is a liveness probe distinct from the dashboard/tags endpoints.
func (h *handler) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"app":     h.deps.AppName,
		"version": h.deps.AppVersion,
	})
}

// tags returns the full current cache snapshot, the same payload the
// websocket sends on connect (spec.md §6.5 GET /api/tags).
func (h *handler) tags(c *fiber.Ctx) error {
	return c.JSON(h.deps.Cache.Snapshot())
}

// uploadConfig implements the upload flow of original_source/web.py's
// upload_config: validate the uploaded body, write it to a staging path,
// and only then atomically rename it over the active config. An invalid
// upload is rejected before anything is written.
// The process is NOT restarted automatically — spec.md §6.5 separates
// upload from restart so an operator can review before committing.
func (h *handler) uploadConfig(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field: "+err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not open upload: "+err.Error())
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read upload: "+err.Error())
	}

	ok, errMsg := config.ValidateAndStage(buf, h.deps.StagingPath, h.deps.ConfigPath)
	if !ok {
		h.deps.Log.Warn("rejected uploaded config", zap.String("reason", errMsg))
		return fiber.NewError(fiber.StatusBadRequest, "invalid config: "+errMsg)
	}

	h.deps.Log.Info("config updated and validated", zap.String("path", h.deps.ConfigPath))
	return c.JSON(fiber.Map{"status": "Config updated and validated"})
}

// restart re-executes the current process in place, mirroring
// original_source/web.py's os.execv restart (a delayed goroutine gives the
// response time to flush before the process image is replaced).
func (h *handler) restart(c *fiber.Ctx) error {
	h.deps.Log.Info("restart requested")

	go func() {
		time.Sleep(1 * time.Second)
		self, err := exec.LookPath(os.Args[0])
		if err != nil {
			self = os.Args[0]
		}
		if execErr := syscall.Exec(self, os.Args, os.Environ()); execErr != nil {
			h.deps.Log.Error("restart exec failed", zap.Error(execErr))
		}
	}()

	return c.JSON(fiber.Map{"status": "restarting"})
}

// handleWebsocket registers the connection with the hub and replays a
// cache snapshot, then blocks until the client disconnects (spec.md §9.3).
func (h *handler) handleWebsocket(c *websocket.Conn) {
	snapshot := make(gwws.Frame, 0)
	for nodeID, payload := range h.deps.Cache.Snapshot() {
		snapshot[nodeID] = payload
	}
	h.deps.Hub.HandleConnection(c, snapshot)
}

const defaultDashboardHTML = `<!DOCTYPE html>
<html>
<head><title>neoedge gateway</title></head>
<body>
<h1>neoedge gateway</h1>
<div id="tags"></div>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const frame = JSON.parse(ev.data);
  document.getElementById("tags").textContent = JSON.stringify(frame, null, 2);
};
</script>
</body>
</html>`
