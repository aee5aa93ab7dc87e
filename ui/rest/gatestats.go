package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AzielCF/az-desk/pkg/dispatchgate"
)

var statsGate *dispatchgate.Gate

// SetStatsGate wires the running gate for the monitoring endpoint.
func SetStatsGate(g *dispatchgate.Gate) {
	statsGate = g
}

// GetGateStats returns real-time dispatch gate statistics
func GetGateStats(c *fiber.Ctx) error {
	if statsGate == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Dispatch gate not initialized",
		})
	}
	return c.JSON(statsGate.GetStats())
}
