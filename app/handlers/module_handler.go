package handlers

import (
	"net/http"

	"ingest-svc/app/dto"

	"github.com/gin-gonic/gin"
)

// moduleRegistry is the static list of capability categories results may be
// tagged with.
var moduleRegistry = []dto.ModuleInfo{
	{Name: "port-scan", Description: "TCP/UDP port and service discovery"},
	{Name: "subenum", Description: "Subdomain enumeration"},
	{Name: "dnsx", Description: "DNS resolution and record probing"},
	{Name: "httpx", Description: "HTTP service probing and fingerprinting"},
	{Name: "tls-audit", Description: "TLS configuration and certificate checks"},
	{Name: "vuln-scan", Description: "Template-based vulnerability checks"},
}

// ModuleHandler serves the capability module registry.
type ModuleHandler struct{}

// NewModuleHandler creates a new module handler.
func NewModuleHandler() *ModuleHandler {
	return &ModuleHandler{}
}

// List handles the module listing.
func (h *ModuleHandler) List(c *gin.Context) {
	respondJSON(c, http.StatusOK, dto.ModulesResponse{
		Modules: moduleRegistry,
		Count:   len(moduleRegistry),
	})
}
