// Package schema publishes JSON Schemas of the API request bodies so clients
// and the workflow engine can validate payloads before sending them.
package schema

import (
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
	"github.com/reseich/reseich-api/internal/chat"
	"github.com/reseich/reseich-api/internal/credits"
	"github.com/reseich/reseich-api/internal/email"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/marketplace"
	"github.com/reseich/reseich-api/internal/research"
	"github.com/reseich/reseich-api/internal/users"
	"github.com/reseich/reseich-api/internal/workflow"
)

var types = map[string]interface{}{
	"research-submit":     research.SubmitBody{},
	"research-status":     research.StatusBody{},
	"credits-purchase":    credits.PurchaseBody{},
	"marketplace-listing": marketplace.CreateListingBody{},
	"payment-sei":         marketplace.SEIPaymentBody{},
	"chat-send":           chat.SendBody{},
	"chat-response":       chat.ReplyBody{},
	"email-send":          email.SendBody{},
	"user-email-settings": users.EmailSettingsBody{},
	"workflow-research":   workflow.ResearchPayload{},
	"workflow-chat":       workflow.ChatPayload{},
	"workflow-email":      workflow.EmailPayload{},
}

// Registry reflects schemas lazily and caches them.
type Registry struct {
	reflector *jsonschema.Reflector
	mu        sync.Mutex
	cache     map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{
		reflector: &jsonschema.Reflector{
			ExpandedStruct: true,
			DoNotReference: true,
		},
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Names lists the published schemas in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (*jsonschema.Schema, bool) {
	v, ok := types[name]
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache[name]; ok {
		return s, true
	}
	s := r.reflector.Reflect(v)
	s.Title = name
	r.cache[name] = s
	return s, true
}

// List handles GET /api/schemas.
func (r *Registry) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "schemas": r.Names()})
}

// Show handles GET /api/schemas/:name.
func (r *Registry) Show(c *gin.Context) {
	s, ok := r.Get(c.Param("name"))
	if !ok {
		apierrors.AbortWithNotFound(c, "schema not found", map[string]interface{}{"available": r.Names()})
		return
	}
	c.JSON(http.StatusOK, s)
}
