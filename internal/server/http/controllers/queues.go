package controllers

import (
	"errors"
	"net/http"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/auth"
	"github.com/shyifrah/kas/internal/queue"
	"github.com/shyifrah/kas/internal/runtime"
	"github.com/shyifrah/kas/internal/session"
)

// QueuesController exposes a read-only view of the queue registry. Callers
// authenticate with HTTP basic auth and see what a broker QUERY would show
// them: COMMAND QUERY is required and queues are filtered by QUEUE read.
type QueuesController struct {
	queues *queue.Registry
	users  *auth.Directory
	access *access.Manager
}

// NewQueuesController creates a new queues controller.
func NewQueuesController(rt *runtime.Runtime) *QueuesController {
	return &QueuesController{queues: rt.Queues(), users: rt.Users(), access: rt.Access()}
}

// RegisterRoutes registers queue routes with the given mux.
func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/queues", c.handleList)
	mux.HandleFunc("GET /v1/queues/{name}", c.handleGet)
}

// authorize authenticates the request and checks COMMAND QUERY. It writes
// the failure response and returns "" when the caller may not proceed.
func (c *QueuesController) authorize(w http.ResponseWriter, r *http.Request) string {
	user, password, ok := r.BasicAuth()
	if !ok || c.users.Authenticate(user, password) != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="kas"`)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return ""
	}
	if !c.allowed(access.ClassCommand, session.CommandQuery, user, access.Execute) {
		writeError(w, http.StatusForbidden, "access denied")
		return ""
	}
	return user
}

func (c *QueuesController) allowed(class access.ClassName, resource, user string, required access.Level) bool {
	dec, err := c.access.CheckAccess(class, resource, user, required)
	return err == nil && dec == access.Granted
}

// handleList lists queues whose name matches the optional "pattern" query
// parameter.
func (c *QueuesController) handleList(w http.ResponseWriter, r *http.Request) {
	user := c.authorize(w, r)
	if user == "" {
		return
	}
	infos, err := c.queues.Query(r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]queueInfo, 0, len(infos))
	for _, in := range infos {
		if c.allowed(access.ClassQueue, in.Name, user, access.Read) {
			out = append(out, toQueueInfo(in))
		}
	}
	writeJSON(w, map[string]any{"queues": out})
}

func (c *QueuesController) handleGet(w http.ResponseWriter, r *http.Request) {
	user := c.authorize(w, r)
	if user == "" {
		return
	}
	name, err := queue.NormalizeName(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !c.allowed(access.ClassQueue, name, user, access.Read) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	q, err := c.queues.Lookup(name)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "queue not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, toQueueInfo(q.Info()))
}
