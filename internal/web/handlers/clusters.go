package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/kozaktomas/photo-dedupe/internal/review"
)

// ClustersHandler serves the clusters of one detection run to an external
// reviewer and applies its decisions. Each cluster can be decided once.
type ClustersHandler struct {
	sessionID string
	lib       *library.Library
	applier   *review.Applier

	mu       sync.Mutex
	clusters []grouper.Cluster
	outcomes map[int]*review.Outcome
	members  map[library.Identity]struct{}
}

// NewClustersHandler creates a new clusters handler
func NewClustersHandler(sessionID string, lib *library.Library, applier *review.Applier, clusters []grouper.Cluster) *ClustersHandler {
	members := make(map[library.Identity]struct{})
	for _, c := range clusters {
		for _, m := range c.Members {
			members[m.ID] = struct{}{}
		}
	}
	return &ClustersHandler{
		sessionID: sessionID,
		lib:       lib,
		applier:   applier,
		clusters:  clusters,
		outcomes:  make(map[int]*review.Outcome),
		members:   members,
	}
}

type MemberResponse struct {
	ID       library.Identity `json:"id"`
	Distance int              `json:"distance"`
	ImageURL string           `json:"image_url"`
}

type ClusterResponse struct {
	ID      int                `json:"id"`
	Members []MemberResponse   `json:"members"`
	Decided bool               `json:"decided"`
	Deleted []library.Identity `json:"deleted,omitempty"`
}

type ClusterListResponse struct {
	SessionID string            `json:"session_id"`
	Total     int               `json:"total"`
	Pending   int               `json:"pending"`
	Clusters  []ClusterResponse `json:"clusters"`
}

type DecisionRequest struct {
	Delete []string `json:"delete"`
}

// imageURL returns the API path serving an identity's pixels.
func imageURL(id library.Identity) string {
	return "/api/v1/images?id=" + url.QueryEscape(id.String())
}

// clusterResponse must be called with h.mu held.
func (h *ClustersHandler) clusterResponse(id int) ClusterResponse {
	c := h.clusters[id]
	resp := ClusterResponse{ID: id, Members: make([]MemberResponse, len(c.Members))}
	for i, m := range c.Members {
		resp.Members[i] = MemberResponse{ID: m.ID, Distance: m.Distance, ImageURL: imageURL(m.ID)}
	}
	if out, ok := h.outcomes[id]; ok {
		resp.Decided = true
		resp.Deleted = out.Deleted
	}
	return resp
}

// clusterID parses the {id} URL parameter. It writes the error response and
// returns false when the id is unusable.
func (h *ClustersHandler) clusterID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return 0, false
	}
	if id < 0 || id >= len(h.clusters) {
		respondError(w, http.StatusNotFound, "cluster not found")
		return 0, false
	}
	return id, true
}

// List returns every cluster with its review state.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := ClusterListResponse{
		SessionID: h.sessionID,
		Total:     len(h.clusters),
		Pending:   len(h.clusters) - len(h.outcomes),
		Clusters:  make([]ClusterResponse, len(h.clusters)),
	}
	for i := range h.clusters {
		resp.Clusters[i] = h.clusterResponse(i)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns a single cluster.
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clusterID(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	respondJSON(w, http.StatusOK, h.clusterResponse(id))
}

// Decide deletes the chosen members of a cluster. An empty delete list keeps
// every member and marks the cluster as decided.
func (h *ClustersHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clusterID(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	ids := make([]library.Identity, len(req.Delete))
	for i, s := range req.Delete {
		ids[i] = library.NewIdentity(s)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, decided := h.outcomes[id]; decided {
		respondError(w, http.StatusConflict, "cluster already decided")
		return
	}
	if err := review.ValidateDecision(h.clusters[id], ids); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.applier.Apply(ids)
	// Deletions already applied must not be attempted twice.
	h.outcomes[id] = out
	if err == nil {
		err = h.applier.Flush()
	}
	if err != nil {
		log.Printf("cluster %d: applying decision: %s", id, sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to apply decision")
		return
	}

	respondJSON(w, http.StatusOK, h.clusterResponse(id))
}

// Image serves the original file, or a JPEG thumbnail fitted into size x size
// pixels when the size query parameter is set. Only cluster members are served.
func (h *ClustersHandler) Image(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "missing image id")
		return
	}
	id := library.NewIdentity(raw)

	h.mu.Lock()
	_, known := h.members[id]
	h.mu.Unlock()
	if !known {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	sizeParam := r.URL.Query().Get("size")
	if sizeParam == "" {
		h.serveOriginal(w, r, id)
		return
	}

	size, err := strconv.Atoi(sizeParam)
	if err != nil || size < 1 || size > constants.MaxThumbnailSize {
		respondError(w, http.StatusBadRequest, "invalid size")
		return
	}

	img, err := h.lib.Decode(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "image not readable")
		return
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if err := imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		log.Printf("encoding thumbnail for %s: %v", sanitizeForLog(id.String()), err)
	}
}

func (h *ClustersHandler) serveOriginal(w http.ResponseWriter, r *http.Request, id library.Identity) {
	f, err := h.lib.Open(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, id.Name(), info.ModTime(), f)
}
