// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/registry"
)

// SessionInfo describes one registered session.
type SessionInfo struct {
	FullName   string          `json:"full_name"`
	SystemType base.SystemType `json:"system_type"`
	Source     string          `json:"source"`
	Name       string          `json:"name"`
	Connected  bool            `json:"connected"`
	Added      bool            `json:"added"`
	Alive      *bool           `json:"alive,omitempty"`
}

// SessionListResponse is the body of GET /api/v1/sessions.
type SessionListResponse struct {
	Phase    registry.InitializationPhase `json:"phase"`
	Sessions []SessionInfo                `json:"sessions"`
	Errors   map[string]string            `json:"errors,omitempty"`
}

// AddSessionRequest is the body of POST /api/v1/sessions.
type AddSessionRequest struct {
	Source string `json:"source"`
	Name   string `json:"name"`

	// Connect opens the session before registering it.
	Connect bool `json:"connect,omitempty"`
}

// RefreshRequest is the optional body of POST /api/v1/sessions/refresh.
type RefreshRequest struct {
	Sources []string `json:"sources,omitempty"`
}

// RefreshResponse is the body returned by a refresh.
type RefreshResponse struct {
	Success  bool              `json:"success"`
	Duration string            `json:"duration"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	phase := s.registry.Phase()
	status, code := "ok", http.StatusOK
	switch phase {
	case registry.PhaseNotStarted:
		status, code = "unavailable", http.StatusServiceUnavailable
	case registry.PhaseFailed:
		status = "degraded"
	case registry.PhasePartial, registry.PhaseLoading:
		status = "starting"
	}
	s.sendJSON(w, r, code, map[string]interface{}{
		"status": status,
		"phase":  phase,
	})
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.GetAll(r.Context())
	if err != nil {
		s.sendRegistryError(w, r, err)
		return
	}

	resp := SessionListResponse{
		Phase:    snap.Phase(),
		Sessions: make([]SessionInfo, 0, snap.Len()),
		Errors:   snap.Errors(),
	}
	for _, name := range snap.Names() {
		m, _ := snap.Get(name)
		resp.Sessions = append(resp.Sessions, s.sessionInfo(m))
	}
	s.sendJSON(w, r, http.StatusOK, resp)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["full_name"]
	m, err := s.registry.Get(r.Context(), name)
	if err != nil {
		s.sendRegistryError(w, r, err)
		return
	}

	info := s.sessionInfo(m)
	if m.IsCached() {
		alive := m.IsAlive(r.Context())
		info.Alive = &alive
	}
	s.sendJSON(w, r, http.StatusOK, info)
}

func (s *Server) addSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req AddSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	fn, err := base.NewFullName(base.SystemTypeEnterprise, req.Source, req.Name)
	if err != nil {
		s.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	quota, ok := s.registry.AddedSessionQuota(req.Source)
	if !ok {
		s.sendError(w, r, http.StatusNotFound, fmt.Sprintf("unknown enterprise system '%s'", req.Source))
		return
	}
	m := manager.NewEnterpriseSessionManager(req.Source, req.Name, s.registry.ConnectEnterprise(), s.logger)
	if req.Connect {
		if _, err := m.Get(r.Context()); err != nil {
			s.sendError(w, r, http.StatusBadGateway, err.Error())
			return
		}
	}
	if err := s.registry.AddSessionWithinQuota(m, quota); err != nil {
		_ = m.Close(r.Context())
		s.sendRegistryError(w, r, err)
		return
	}

	s.sendJSON(w, r, http.StatusCreated, s.sessionInfoFor(m, fn.String()))
}

func (s *Server) removeSessionHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["full_name"]
	if _, err := base.ParseFullName(name); err != nil {
		s.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.registry.RemoveSession(name)
	if err != nil {
		s.sendRegistryError(w, r, err)
		return
	}
	if m == nil {
		s.sendError(w, r, http.StatusNotFound, fmt.Sprintf("session '%s' not found", name))
		return
	}
	if err := m.Close(r.Context()); err != nil {
		s.logger.WarnWithErr("Failed to close removed session", err, map[string]interface{}{
			"full_name":  name,
			"request_id": RequestID(r.Context()),
		})
	}
	s.sendJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": name,
	})
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	start := time.Now()
	if err := s.registry.SyncSources(r.Context(), req.Sources...); err != nil {
		s.sendRegistryError(w, r, err)
		return
	}
	snap, err := s.registry.GetAll(r.Context())
	if err != nil {
		s.sendRegistryError(w, r, err)
		return
	}

	s.sendJSON(w, r, http.StatusOK, RefreshResponse{
		Success:  true,
		Duration: time.Since(start).String(),
		Errors:   snap.Errors(),
	})
}

func (s *Server) sessionInfo(m *manager.SessionManager) SessionInfo {
	return s.sessionInfoFor(m, m.FullName().String())
}

func (s *Server) sessionInfoFor(m *manager.SessionManager, fullName string) SessionInfo {
	added, _ := s.registry.IsAddedSession(fullName)
	return SessionInfo{
		FullName:   fullName,
		SystemType: m.SystemType(),
		Source:     m.Source(),
		Name:       m.Name(),
		Connected:  m.IsCached(),
		Added:      added,
	}
}

// sendRegistryError maps registry errors to HTTP status codes.
func (s *Server) sendRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, base.ErrNotInitialized):
		code = http.StatusServiceUnavailable
	case errors.Is(err, base.ErrInvalidName):
		code = http.StatusBadRequest
	case errors.Is(err, base.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, base.ErrAlreadyExists):
		code = http.StatusConflict
	case errors.Is(err, registry.ErrQuotaExceeded):
		code = http.StatusTooManyRequests
	}
	if code == http.StatusInternalServerError {
		s.logger.ErrorWithErr("API request failed", err, map[string]interface{}{
			"request_id": RequestID(r.Context()),
			"path":       r.URL.Path,
		})
	}
	s.sendError(w, r, code, err.Error())
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.sendJSON(w, r, status, map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": RequestID(r.Context()),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorWithErr("Failed to encode response", err, map[string]interface{}{
			"request_id": RequestID(r.Context()),
		})
	}
}
