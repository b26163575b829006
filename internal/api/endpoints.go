package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ir-relay/internal/audit"
	"github.com/nerrad567/ir-relay/internal/device"
	"github.com/nerrad567/ir-relay/internal/hub"
	"github.com/nerrad567/ir-relay/internal/infrastructure/mqtt"
)

// Resource names accepted on PUT /endpoints/{endpointID}/{resourceID}.
const (
	resourcePower  = "power"
	resourceVolume = "volume"
)

// Command event targets.
const (
	targetEmitter = "emitter"
	targetHub     = "hub"
)

// powerRequest is the body for PUT /endpoints/{id}/power.
type powerRequest struct {
	State string `json:"state"`
}

// volumeRequest is the body for PUT /endpoints/{id}/volume.
// Pointer fields distinguish absent from zero-valued.
type volumeRequest struct {
	VolumeSteps *int  `json:"volumeSteps"`
	Mute        *bool `json:"mute"`
}

// handleListEndpoints returns the static device list merged with live
// hub-discovered devices. Hub failure degrades to the static list.
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints := s.registry.List(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": endpoints,
		"count":     len(endpoints),
	})
}

// handleEndpointCommand routes a PUT to the handler for the requested
// resource. Unknown resources are unsupported operations.
func (s *Server) handleEndpointCommand(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	resourceID := chi.URLParam(r, "resourceID")

	switch resourceID {
	case resourcePower:
		s.handlePower(w, r, endpointID)
	case resourceVolume:
		s.handleVolume(w, r, endpointID)
	default:
		writeUnsupported(w, "no handler for resource "+resourceID+" on endpoint "+endpointID)
	}
}

// handlePower turns an endpoint on or off.
//
// IR-controlled endpoints get a single blocking power key emission;
// hub-managed endpoints have the state forwarded verbatim as the hub
// command verb.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request, endpointID string) {
	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State == "" {
		writeValidationError(w, "state is required")
		return
	}

	ctx := r.Context()

	if s.registry.Classify(endpointID) == device.KindHubManaged {
		rec := s.recordCommand(ctx, endpointID, resourcePower, req.State, 1)
		if err := s.hub.Command(ctx, endpointID, req.State); err != nil {
			s.settleCommand(rec, targetHub, err)
			s.writeHubError(w, err)
			return
		}
		s.settleCommand(rec, targetHub, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	// Television and streaming device share the single power toggle key.
	rec := s.recordCommand(ctx, endpointID, resourcePower, device.KeyPower, 1)
	if err := s.repeater.Repeat(ctx, device.KeyPower, endpointID, 1); err != nil {
		s.settleCommand(rec, targetEmitter, err)
		writeUpstreamError(w, "IR emitter unavailable")
		return
	}
	s.settleCommand(rec, targetEmitter, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleVolume adjusts television volume.
//
// mute emits the mute toggle once, blocking. volumeSteps dispatches a
// detached paced repeat of the volume key and responds 202 before the
// sequence finishes; its outcome lands in the audit log.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request, endpointID string) {
	if s.registry.Classify(endpointID) != device.KindTelevision {
		writeUnsupported(w, "volume is only supported on the television")
		return
	}

	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.VolumeSteps == nil && req.Mute == nil {
		writeValidationError(w, "request must include volumeSteps or mute")
		return
	}

	ctx := r.Context()

	// Mute is a hardware toggle; any mute request presses it once.
	if req.Mute != nil {
		rec := s.recordCommand(ctx, endpointID, resourceVolume, device.KeyMute, 1)
		if err := s.repeater.Repeat(ctx, device.KeyMute, endpointID, 1); err != nil {
			s.settleCommand(rec, targetEmitter, err)
			writeUpstreamError(w, "IR emitter unavailable")
			return
		}
		s.settleCommand(rec, targetEmitter, nil)
	}

	if req.VolumeSteps != nil && *req.VolumeSteps != 0 {
		key := device.KeyVolumeUp
		count := *req.VolumeSteps
		if count < 0 {
			key = device.KeyVolumeDown
			count = -count
		}

		rec := s.recordCommand(ctx, endpointID, resourceVolume, key, count)
		s.repeater.Dispatch(key, endpointID, count, func(err error) {
			s.settleCommand(rec, targetEmitter, err)
		})

		// The sequence continues in the background; the caller learns
		// the final outcome only via GET /commands.
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "accepted",
			"command_id": recID(rec),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// writeHubError maps hub client errors to upstream error responses.
func (s *Server) writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrAuth):
		writeUpstreamError(w, "hub rejected authentication")
	default:
		writeUpstreamError(w, "hub unavailable")
	}
}

// recordCommand creates a pending audit record for a relayed command.
// Audit failures are logged, never fatal to the command itself.
func (s *Server) recordCommand(ctx context.Context, endpointID, resource, command string, count int) *audit.CommandRecord {
	rec := &audit.CommandRecord{
		EndpointID: endpointID,
		Resource:   resource,
		Command:    command,
		Count:      count,
	}
	if err := s.audit.Create(ctx, rec); err != nil {
		s.logger.Error("failed to record command", "error", err, "endpoint_id", endpointID)
		return nil
	}
	return rec
}

// settleCommand marks an audit record done or failed and publishes the
// matching command event. Runs against the background context because
// detached sequences settle after the originating request has ended.
func (s *Server) settleCommand(rec *audit.CommandRecord, target string, cmdErr error) {
	status := audit.StatusDone
	detail := ""
	if cmdErr != nil {
		status = audit.StatusFailed
		detail = cmdErr.Error()
	}

	if rec != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		if err := s.audit.UpdateStatus(ctx, rec.ID, status, detail); err != nil {
			s.logger.Error("failed to settle command record", "error", err, "command_id", rec.ID)
		}
	}

	if s.events != nil && rec != nil {
		event := mqtt.CommandEvent{
			EndpointID: rec.EndpointID,
			Resource:   rec.Resource,
			Command:    rec.Command,
			Count:      rec.Count,
			Target:     target,
			Status:     status,
		}
		if err := s.events.PublishCommandEvent(event); err != nil {
			s.logger.Warn("failed to publish command event", "error", err)
		}
	}
}

// recID returns the record id, empty when auditing failed.
func recID(rec *audit.CommandRecord) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}
