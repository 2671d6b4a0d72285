package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// createPrinterResponse is a created printer plus the probe that vetted it.
// Probe is absent when the request used force.
type createPrinterResponse struct {
	*printer.Printer
	Probe *probe.Result `json:"probe,omitempty"`
}

// connectResponse is returned by POST /printers/{id}/connect.
type connectResponse struct {
	Printer *printer.Printer `json:"printer"`
	Probe   probe.Result     `json:"probe"`
}

// testResponse is returned by POST /printers/test.
type testResponse struct {
	OK    bool         `json:"ok"`
	Probe probe.Result `json:"probe"`
}

// decodeStrict decodes a single JSON object into v, rejecting unknown
// fields and trailing data.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// handleListPrinters returns every printer, connected first.
func (s *Server) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	printers, err := s.printers.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"printers": printers, "count": len(printers)})
}

// handleGetPrinter returns a single printer by ID.
func (s *Server) handleGetPrinter(w http.ResponseWriter, r *http.Request) {
	p, err := s.printers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleGetConnectedPrinter returns the connected printer, or 404 when none is.
func (s *Server) handleGetConnectedPrinter(w http.ResponseWriter, r *http.Request) {
	p, err := s.printers.GetConnected(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "no printer is connected")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreatePrinter stores a new printer after probing it.
//
// Body: {name, host, protocol, port, path?, force?}. Without force an
// unreachable printer is rejected with 400 and the probe result.
func (s *Server) handleCreatePrinter(w http.ResponseWriter, r *http.Request) {
	var in printer.CreateInput
	if err := decodeStrict(r, &in); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	p, res, err := s.printers.Create(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusCreated, createPrinterResponse{Printer: p, Probe: res})
}

// handleUpdatePrinter applies a partial update. Omitted fields keep their
// stored values; "path": "" clears the path.
func (s *Server) handleUpdatePrinter(w http.ResponseWriter, r *http.Request) {
	var patch printer.Patch
	if err := decodeStrict(r, &patch); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if patch.IsEmpty() {
		writeBadRequest(w, "no fields to update")
		return
	}

	p, err := s.printers.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeletePrinter removes a printer by ID.
func (s *Server) handleDeletePrinter(w http.ResponseWriter, r *http.Request) {
	if err := s.printers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConnectPrinter probes the printer and makes it the only connected one.
func (s *Server) handleConnectPrinter(w http.ResponseWriter, r *http.Request) {
	p, res, err := s.printers.Connect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Printer: p, Probe: res})
}

// handleDisconnectPrinter clears the connected flag without probing.
func (s *Server) handleDisconnectPrinter(w http.ResponseWriter, r *http.Request) {
	p, err := s.printers.Disconnect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePrinterStatus probes a stored printer without changing it.
func (s *Server) handlePrinterStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.printers.StatusOf(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err, "printer not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleConnectedStatus probes the connected printer without changing it.
func (s *Server) handleConnectedStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.printers.StatusOfConnected(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "no printer is connected")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTestPrinter probes an unsaved {host, protocol, port, path}. An
// unreachable target is a normal 200 response with ok=false.
func (s *Server) handleTestPrinter(w http.ResponseWriter, r *http.Request) {
	var fields printer.Fields
	if err := decodeStrict(r, &fields); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.printers.Test(r.Context(), fields)
	if err != nil {
		s.writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, testResponse{OK: res.OK, Probe: res})
}

// handleDiscoverPrinters browses mDNS for printers. Nothing is stored.
func (s *Server) handleDiscoverPrinters(w http.ResponseWriter, r *http.Request) {
	if s.discoverer == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "discovery is disabled")
		return
	}

	candidates, err := s.discoverer.Discover(r.Context())
	if err != nil {
		s.logger.Warn("printer discovery failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceFailure, "discovery failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates, "count": len(candidates)})
}
