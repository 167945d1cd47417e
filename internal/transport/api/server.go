// Package api serves the admission engine and the zone config table over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"stockpile.ai/internal/protocol"
	"stockpile.ai/internal/sim/admission"
	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/stockpile"
	"stockpile.ai/internal/sim/zoneconfig"
)

const maxBody = 64 * 1024

type Server struct {
	rt  *stockpile.Runtime
	log *log.Logger
}

func NewServer(rt *stockpile.Runtime, logger *log.Logger) *Server {
	return &Server{rt: rt, log: logger}
}

// Register mounts the /v1 endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/dispatch", s.handleDispatch)

	mux.HandleFunc("GET /v1/zones", s.handleListZones)
	mux.HandleFunc("GET /v1/zones/{id}/config", s.handleGetZone)
	mux.HandleFunc("PUT /v1/zones/{id}/config", s.handlePutZone)
	mux.HandleFunc("DELETE /v1/zones/{id}/config", s.handleDeleteZone)
	mux.HandleFunc("POST /v1/zones/{id}/rename", s.handleRenameZone)
	mux.HandleFunc("POST /v1/zones/{id}/copy", s.handleCopyZone)

	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("POST /v1/jobs", s.handleReserve)
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.handleRelease)
}

// Candidate names the item to evaluate: a placed item by id, or an explicit stack.
type Candidate struct {
	ItemID string     `json:"item_id,omitempty"`
	Item   *StackJSON `json:"item,omitempty"`
	Cell   [2]int     `json:"cell"`
}

type StackJSON struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Quality int    `json:"quality,omitempty"`
	Count   int    `json:"count"`
}

type VerdictJSON struct {
	Admit      bool   `json:"admit"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
	ZoneID     string `json:"zone_id,omitempty"`
	StackLimit int    `json:"stack_limit,omitempty"`
	Duplicates int    `json:"duplicates,omitempty"`
}

type DispatchJSON struct {
	Managed       bool `json:"managed"`
	Quantity      int  `json:"quantity"`
	RefillPartial bool `json:"refill_partial"`
	StackLimit    int  `json:"stack_limit,omitempty"`
}

type ZoneJSON struct {
	ZoneID            string `json:"zone_id"`
	Label             string `json:"label,omitempty"`
	RefillThreshold   int    `json:"refill_threshold"`
	SimilarStackLimit int    `json:"similar_stack_limit"`
	Exists            bool   `json:"exists"`
}

type ZonePut struct {
	RefillThreshold   int  `json:"refill_threshold"`
	SimilarStackLimit int  `json:"similar_stack_limit"`
	Interactive       bool `json:"interactive,omitempty"`
}

type JobJSON struct {
	ID          string `json:"id,omitempty"`
	ItemID      string `json:"item_id"`
	Kind        string `json:"kind"`
	Cell        [2]int `json:"cell"`
	ContainerID string `json:"container_id,omitempty"`
}

type errorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) candidate(rw http.ResponseWriter, r *http.Request) (model.ItemStack, model.Cell, bool) {
	var c Candidate
	if !decode(rw, r, &c) {
		return model.ItemStack{}, model.Cell{}, false
	}
	cell := model.CellFromArray(c.Cell)
	switch {
	case c.Item != nil:
		st, err := s.rt.ResolveStack(c.Item.ID, c.Item.Type, c.Item.Quality, c.Item.Count)
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return st, cell, false
		}
		if st.Count <= 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "count must be positive")
			return st, cell, false
		}
		return st, cell, true
	case c.ItemID != "":
		st, ok := s.rt.Grid().Item(c.ItemID)
		if !ok {
			writeError(rw, http.StatusNotFound, protocol.ErrBadRequest, "unknown item: "+c.ItemID)
			return st, cell, false
		}
		return st, cell, true
	default:
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "item_id or item required")
		return model.ItemStack{}, cell, false
	}
}

func (s *Server) handleEvaluate(rw http.ResponseWriter, r *http.Request) {
	item, cell, ok := s.candidate(rw, r)
	if !ok {
		return
	}
	writeJSON(rw, http.StatusOK, verdictJSON(s.rt.Evaluate(item, cell)))
}

func (s *Server) handleDispatch(rw http.ResponseWriter, r *http.Request) {
	item, cell, ok := s.candidate(rw, r)
	if !ok {
		return
	}
	p := s.rt.Dispatch(item, cell)
	writeJSON(rw, http.StatusOK, DispatchJSON{
		Managed:       p.Managed,
		Quantity:      p.Quantity,
		RefillPartial: p.RefillPartial,
		StackLimit:    p.StackLimit,
	})
}

func (s *Server) handleListZones(rw http.ResponseWriter, r *http.Request) {
	entries := s.rt.Store().Entries()
	out := make([]ZoneJSON, 0, len(entries))
	for _, e := range entries {
		z := zoneJSON(e.ID, e.Config, true)
		z.Label, _ = s.rt.Grid().Label(e.ID)
		out = append(out, z)
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleGetZone(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st := s.rt.Store()
	z := zoneJSON(id, st.Get(id), st.Exists(id))
	z.Label, _ = s.rt.Grid().Label(id)
	writeJSON(rw, http.StatusOK, z)
}

func (s *Server) handlePutZone(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in ZonePut
	if !decode(rw, r, &in) {
		return
	}
	cfg, err := s.rt.SetZone(id, zoneconfig.ZoneConfig{
		RefillThresholdPercent: in.RefillThreshold,
		SimilarStackLimit:      in.SimilarStackLimit,
	}, stockpile.SetOptions{Origin: "api", Interactive: in.Interactive})
	if err != nil {
		s.writeOpError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, zoneJSON(id, cfg, true))
}

func (s *Server) handleDeleteZone(rw http.ResponseWriter, r *http.Request) {
	if err := s.rt.DeleteZoneConfig(r.PathValue("id"), "api"); err != nil {
		s.writeOpError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameZone(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		To string `json:"to"`
	}
	if !decode(rw, r, &in) {
		return
	}
	if err := s.rt.RenameZone(id, in.To, "api"); err != nil {
		s.writeOpError(rw, err)
		return
	}
	st := s.rt.Store()
	writeJSON(rw, http.StatusOK, zoneJSON(in.To, st.Get(in.To), st.Exists(in.To)))
}

// handleCopyZone copies another zone's config onto {id}. An empty "from" reads the clipboard.
func (s *Server) handleCopyZone(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in struct {
		From string `json:"from"`
	}
	if !decode(rw, r, &in) {
		return
	}
	if err := s.rt.CopyZone(id, in.From, "api"); err != nil {
		s.writeOpError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, zoneJSON(id, s.rt.Store().Get(id), true))
}

func (s *Server) handleListJobs(rw http.ResponseWriter, r *http.Request) {
	jobs := s.rt.Ledger().ActiveJobs()
	out := make([]JobJSON, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobJSON(j))
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleReserve(rw http.ResponseWriter, r *http.Request) {
	var in JobJSON
	if !decode(rw, r, &in) {
		return
	}
	kind := model.JobKind(in.Kind)
	if kind == "" {
		kind = model.JobToCell
	}
	j, err := s.rt.Reserve(stockpile.JobRequest{
		ItemID:      in.ItemID,
		Kind:        kind,
		Cell:        model.CellFromArray(in.Cell),
		ContainerID: in.ContainerID,
	})
	if err != nil {
		s.writeOpError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, jobJSON(j))
}

func (s *Server) handleRelease(rw http.ResponseWriter, r *http.Request) {
	if !s.rt.Release(r.PathValue("id")) {
		writeError(rw, http.StatusNotFound, protocol.ErrBadRequest, "unknown job")
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeOpError(rw http.ResponseWriter, err error) {
	code, retry := stockpile.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case protocol.ErrRateLimit:
		secs := int(retry.Seconds())
		if secs < 1 {
			secs = 1
		}
		rw.Header().Set("Retry-After", strconv.Itoa(secs))
		status = http.StatusTooManyRequests
	case protocol.ErrBadRequest:
		status = http.StatusBadRequest
		if errors.Is(err, stockpile.ErrUnknownItem) {
			status = http.StatusNotFound
		}
	case protocol.ErrZoneNotFound:
		status = http.StatusNotFound
	case protocol.ErrConflict:
		status = http.StatusConflict
	default:
		if s.log != nil {
			s.log.Printf("api: %v", err)
		}
	}
	writeError(rw, status, code, err.Error())
}

func verdictJSON(v admission.Verdict) VerdictJSON {
	return VerdictJSON{
		Admit:      v.Admit,
		Quantity:   v.Quantity,
		Reason:     string(v.Reason),
		ZoneID:     v.ZoneID,
		StackLimit: v.StackLimit,
		Duplicates: v.Duplicates,
	}
}

func zoneJSON(id string, c zoneconfig.ZoneConfig, exists bool) ZoneJSON {
	return ZoneJSON{
		ZoneID:            id,
		RefillThreshold:   c.RefillThresholdPercent,
		SimilarStackLimit: c.SimilarStackLimit,
		Exists:            exists,
	}
}

func jobJSON(j model.TransferJob) JobJSON {
	return JobJSON{
		ID:          j.ID,
		ItemID:      j.Item.ID,
		Kind:        string(j.Kind),
		Cell:        j.Cell.ToArray(),
		ContainerID: j.ContainerID,
	}
}

func decode(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, message string) {
	writeJSON(rw, status, errorJSON{Code: code, Message: message})
}
