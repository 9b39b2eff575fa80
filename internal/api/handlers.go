package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/gate"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/store"
	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/transport"
)

// QueueResponse is the body of GET /v1/queue.
type QueueResponse struct {
	Count int                   `json:"count"`
	Items []store.QueuedRequest `json:"items"`
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.ListQueued(r.Context())
	if err != nil {
		s.opts.Logger.Error("list queue failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if items == nil {
		items = []store.QueuedRequest{}
	}
	respondJSON(w, http.StatusOK, QueueResponse{Count: len(items), Items: items})
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request) {
	s.trigger.Trigger()
	respondJSON(w, http.StatusAccepted, map[string]bool{"scheduled": true})
}

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Method      string            `json:"method" validate:"required,oneof=GET HEAD OPTIONS POST PUT PATCH DELETE"`
	URL         string            `json:"url" validate:"required,url"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	ContentType string            `json:"content_type"`
	SyncTag     string            `json:"sync_tag"`
	Category    string            `json:"category"`

	// QueueOffline defaults to true.
	QueueOffline *bool `json:"queue_offline"`
}

func (req *DispatchRequest) toTransport() transport.Request {
	header := make(http.Header, len(req.Headers)+1)
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	if req.ContentType != "" {
		header.Set("Content-Type", req.ContentType)
	}
	var body []byte
	if req.Body != "" {
		body = []byte(req.Body)
	}
	return transport.Request{
		Method: req.Method,
		URL:    req.URL,
		Header: header,
		Body:   body,
	}
}

// hopHeaders are not copied from the upstream response.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []gate.DispatchOption{gate.WithSyncTag(req.SyncTag), gate.WithCategory(req.Category)}
	if req.QueueOffline != nil && !*req.QueueOffline {
		opts = append(opts, gate.WithoutQueueing())
	}

	res, err := s.gate.Do(r.Context(), req.toTransport(), opts...)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrInvalidRequest):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gate.ErrUnserializableBody):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, transport.ErrTransport):
			respondError(w, http.StatusBadGateway, err.Error())
		case store.IsStorageError(err):
			s.opts.Logger.Error("dispatch storage error", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "storage error")
		default:
			s.opts.Logger.Error("dispatch failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	for k, vs := range res.Header {
		if hopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	w.Write(res.Body)
}
