package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"hpackCodec/internal/helper"
	"hpackCodec/internal/hpack"
	"hpackCodec/internal/logging"
	"hpackCodec/internal/metrics"
	"hpackCodec/internal/session"
)

// DefaultMaxBody bounds request bodies, in octets of body text.
const DefaultMaxBody = 1 << 20

type Handler struct {
	store   *session.Store
	logger  logging.Logger
	maxBody int64
}

func NewHandler(store *session.Store, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{
		store:   store,
		logger:  logger,
		maxBody: DefaultMaxBody,
	}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/decode", h.Decode)
			r.Post("/encode", h.Encode)
			r.Post("/frames", h.DecodeFrames)
			r.Put("/table-size", h.SetTableSize)
		})
	})
}

type errorResponse struct {
	Error   string              `json:"error"`
	Cause   string              `json:"cause,omitempty"`
	Headers []hpack.HeaderField `json:"headers,omitempty"`
}

type decodeResponse struct {
	Headers   []hpack.HeaderField `json:"headers"`
	TableSize uint64              `json:"table_size"`
}

type encodeRequest struct {
	Headers   []hpack.HeaderField `json:"headers"`
	StreamID  uint32              `json:"stream_id"`
	EndStream bool                `json:"end_stream"`
}

type encodeResponse struct {
	Block     string `json:"block"`
	Frames    string `json:"frames,omitempty"`
	TableSize uint64 `json:"table_size"`
}

type framesResponse struct {
	Blocks []session.DecodedBlock `json:"blocks"`
}

type tableSizeRequest struct {
	Size *uint32 `json:"size"`
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Log(logging.LogLevelWarn, "Not Found: %s %s", r.Method, r.URL.Path)
	h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.logger.Log(logging.LogLevelWarn, "Method Not Allowed: %s %s", r.Method, r.URL.Path)
	h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.store.Create()
	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.store.Delete(chi.URLParam(r, "id")) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decode takes one hex encoded header block.
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	block, ok := h.readHex(w, r)
	if !ok {
		return
	}

	headers, err := s.Decode(block)
	if err != nil {
		h.writeCodecError(w, err, headers)
		return
	}

	h.writeJSON(w, http.StatusOK, decodeResponse{
		Headers:   headers,
		TableSize: s.Snapshot().Decoder.Size,
	})
}

// Encode takes a JSON header list. A non-zero stream_id also frames the block.
func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req encodeRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if lo.ContainsBy(req.Headers, func(hf hpack.HeaderField) bool { return hf.Name == "" }) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "header name must not be empty"})
		return
	}

	block, err := s.Encode(req.Headers)
	if err != nil {
		h.writeCodecError(w, err, nil)
		return
	}

	resp := encodeResponse{
		Block:     hex.EncodeToString(block),
		TableSize: s.Snapshot().Encoder.Size,
	}

	if req.StreamID != 0 {
		// re-encoding would change the table again, so frame the block we have
		wire, err := s.FrameBlock(req.StreamID, block, req.EndStream)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		resp.Frames = hex.EncodeToString(wire)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// DecodeFrames takes hex encoded HTTP/2 frames, optionally starting with the
// connection preface.
func (h *Handler) DecodeFrames(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	data, ok := h.readHex(w, r)
	if !ok {
		return
	}

	blocks, err := s.DecodeFrames(data)
	if err != nil {
		if errors.Is(err, hpack.ErrHeaderComp) || errors.Is(err, session.ErrSessionBroken) {
			h.writeCodecError(w, err, nil)
			return
		}
		h.logger.Log(logging.LogLevelWarn, "session %s: invalid frames: %v", s.ID, err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, framesResponse{Blocks: lo.Ternary(blocks == nil, []session.DecodedBlock{}, blocks)})
}

// SetTableSize changes the outbound dynamic table size of the session.
func (h *Handler) SetTableSize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req tableSizeRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if req.Size == nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "size is required"})
		return
	}

	s.SetEncoderTableSize(*req.Size)
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
	}
	return s, ok
}

func (h *Handler) readHex(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := helper.ReadHex(r.Body, h.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, helper.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, errorResponse{Error: err.Error()})
		return nil, false
	}
	return data, true
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeCodecError(w http.ResponseWriter, err error, headers []hpack.HeaderField) {
	status, cause := http.StatusUnprocessableEntity, metrics.ErrorCause(err)
	if errors.Is(err, session.ErrSessionBroken) {
		status, cause = http.StatusConflict, "session_broken"
	}
	h.writeJSON(w, status, errorResponse{
		Error:   err.Error(),
		Cause:   cause,
		Headers: headers,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Log(logging.LogLevelError, "Response writer failed: %s", err)
	}
}

// WriteError writes the JSON error body every endpoint answers with.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
