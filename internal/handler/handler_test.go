package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackCodec/internal/session"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(session.NewStore(time.Minute, session.DefaultOptions()), nil).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap session.Snapshot
	decodeBody(t, rec, &snap)
	require.NotEmpty(t, snap.ID)
	return snap.ID
}

func TestDecodeEndpoint(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/decode", "8286 8441 0f77 7777 2e65 7861 6d70 6c65 2e63 6f6d\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp decodeResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Headers, 4)
	assert.Equal(t, ":authority", resp.Headers[3].Name)
	assert.Equal(t, "www.example.com", resp.Headers[3].Value)
	assert.Equal(t, uint64(57), resp.TableSize)

	rec = do(t, h, http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap session.Snapshot
	decodeBody(t, rec, &snap)
	assert.Equal(t, uint64(1), snap.DecodedBlocks)
	require.Len(t, snap.Decoder.Entries, 1)
	assert.Equal(t, ":authority", snap.Decoder.Entries[0].Name)
}

func TestDecodeErrorBreaksSession(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/decode", "82be")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "invalid_index", resp.Cause)
	require.Len(t, resp.Headers, 1)
	assert.Equal(t, ":method", resp.Headers[0].Name)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/decode", "82")
	require.Equal(t, http.StatusConflict, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "session_broken", resp.Cause)
}

func TestEncodeEndpoint(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/encode",
		`{"headers":[{"name":":method","value":"GET"}],"stream_id":1,"end_stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp encodeResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "82", resp.Block)
	assert.Equal(t, "00000101050000000182", resp.Frames)
	assert.Equal(t, uint64(0), resp.TableSize)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/encode",
		`{"headers":[{"name":"x-token","value":"secret","never_indexed":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.Block, "10"), resp.Block)
	assert.Empty(t, resp.Frames)
	assert.Equal(t, uint64(0), resp.TableSize)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	for _, body := range []string{
		`{"headers":[{"name":"","value":"x"}]}`,
		`{"headers":`,
		`{"headers":[],"unknown":1}`,
	} {
		rec := do(t, h, http.MethodPost, "/sessions/"+id+"/encode", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestFramesEndpoint(t *testing.T) {
	h := newTestRouter(t)
	client := createSession(t, h)
	server := createSession(t, h)

	var encoded encodeResponse
	for _, path := range []string{"/a", "/b"} {
		rec := do(t, h, http.MethodPost, "/sessions/"+client+"/encode",
			`{"headers":[{"name":":method","value":"GET"},{"name":":path","value":"`+path+`"}],"stream_id":5}`)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &encoded)

		rec = do(t, h, http.MethodPost, "/sessions/"+server+"/frames", encoded.Frames)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp framesResponse
		decodeBody(t, rec, &resp)
		require.Len(t, resp.Blocks, 1)
		assert.Equal(t, uint32(5), resp.Blocks[0].StreamID)
		assert.False(t, resp.Blocks[0].EndStream)
		assert.Equal(t, path, resp.Blocks[0].Headers[1].Value)
	}

	rec := do(t, h, http.MethodPost, "/sessions/"+server+"/frames", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"blocks":[]}`, rec.Body.String())

	// a CONTINUATION frame on its own is a framing error, not a compression error
	rec = do(t, h, http.MethodPost, "/sessions/"+server+"/frames", "000001090400000001 82")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTableSizeEndpoint(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPut, "/sessions/"+id+"/table-size", `{"size":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/encode", `{"headers":[{"name":":method","value":"GET"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp encodeResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "2082", resp.Block)

	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/table-size", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/decode", "82")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidRequests(t *testing.T) {
	h := newTestRouter(t)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/decode", "8")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/decode", strings.Repeat("82", DefaultMaxBody))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "not found", resp.Error)

	rec = do(t, h, http.MethodPatch, "/sessions/"+id+"/decode", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusForbidden, "forbidden"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, errorResponse{Error: "forbidden"}, resp)
}
