package relay

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(maxBytes int64) *HTTPHandler {
	svc, _ := newTestService(newFakeSource(), &MockPublisher{}, 1)
	return NewHTTPHandler(svc, zap.NewNop(), maxBytes)
}

func TestHTTP_Health(t *testing.T) {
	h := newTestHandler(512 * 1024)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTP_Stats(t *testing.T) {
	h := newTestHandler(512 * 1024)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ThumbnailSize int   `json:"thumbnail_size"`
		JPEGQuality   int   `json:"jpeg_quality"`
		Stats         Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 170, body.ThumbnailSize)
	assert.Equal(t, 85, body.JPEGQuality)
	assert.Equal(t, int64(0), body.Stats.Received)
}

func TestHTTP_ConvertPNG(t *testing.T) {
	h := newTestHandler(512 * 1024)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/thumbnails", bytes.NewReader(testPNG(t, 800, 600)))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "170", rec.Header().Get("X-Thumbnail-Width"))
	assert.Equal(t, "128", rec.Header().Get("X-Thumbnail-Height"))
	assert.Equal(t, "png", rec.Header().Get("X-Source-Format"))

	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 170, img.Bounds().Dx())
}

// oversizedPNG is a tiny PNG whose IHDR declares w x h RGBA pixels.
func oversizedPNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
	for _, c := range []struct {
		typ  string
		data []byte
	}{
		{"IHDR", binary.BigEndian.AppendUint32(binary.BigEndian.AppendUint32(nil, w), h)},
		{"IEND", nil},
	} {
		if c.typ == "IHDR" {
			c.data = append(c.data, 8, 6, 0, 0, 0)
		}
		body := append([]byte(c.typ), c.data...)
		buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(c.data))))
		buf.Write(body)
		buf.Write(binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(body)))
	}
	return buf.Bytes()
}

func TestHTTP_ConvertErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{name: "too small", body: []byte{0x89, 0x50}, status: http.StatusUnsupportedMediaType},
		{name: "unknown", body: []byte("not an image"), status: http.StatusUnsupportedMediaType},
		{name: "corrupt", body: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, status: http.StatusUnprocessableEntity},
		{name: "oversized header", body: oversizedPNG(60000, 60000), status: http.StatusUnprocessableEntity},
	}

	h := newTestHandler(512 * 1024)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/thumbnails", bytes.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHTTP_ConvertTooLarge(t *testing.T) {
	h := newTestHandler(1024)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/thumbnails", bytes.NewReader(make([]byte, 4096))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusForKind(""))
}
