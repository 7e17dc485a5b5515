package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjectStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memObjectStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[key] = data
	m.types[key] = contentType
	return "https://files.test/" + key, nil
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(store ObjectStore, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/upload/file", NewHandler(store, logger.New(logger.Config{Level: slog.LevelError})).Upload)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpload_AcceptedTypes(t *testing.T) {
	wallet := "0x00000000000000000000000000000000000000aa"
	tests := []struct {
		name     string
		filename string
		declared string
		data     []byte
		want     string
	}{
		{name: "pdf", filename: "paper.pdf", declared: "application/pdf", data: []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"), want: "application/pdf"},
		{name: "text", filename: "notes.txt", declared: "text/plain", data: []byte("plain research notes\n"), want: "text/plain"},
		{name: "json", filename: "data.json", declared: "application/json", data: []byte(`{"rollups": ["op", "zk"]}`), want: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memObjectStore{}
			w := serve(store, uploadRequest(t, tt.filename, tt.declared, tt.data, map[string]string{"wallet_address": wallet}))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var body struct {
				URL         string `json:"url"`
				Path        string `json:"path"`
				Size        int    `json:"size"`
				ContentType string `json:"content_type"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.ContentType)
			assert.Equal(t, len(tt.data), body.Size)
			assert.True(t, strings.HasPrefix(body.Path, "uploads/"+wallet+"/"))
			assert.True(t, strings.HasSuffix(body.Path, "/"+tt.filename))
			assert.Equal(t, tt.data, store.objects[body.Path])
		})
	}
}

func TestUpload_Rejections(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload/file", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		assert.Equal(t, http.StatusBadRequest, serve(&memObjectStore{}, req).Code)
	})

	t.Run("disallowed type", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		w := serve(&memObjectStore{}, uploadRequest(t, "x.png", "image/png", png, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported file type")
	})

	t.Run("too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), MaxFileSize+1)
		w := serve(&memObjectStore{}, uploadRequest(t, "big.txt", "text/plain", big, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "too large")
	})

	t.Run("storage failure", func(t *testing.T) {
		w := serve(&memObjectStore{err: errors.New("bucket gone")}, uploadRequest(t, "a.txt", "text/plain", []byte("hi"), nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUpload_DemoOwner(t *testing.T) {
	store := &memObjectStore{}
	w := serve(store, uploadRequest(t, "../../etc/passwd notes.txt", "text/plain", []byte("hello"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	for key := range store.objects {
		assert.True(t, strings.HasPrefix(key, "uploads/demo/"))
		assert.True(t, strings.HasSuffix(key, "/passwd_notes.txt"))
	}
}
