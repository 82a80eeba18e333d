package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/overlay"
	"github.com/dudu/ruse/internal/pipeline"
	"github.com/dudu/ruse/internal/styletransfer"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type fakeDetector struct {
	out      pipeline.Outcome
	err      error
	lastView geometry.Size
	lastSize image.Point
}

func (f *fakeDetector) DetectImage(_ context.Context, img image.Image, view geometry.Size) (pipeline.Outcome, error) {
	f.lastView = view
	f.lastSize = img.Bounds().Size()
	return f.out, f.err
}

type fakeStylizer struct {
	req  styletransfer.Request
	fail string
}

func (f *fakeStylizer) ExecuteImage(_ image.Image, req styletransfer.Request) styletransfer.Result {
	f.req = req
	img := image.NewRGBA(image.Rect(0, 0, styletransfer.ContentImageSize, styletransfer.ContentImageSize))
	if f.fail != "" {
		return styletransfer.Result{Image: img, ErrorMessage: f.fail}
	}
	return styletransfer.Result{Image: img}
}

func testServer(det Detector, st Stylizer) *Server {
	cfg := config.Default()
	return New(cfg.Server, cfg.Noise, det, st)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 120, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, url string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(imageField, "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, jsoniter.Unmarshal(data, v))
}

func TestHealth(t *testing.T) {
	s := testServer(nil, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDKey))

	var body map[string]any
	decodeJSON(t, resp.Body, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["detect"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := testServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDKey, "abc-123")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDKey))
}

func TestDetect(t *testing.T) {
	score := float32(0.5)
	det := &fakeDetector{out: pipeline.Outcome{
		Faces: []detector.Face{{
			Frame:              geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4},
			Landmarks:          map[detector.LandmarkType]geometry.Point{detector.LandmarkLeftEye: {X: 2, Y: 3}},
			HeadPose:           &detector.HeadPose{X: 1, Y: 2, Z: 3},
			SmilingProbability: &score,
			Score:              0.9,
		}},
		Shapes:      []overlay.Shape{{Kind: overlay.KindRectangle, Rect: geometry.Rect{Width: 3, Height: 4}}},
		ResultsText: "Face 1",
	}}
	s := testServer(det, nil)

	req := multipartRequest(t, "/v1/detect?view_width=200&view_height=100", pngBytes(t, 40, 20), nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body DetectResponse
	decodeJSON(t, resp.Body, &body)
	require.Len(t, body.Faces, 1)
	assert.Equal(t, geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}, body.Faces[0].Frame)
	assert.Equal(t, geometry.Point{X: 2, Y: 3}, body.Faces[0].Landmarks["left_eye"])
	require.NotNil(t, body.Faces[0].HeadPose)
	assert.Equal(t, 3.0, body.Faces[0].HeadPose.Z)
	assert.Nil(t, body.Faces[0].LeftEyeOpenProbability)
	assert.Len(t, body.Shapes, 1)
	assert.Equal(t, "Face 1", body.ResultsText)

	assert.Equal(t, geometry.Size{Width: 200, Height: 100}, det.lastView)
	assert.Equal(t, image.Pt(40, 20), det.lastSize)
}

func TestDetectDefaultsViewToImage(t *testing.T) {
	det := &fakeDetector{out: pipeline.Outcome{ResultsText: pipeline.NoResultsMessage}}
	s := testServer(det, nil)

	resp, err := s.App().Test(multipartRequest(t, "/v1/detect", pngBytes(t, 30, 10), nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body DetectResponse
	decodeJSON(t, resp.Body, &body)
	assert.Empty(t, body.Faces)
	assert.NotNil(t, body.Shapes)
	assert.Equal(t, pipeline.NoResultsMessage, body.ResultsText)
	assert.Equal(t, geometry.Size{Width: 30, Height: 10}, det.lastView)
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name   string
		det    Detector
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name:   "not configured",
			det:    nil,
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/v1/detect", pngBytes(t, 4, 4), nil) },
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "missing file",
			det:    &fakeDetector{},
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/v1/detect", nil, nil) },
			status: http.StatusBadRequest,
		},
		{
			name:   "not an image",
			det:    &fakeDetector{},
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/v1/detect", []byte("hello"), nil) },
			status: http.StatusBadRequest,
		},
		{
			name: "invalid view",
			det:  &fakeDetector{},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/v1/detect?view_width=-5", pngBytes(t, 4, 4), nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "detector failure",
			det:    &fakeDetector{err: errors.New("boom")},
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/v1/detect", pngBytes(t, 4, 4), nil) },
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(tt.det, nil)
			resp, err := s.App().Test(tt.req(t), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestDetectFailureCarriesTraceID(t *testing.T) {
	s := testServer(&fakeDetector{err: errors.New("boom")}, nil)

	req := multipartRequest(t, "/v1/detect", pngBytes(t, 4, 4), nil)
	req.Header.Set(RequestIDKey, "trace-me")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	var body ErrorResponse
	decodeJSON(t, resp.Body, &body)
	assert.Equal(t, "trace-me", body.TraceID)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestStylize(t *testing.T) {
	st := &fakeStylizer{}
	s := testServer(nil, st)

	req := multipartRequest(t, "/v1/stylize", pngBytes(t, 16, 16), map[string]string{
		"style": "style7.jpg",
		"blend": "0.25",
	})
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, styletransfer.ContentImageSize, img.Bounds().Dx())

	assert.Equal(t, "style7.jpg", st.req.StyleName)
	assert.InDelta(t, 0.25, st.req.ContentBlendRatio, 1e-9)
}

func TestStylizeValidation(t *testing.T) {
	s := testServer(nil, &fakeStylizer{})

	req := multipartRequest(t, "/v1/stylize", pngBytes(t, 8, 8), map[string]string{"blend": "0.5"})
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	decodeJSON(t, resp.Body, &body)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	req = multipartRequest(t, "/v1/stylize", pngBytes(t, 8, 8), map[string]string{"style": "a.jpg", "blend": "3"})
	resp, err = s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, style := range []string{"../x.jpg", "/etc/x.png", "thumbs/a.jpg", `..\x.jpg`, ".."} {
		req = multipartRequest(t, "/v1/stylize", pngBytes(t, 8, 8), map[string]string{"style": style})
		resp, err = s.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, style)

		var body map[string]any
		decodeJSON(t, resp.Body, &body)
		assert.Equal(t, "VALIDATION_ERROR", body["code"], style)
	}
}

func TestStylizeFailure(t *testing.T) {
	s := testServer(nil, &fakeStylizer{fail: "style image not found"})

	req := multipartRequest(t, "/v1/stylize", pngBytes(t, 8, 8), map[string]string{"style": "missing.jpg"})
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	decodeJSON(t, resp.Body, &body)
	assert.Equal(t, "style image not found", body.Error)
}

func TestNoise(t *testing.T) {
	s := testServer(nil, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/noise?x=1&y=-2&octaves=3", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	cfg := config.Default().Noise
	assert.Equal(t, cfg.ChunkWidth, img.Bounds().Dx())
	assert.Equal(t, cfg.ChunkHeight, img.Bounds().Dy())
}

func TestNoiseIsDeterministic(t *testing.T) {
	s := testServer(nil, nil)

	fetch := func() []byte {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/noise?x=4&y=4&iso=true", nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, fetch(), fetch())
}

func TestNoiseValidation(t *testing.T) {
	s := testServer(nil, nil)

	for _, q := range []string{"octaves=40", "roughness=-1", "x=abc", "roughness=Inf", "scale=NaN", "scale=-Inf"} {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/noise?"+q, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}
