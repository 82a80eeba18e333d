package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/noise"
	"github.com/dudu/ruse/internal/styletransfer"
)

const imageField = "image"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"detect":     s.detector != nil,
		"stylize":    s.stylizer != nil,
		"request_id": GetRequestID(c),
	})
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	if s.detector == nil {
		return handleError(c, NewError(fiber.StatusServiceUnavailable, "detector not configured"), "detect")
	}

	var req DetectRequest
	if err := c.QueryParser(&req); err != nil {
		return handleError(c, NewError(fiber.StatusBadRequest, "invalid query: "+err.Error()), "parse_query")
	}
	if err := s.validator.Struct(req); err != nil {
		return handleError(c, err, "detect")
	}

	img, err := formImage(c)
	if err != nil {
		return handleError(c, err, "read_image")
	}

	view := geometry.Size{Width: float64(req.ViewWidth), Height: float64(req.ViewHeight)}
	if view.Empty() {
		b := img.Bounds()
		view = geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	out, err := s.detector.DetectImage(ctx, img, view)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return handleError(c, NewError(fiber.StatusRequestTimeout, "detection timed out"), "detect")
		}
		return handleError(c, err, "detect")
	}

	return c.JSON(newDetectResponse(out))
}

func (s *Server) handleStylize(c *fiber.Ctx) error {
	if s.stylizer == nil {
		return handleError(c, NewError(fiber.StatusServiceUnavailable, "style transfer not configured"), "stylize")
	}

	var req StylizeRequest
	if err := c.BodyParser(&req); err != nil {
		return handleError(c, NewError(fiber.StatusBadRequest, "invalid form: "+err.Error()), "parse_request_body")
	}
	if err := s.validator.Struct(req); err != nil {
		return handleError(c, err, "stylize")
	}

	img, err := formImage(c)
	if err != nil {
		return handleError(c, err, "read_image")
	}

	res := s.stylizer.ExecuteImage(img, styletransfer.Request{
		StyleName:         req.Style,
		ContentBlendRatio: req.Blend,
	})
	if res.Failed() {
		return handleError(c, NewError(fiber.StatusUnprocessableEntity, res.ErrorMessage), "stylize")
	}

	c.Set("X-Style-Predict-Ms", strconv.FormatInt(res.StylePredict.Milliseconds(), 10))
	c.Set("X-Style-Transfer-Ms", strconv.FormatInt(res.StyleTransfer.Milliseconds(), 10))
	c.Set("X-Total-Ms", strconv.FormatInt(res.Total.Milliseconds(), 10))
	return sendPNG(c, res.Image)
}

func (s *Server) handleNoise(c *fiber.Ctx) error {
	var req NoiseRequest
	if err := c.QueryParser(&req); err != nil {
		return handleError(c, NewError(fiber.StatusBadRequest, "invalid query: "+err.Error()), "parse_query")
	}
	if err := s.validator.Struct(req); err != nil {
		return handleError(c, err, "noise")
	}

	if req.Octaves == 0 {
		req.Octaves = s.noise.Octaves
	}
	if req.Roughness == 0 {
		req.Roughness = s.noise.Roughness
	}
	if req.Scale == 0 {
		req.Scale = s.noise.Scale
	}

	var mapper noise.ChunkMapper
	if req.Isometric || s.noise.Isometric {
		mapper = noise.IsometricMapper{
			ChunkWidth:  s.noise.ChunkWidth,
			ChunkHeight: s.noise.ChunkHeight,
			TileWidth:   2,
			TileHeight:  1,
		}
	}

	gen := noise.NewGenerator(s.noise.ChunkWidth, s.noise.ChunkHeight, mapper)
	grid, err := gen.Generate(noise.ChunkCoord{X: req.X, Y: req.Y}, req.Octaves, req.Roughness, req.Scale)
	if err != nil {
		if errors.Is(err, noise.ErrInvalidParams) {
			return handleError(c, NewError(fiber.StatusBadRequest, err.Error()), "noise")
		}
		return handleError(c, err, "noise")
	}

	return sendPNG(c, grid.Image())
}

// formImage decodes the uploaded image field
func formImage(c *fiber.Ctx) (image.Image, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		return nil, NewError(fiber.StatusBadRequest, "missing image file")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, NewError(fiber.StatusBadRequest, "unsupported image")
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, NewError(fiber.StatusBadRequest, "unsupported image")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	log.Debug(log.Fields{
		"request_id": GetRequestID(c),
		"file":       fh.Filename,
		"width":      mat.Cols(),
		"height":     mat.Rows(),
	}, "[server.formImage] decoded upload")
	return img, nil
}

func sendPNG(c *fiber.Ctx, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return handleError(c, err, "encode_png")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}
