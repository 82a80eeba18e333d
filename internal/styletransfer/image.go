package styletransfer

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/inference"
)

// readImage decodes a file into a BGR Mat
func readImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// imageToMat converts an in-memory image into a BGR Mat
func imageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.Mat{}, fmt.Errorf("empty content image")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image: %w", err)
	}
	return mat, nil
}

// toTensor stretches a BGR Mat to size×size and returns an NHWC RGB tensor
// with values in [0, 1]
func toTensor(src gocv.Mat, size int) (inference.Tensor, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	floats := gocv.NewMat()
	defer floats.Close()
	rgb.ConvertToWithParams(&floats, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	data, err := floats.DataPtrFloat32()
	if err != nil {
		return inference.Tensor{}, fmt.Errorf("failed to read pixels: %w", err)
	}

	t := inference.NewTensor(1, int64(size), int64(size), 3)
	if len(data) != len(t.Data) {
		return inference.Tensor{}, fmt.Errorf("unexpected pixel count %d", len(data))
	}
	copy(t.Data, data)
	return t, nil
}

// tensorToImage converts an NHWC RGB tensor in [0, 1] to an opaque image
func tensorToImage(data []float32, width, height int) (*image.RGBA, error) {
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("output has %d values, want %d", len(data), width*height*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(data[i]),
				G: toByte(data[i+1]),
				B: toByte(data[i+2]),
				A: 255,
			})
		}
	}
	return img, nil
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
