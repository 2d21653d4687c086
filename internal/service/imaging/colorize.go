package imaging

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Chroma heuristic for grayscale inputs: a and b drift with luminance and
// get a warm sepia push that grows with brightness.
const (
	chromaAScale = 0.15
	chromaBScale = 0.12
	sepiaGamma   = 0.8
	sepiaA       = 20.0
	sepiaB       = 15.0
)

// ChromaFor returns the LAB a and b values assigned to a grayscale pixel of
// lightness l (OpenCV 8-bit LAB scale).
func ChromaFor(l uint8) (a, b uint8) {
	lf := float64(l)
	a = clipByte(128 + (lf-128)*chromaAScale)
	b = clipByte(128 + (lf-128)*chromaBScale)

	s := math.Pow(lf/255, sepiaGamma)
	a = clipByte(float64(a) + s*sepiaA)
	b = clipByte(float64(b) + s*sepiaB)
	return a, b
}

// clipByte clips to 0..255 and truncates toward zero.
func clipByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// IsGrayscale reports whether every pixel has all channels equal within tol.
func IsGrayscale(img gocv.Mat, tol int) bool {
	if img.Channels() < 3 {
		return true
	}

	channels := gocv.Split(img)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	return channelsClose(channels[0], channels[1], tol) && channelsClose(channels[1], channels[2], tol)
}

func channelsClose(x, y gocv.Mat, tol int) bool {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(x, y, &diff)

	over := gocv.NewMat()
	defer over.Close()
	gocv.Threshold(diff, &over, float32(tol), 255, gocv.ThresholdBinary)

	return gocv.CountNonZero(over) == 0
}

// Colorize tints grayscale photos and equalizes the value channel of color
// photos. The caller owns the returned Mat.
func Colorize(src gocv.Mat, p Params) gocv.Mat {
	bgr := toBGR(src)
	defer bgr.Close()

	if IsGrayscale(bgr, p.GrayTolerance) {
		return tintGrayscale(bgr)
	}
	return Equalize(bgr, p.EqualizeClipLimit)
}

func tintGrayscale(bgr gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	aLUT, bLUT := chromaLUTs()
	defer aLUT.Close()
	defer bLUT.Close()

	a := gocv.NewMat()
	defer a.Close()
	gocv.LUT(channels[0], aLUT, &a)

	b := gocv.NewMat()
	defer b.Close()
	gocv.LUT(channels[0], bLUT, &b)

	tinted := gocv.NewMat()
	defer tinted.Close()
	gocv.Merge([]gocv.Mat{channels[0], a, b}, &tinted)

	out := gocv.NewMat()
	gocv.CvtColor(tinted, &out, gocv.ColorLabToBGR)
	return out
}

// chromaLUTs builds 256-entry lookup tables mapping L to a and b.
func chromaLUTs() (gocv.Mat, gocv.Mat) {
	aLUT := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	bLUT := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	for l := 0; l < 256; l++ {
		a, b := ChromaFor(uint8(l))
		aLUT.SetUCharAt(0, l, a)
		bLUT.SetUCharAt(0, l, b)
	}
	return aLUT, bLUT
}

// Equalize applies contrast limited adaptive histogram equalization to the
// HSV value channel. clipLimit uses the normalised 0..1 convention and is
// scaled to OpenCV's per-bin limit; tiles cover 1/8 of each side.
func Equalize(bgr gocv.Mat, clipLimit float64) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(clipLimit*256, image.Pt(8, 8))
	defer clahe.Close()

	value := gocv.NewMat()
	defer value.Close()
	clahe.Apply(channels[2], &value)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{channels[0], channels[1], value}, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorHSVToBGR)
	return out
}
