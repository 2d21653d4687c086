package imaging

import (
	"image"

	"gocv.io/x/gocv"
)

// ScaleFactor returns the upscale factor for a w×h image: requested, unless
// that would push the longer side past maxDim.
func ScaleFactor(w, h int, requested float64, maxDim int) float64 {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= 0 {
		return requested
	}
	if float64(longest)*requested > float64(maxDim) {
		return float64(maxDim) / float64(longest)
	}
	return requested
}

// TargetSize applies factor f to w×h, truncating and never going below 1.
func TargetSize(w, h int, f float64) (int, int) {
	nw, nh := int(float64(w)*f), int(float64(h)*f)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Enhance upscales src, boosts local contrast on the lightness channel and
// sharpens. The caller owns the returned Mat.
func Enhance(src gocv.Mat, p Params) gocv.Mat {
	w, h := TargetSize(src.Cols(), src.Rows(), ScaleFactor(src.Cols(), src.Rows(), p.ScaleFactor, p.MaxDimension))

	upscaled := gocv.NewMat()
	defer upscaled.Close()
	gocv.Resize(src, &upscaled, image.Pt(w, h), 0, 0, gocv.InterpolationCubic)

	contrasted := enhanceContrast(upscaled, p.CLAHEClipLimit)
	defer contrasted.Close()

	return Sharpen(contrasted, p.SharpenAmount)
}

func enhanceContrast(bgr gocv.Mat, clipLimit float64) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Pt(8, 8))
	defer clahe.Close()

	l := gocv.NewMat()
	defer l.Close()
	clahe.Apply(channels[0], &l)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{l, channels[1], channels[2]}, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	return out
}

// SharpenKernel returns amount × [[-1,-1,-1],[-1,9,-1],[-1,-1,-1]] row-major.
func SharpenKernel(amount float64) [9]float32 {
	var k [9]float32
	for i := range k {
		k[i] = float32(-amount)
	}
	k[4] = float32(9 * amount)
	return k
}

// Sharpen convolves src with SharpenKernel(amount); results saturate to 8 bit.
func Sharpen(src gocv.Mat, amount float64) gocv.Mat {
	values := SharpenKernel(amount)
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i, v := range values {
		kernel.SetFloatAt(i/3, i%3, v)
	}

	out := gocv.NewMat()
	gocv.Filter2D(src, &out, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	return out
}
