package imaging

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	damageThresholdMin = 200
	damageThresholdMax = 250
	// brightness factor applied to the mean gray level
	damageThresholdScale = 0.95
)

// DamageThreshold returns the gray level above which a pixel counts as a
// bright scratch or blotch, given the mean brightness of the photo.
func DamageThreshold(meanBrightness float64) float32 {
	t := int(meanBrightness * damageThresholdScale)
	if t < damageThresholdMin {
		t = damageThresholdMin
	}
	if t > damageThresholdMax {
		t = damageThresholdMax
	}
	return float32(t)
}

// Restore denoises src and inpaints the regions flagged by DamageMask.
// The caller owns the returned Mat; src is left untouched.
func Restore(src gocv.Mat, p Params) gocv.Mat {
	bgr := toBGR(src)
	defer bgr.Close()

	denoised := gocv.NewMat()
	gocv.FastNlMeansDenoisingColoredWithParams(bgr, &denoised,
		p.DenoiseStrength, p.DenoiseColorStrength, p.DenoiseTemplateWindow, p.DenoiseSearchWindow)

	mask := DamageMask(denoised, p)
	defer mask.Close()

	if gocv.CountNonZero(mask) == 0 {
		return denoised
	}

	inpainted := gocv.NewMat()
	gocv.Inpaint(denoised, mask, &inpainted, p.InpaintRadius, gocv.Telea)
	denoised.Close()
	return inpainted
}

// DamageMask marks likely scratches and dust: very bright pixels plus
// slightly thickened edges, eroded once to drop isolated specks.
func DamageMask(img gocv.Mat, p Params) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, DamageThreshold(gray.Mean().Val1), 255, gocv.ThresholdBinary)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, p.CannyLow, p.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()

	thick := gocv.NewMat()
	defer thick.Close()
	gocv.Dilate(edges, &thick, kernel)

	combined := gocv.NewMat()
	defer combined.Close()
	gocv.BitwiseOr(bright, thick, &combined)

	mask := gocv.NewMat()
	gocv.Erode(combined, &mask, kernel)
	return mask
}

// toBGR returns a 3-channel copy of src.
func toBGR(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	default:
		src.CopyTo(&dst)
	}
	return dst
}
