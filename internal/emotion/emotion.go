// Package emotion derives coarse "emotional tone" scores from pixel colour
// and brightness statistics.
//
// The numbers are explainable heuristics, not a classifier: a pixel is warm
// when red dominates blue and red+green outweigh 1.5× blue, cool when blue
// dominates both other channels, and bright when its channel mean exceeds
// 128. Social appeal comes from the frame shape alone.
package emotion

import (
	"image"
	"math"

	"github.com/AnyUserName/platepix/internal/raster"
)

// MaxScore bounds every score.
const MaxScore = 10.0

// Scores are the four tone signals, each in [0, MaxScore].
type Scores struct {
	Warmth     float64 `json:"warmth_score"`
	Comfort    float64 `json:"comfort_score"`
	Excitement float64 `json:"excitement_score"`
	Social     float64 `json:"social_score"`
}

// Analysis carries the scores plus the ratios they were derived from.
type Analysis struct {
	Scores
	WarmRatio   float64 `json:"warm_ratio"`
	CoolRatio   float64 `json:"cool_ratio"`
	BrightRatio float64 `json:"bright_ratio"`
	AspectRatio float64 `json:"aspect_ratio"`
	Pixels      int     `json:"pixels"`
}

// Analyze scans every pixel of img.
func Analyze(img *image.NRGBA) (Analysis, error) {
	if err := raster.CheckBuffer("analyze", img); err != nil {
		return Analysis{}, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var warm, cool, bright int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := 0; x < w; x++ {
			r := int(img.Pix[i])
			g := int(img.Pix[i+1])
			bl := int(img.Pix[i+2])
			i += 4

			// 2(R+G) > 3B is (R+G) > 1.5B without floats.
			if r > bl && 2*(r+g) > 3*bl {
				warm++
			}
			if bl > r && bl > g {
				cool++
			}
			// mean > 128  <=>  sum > 384
			if r+g+bl > 384 {
				bright++
			}
		}
	}

	total := float64(w * h)
	a := Analysis{
		WarmRatio:   float64(warm) / total,
		CoolRatio:   float64(cool) / total,
		BrightRatio: float64(bright) / total,
		AspectRatio: float64(w) / float64(h),
		Pixels:      w * h,
	}
	a.Scores = score(a.WarmRatio, a.BrightRatio, a.AspectRatio)
	return a, nil
}

// ScoreImage is Analyze without the intermediate ratios.
func ScoreImage(img *image.NRGBA) (Scores, error) {
	a, err := Analyze(img)
	if err != nil {
		return Scores{}, err
	}
	return a.Scores, nil
}

func score(warmRatio, brightRatio, aspect float64) Scores {
	return Scores{
		Warmth:     bound(warmRatio * 15),
		Comfort:    bound((warmRatio + (1 - brightRatio)) * 7),
		Excitement: bound(brightRatio * 12),
		Social:     Social(aspect),
	}
}

// Social scores frame shape: wide shots read as shared tables, tall ones as
// single plates.
func Social(aspect float64) float64 {
	switch {
	case aspect > 1.5:
		return 7
	case aspect < 0.8:
		return 3
	default:
		return 5
	}
}

// Tone names the dominant signal for display.
func (s Scores) Tone() string {
	switch {
	case s.Warmth >= 7 && s.Comfort >= 7:
		return "cozy"
	case s.Excitement >= 7:
		return "vibrant"
	case s.Warmth < 3 && s.Excitement >= 4:
		return "fresh"
	default:
		return "balanced"
	}
}

func bound(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(MaxScore, v)
}
