package media

import "math"

const claheBins = 256

// CLAHE applies contrast limited adaptive histogram equalization to the
// color channels of img, leaving a fourth channel as is.
//
// The image is split into a grid x grid set of tiles. Each tile's histogram
// is clipped at clipLimit times the mean bin count, the excess spread over
// all bins, and the cumulative histogram becomes that tile's mapping.
// Samples are mapped by bilinear interpolation between the four nearest tile
// mappings.
func CLAHE(img *Image, clipLimit float64, grid int) *Image {
	out := img.Clone()
	gx, gy := max(1, min(grid, img.Width)), max(1, min(grid, img.Height))
	tileW := float64(img.Width) / float64(gx)
	tileH := float64(img.Height) / float64(gy)

	luts := make([][claheBins]float32, gx*gy)
	for c := range min(img.Channels, 3) {
		for ty := range gy {
			for tx := range gx {
				x0, x1 := int(float64(tx)*tileW), int(float64(tx+1)*tileW)
				y0, y1 := int(float64(ty)*tileH), int(float64(ty+1)*tileH)
				luts[ty*gx+tx] = tileMapping(img, c, x0, x1, y0, y1, clipLimit)
			}
		}

		for y := range img.Height {
			ty0, ty1, fy := tileNeighbors(y, tileH, gy)
			for x := range img.Width {
				tx0, tx1, fx := tileNeighbors(x, tileW, gx)
				b := bin(img.Pix[img.offset(x, y, c)])
				top := lerp(luts[ty0*gx+tx0][b], luts[ty0*gx+tx1][b], fx)
				bottom := lerp(luts[ty1*gx+tx0][b], luts[ty1*gx+tx1][b], fx)
				out.Pix[out.offset(x, y, c)] = lerp(top, bottom, fy)
			}
		}
	}
	return out
}

// tileMapping returns the clipped, equalized mapping of one tile's channel c.
func tileMapping(img *Image, c, x0, x1, y0, y1 int, clipLimit float64) [claheBins]float32 {
	var hist [claheBins]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[bin(img.Pix[img.offset(x, y, c)])]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	limit := max(1, int(clipLimit*float64(area)/claheBins))
	excess := 0
	for i, n := range hist {
		if n > limit {
			excess += n - limit
			hist[i] = limit
		}
	}
	each, rest := excess/claheBins, excess%claheBins
	for i := range hist {
		hist[i] += each
	}
	if rest > 0 {
		step := max(1, claheBins/rest)
		for i := 0; i < claheBins && rest > 0; i += step {
			hist[i]++
			rest--
		}
	}

	var lut [claheBins]float32
	sum := 0
	for i, n := range hist {
		sum += n
		lut[i] = float32(sum) / float32(area)
	}
	return lut
}

// tileNeighbors returns the tiles whose centers bracket position p and the
// weight of the second.
func tileNeighbors(p int, size float64, n int) (int, int, float32) {
	f := (float64(p)+0.5)/size - 0.5
	if f <= 0 {
		return 0, 0, 0
	}
	if f >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	i := int(math.Floor(f))
	return i, i + 1, float32(f - float64(i))
}

func bin(v float32) int {
	return int(Clamp01(v)*(claheBins-1) + 0.5)
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }
