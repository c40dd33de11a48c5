package media

// GaussianBlur returns img blurred per channel with a separable gaussian of
// the given sigma. Edges are handled by reflection. A non-positive sigma
// returns a copy.
func GaussianBlur(img *Image, sigma float64) *Image {
	if sigma <= 0 {
		return img.Clone()
	}
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2
	w, h, ch := img.Width, img.Height, img.Channels

	tmp := NewImage(w, h, ch)
	for y := range h {
		for x := range w {
			for c := range ch {
				var acc float64
				for k := -radius; k <= radius; k++ {
					acc += kernel[k+radius] * float64(img.Pix[(y*w+reflect(x+k, w))*ch+c])
				}
				tmp.Pix[(y*w+x)*ch+c] = float32(acc)
			}
		}
	}

	out := NewImage(w, h, ch)
	for y := range h {
		for x := range w {
			for c := range ch {
				var acc float64
				for k := -radius; k <= radius; k++ {
					acc += kernel[k+radius] * float64(tmp.Pix[(reflect(y+k, h)*w+x)*ch+c])
				}
				out.Pix[(y*w+x)*ch+c] = float32(acc)
			}
		}
	}
	return out
}
