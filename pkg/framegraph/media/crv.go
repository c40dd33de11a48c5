package media

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoTrackPoints is returned when a track file holds no points.
var ErrNoTrackPoints = errors.New("no track points")

// ReadCRV parses track points in the .crv layout written by 3D tracker
// exports, one frame per line:
//
//	12 [[ 0.5, 0.25]]
//
// The bare form "12 0.5 0.25" is accepted too. Points are normalized.
// Lines that match neither form are skipped.
func ReadCRV(r io.Reader) (TrackData, error) {
	td := make(TrackData)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		frame, p, ok := parseCRVLine(sc.Text())
		if ok {
			td[frame] = p
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(td) == 0 {
		return nil, ErrNoTrackPoints
	}
	return td, nil
}

func parseCRVLine(line string) (int, TrackPoint, bool) {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutSuffix(line, "]]"); ok {
		head, pair, found := strings.Cut(rest, "[[")
		if !found {
			return 0, TrackPoint{}, false
		}
		line = head + " " + strings.Replace(pair, ",", " ", 1)
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, TrackPoint{}, false
	}
	frame, err := strconv.Atoi(fields[0])
	if err != nil || frame < 0 {
		return 0, TrackPoint{}, false
	}
	x, errX := strconv.ParseFloat(fields[1], 64)
	y, errY := strconv.ParseFloat(fields[2], 64)
	if errX != nil || errY != nil {
		return 0, TrackPoint{}, false
	}
	return frame, TrackPoint{X: x, Y: y, Normalized: true}, true
}

// WriteCRV writes td in frame order. Pixel points are normalized against a
// w x h frame first.
func WriteCRV(w io.Writer, td TrackData, width, height int) error {
	if len(td) == 0 {
		return ErrNoTrackPoints
	}
	bw := bufio.NewWriter(w)
	for _, f := range td.Frames() {
		p := td[f].Normalize(width, height)
		if _, err := fmt.Fprintf(bw, "%d [[ %s, %s]]\n", f,
			strconv.FormatFloat(p.X, 'g', -1, 64), strconv.FormatFloat(p.Y, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadCRV reads a .crv file.
func LoadCRV(path string) (TrackData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	td, err := ReadCRV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return td, nil
}

// SaveCRV writes a .crv file, replacing any existing one.
func SaveCRV(path string, td TrackData, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCRV(f, td, width, height); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
