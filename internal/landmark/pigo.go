package landmark

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	pigo "github.com/esimov/pigo/core"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
)

// Cascade file layout under PigoConfig.CascadeDir:
//
//	facefinder   face classifier
//	puploc       pupil localization cascade
//	lps/         eye landmark-point cascades (lp38, lp312, lp42, lp44, lp46, ...)
const (
	faceCascadeFile   = "facefinder"
	puplocCascadeFile = "puploc"
	flpCascadeSubdir  = "lps"
)

// eyeCascades are the landmark-point cascades clustered around the eyes.
var eyeCascades = []string{"lp46", "lp44", "lp42", "lp38", "lp312"}

// PigoConfig tunes the pure-Go pigo detector.
type PigoConfig struct {
	CascadeDir  string
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// QualityThreshold drops face candidates scoring below it.
	QualityThreshold float32
	// Perturbs is the perturbation count for pupil and landmark runs.
	Perturbs int
}

// DefaultPigoConfig returns detector settings sized for 640x480 frames.
func DefaultPigoConfig(cascadeDir string) PigoConfig {
	return PigoConfig{
		CascadeDir:       cascadeDir,
		MinSize:          60,
		MaxSize:          640,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		QualityThreshold: 5.0,
		Perturbs:         63,
	}
}

// PigoDetector detects faces and eye landmarks with esimov/pigo
// cascades. It runs without cgo, which is why it is the default on the Pi.
type PigoDetector struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	flpcs      map[string][]*pigo.FlpCascade
}

// NewPigoDetector loads the face, pupil and landmark cascades from disk.
func NewPigoDetector(cfg PigoConfig) (*PigoDetector, error) {
	faceBytes, err := os.ReadFile(filepath.Join(cfg.CascadeDir, faceCascadeFile))
	if err != nil {
		return nil, fmt.Errorf("read face cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(faceBytes)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}

	plcBytes, err := os.ReadFile(filepath.Join(cfg.CascadeDir, puplocCascadeFile))
	if err != nil {
		return nil, fmt.Errorf("read puploc cascade: %w", err)
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(plcBytes)
	if err != nil {
		return nil, fmt.Errorf("unpack puploc cascade: %w", err)
	}

	flpcs, err := plc.ReadCascadeDir(filepath.Join(cfg.CascadeDir, flpCascadeSubdir))
	if err != nil {
		return nil, fmt.Errorf("read landmark cascades: %w", err)
	}

	return &PigoDetector{
		cfg:        cfg,
		classifier: classifier,
		puploc:     plc,
		flpcs:      flpcs,
	}, nil
}

// Detect runs the face cascade over the frame, localizes both pupils per
// face and assembles the 6-point eye contours from the landmark cascades.
func (d *PigoDetector) Detect(img *image.Gray) ([]Face, error) {
	if img == nil {
		return nil, nil
	}
	bounds := img.Bounds()
	imgParams := pigo.ImageParams{
		Pixels: img.Pix,
		Rows:   bounds.Dy(),
		Cols:   bounds.Dx(),
		Dim:    img.Stride,
	}
	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: imgParams,
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.15)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.cfg.QualityThreshold {
			continue
		}
		face, ok := d.eyesForFace(det, imgParams)
		if !ok {
			continue
		}
		faces = append(faces, face)
	}
	return faces, nil
}

func (d *PigoDetector) eyesForFace(det pigo.Detection, imgParams pigo.ImageParams) (Face, bool) {
	scale := float32(det.Scale)

	left := d.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: d.cfg.Perturbs,
	}, imgParams, 0.0, false)

	right := d.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: d.cfg.Perturbs,
	}, imgParams, 0.0, false)

	if left == nil || right == nil || left.Row <= 0 || left.Col <= 0 ||
		right.Row <= 0 || right.Col <= 0 {
		return Face{}, false
	}

	var leftPts, rightPts []drowsy.Point
	for _, name := range eyeCascades {
		for _, flpc := range d.flpcs[name] {
			if flp := flpc.GetLandmarkPoint(left, right, imgParams, d.cfg.Perturbs, false); flp.Row > 0 && flp.Col > 0 {
				leftPts = append(leftPts, drowsy.Point{X: float64(flp.Col), Y: float64(flp.Row)})
			}
			if flp := flpc.GetLandmarkPoint(left, right, imgParams, d.cfg.Perturbs, true); flp.Row > 0 && flp.Col > 0 {
				rightPts = append(rightPts, drowsy.Point{X: float64(flp.Col), Y: float64(flp.Row)})
			}
		}
	}

	leftPupil := drowsy.Point{X: float64(left.Col), Y: float64(left.Row)}
	rightPupil := drowsy.Point{X: float64(right.Col), Y: float64(right.Row)}
	eyeSpan := float64(scale) * 0.3

	half := det.Scale / 2
	region := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)

	return Face{
		Region:     region,
		Confidence: float64(det.Q),
		Left:       BuildContour(leftPupil, eyeSpan, leftPts),
		Right:      BuildContour(rightPupil, eyeSpan, rightPts),
	}, true
}

// Close is a no-op; pigo cascades hold no OS resources.
func (d *PigoDetector) Close() error { return nil }
