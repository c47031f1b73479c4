// Package local runs a YOLOv8 TensorFlow Lite export in-process.
package local

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tphakala/go-tflite"

	"ecobot-service/internal/annotate"
	"ecobot-service/internal/domain/detection"
	"ecobot-service/internal/model"
	"ecobot-service/internal/model/yolo"
)

type Options struct {
	LabelsPath    string
	ConfThreshold float64
	IOUThreshold  float64
	Threads       int
}

// Detector wraps one interpreter. The interpreter is not safe for concurrent
// use, so Detect runs one image at a time.
type Detector struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	names       map[int]string
	inputW      int
	inputH      int
	conf        float64
	iou         float64
	annotator   *annotate.Annotator
	log         zerolog.Logger
}

var _ model.Detector = (*Detector)(nil)

// Loader adapts Load to model.LoadFunc.
func Loader(opts Options, log zerolog.Logger) model.LoadFunc {
	return func(_ context.Context, path string) (model.Detector, error) {
		return Load(path, opts, log)
	}
}

func Load(path string, opts Options, log zerolog.Logger) (*Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	labelsPath := opts.LabelsPath
	if labelsPath == "" {
		labelsPath = model.LabelsPathFor(path)
	}
	if labelsPath == "" {
		return nil, errors.New("no class labels found next to model; set MODEL_LABELS")
	}
	names, err := model.LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	m := tflite.NewModelFromFile(path)
	if m == nil {
		return nil, fmt.Errorf("cannot load model from %s", path)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Warn().Str("component", "tflite").Msg(msg)
	}, nil)

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		m.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		m.Delete()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	input := interpreter.GetInputTensor(0)
	if input.NumDims() != 4 || input.Dim(3) != 3 || input.Type() != tflite.Float32 {
		interpreter.Delete()
		m.Delete()
		return nil, fmt.Errorf("unsupported input tensor: want float32 [1,h,w,3]")
	}

	d := &Detector{
		model:       m,
		interpreter: interpreter,
		names:       names,
		inputH:      input.Dim(1),
		inputW:      input.Dim(2),
		conf:        orDefault(opts.ConfThreshold, yolo.DefaultConfThreshold),
		iou:         orDefault(opts.IOUThreshold, yolo.DefaultIOUThreshold),
		annotator:   annotate.New(),
		log:         log,
	}
	log.Debug().
		Str("model_path", path).
		Int("input_w", d.inputW).
		Int("input_h", d.inputH).
		Int("classes", len(names)).
		Msg("tflite interpreter ready")
	return d, nil
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detection.RawBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	lb := yolo.NewLetterbox(b.Dx(), b.Dy(), d.inputW, d.inputH)
	padded := lb.Apply(img)

	d.mu.Lock()
	defer d.mu.Unlock()

	yolo.FillTensor(d.interpreter.GetInputTensor(0).Float32s(), padded)
	if status := d.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := d.interpreter.GetOutputTensor(0)
	if out.NumDims() != 3 {
		return nil, fmt.Errorf("unexpected output rank %d", out.NumDims())
	}
	dim1, dim2 := out.Dim(1), out.Dim(2)
	head := yolo.Output{Data: out.Float32s(), Channels: dim1, Anchors: dim2}
	if dim1 > dim2 {
		head = yolo.Output{Data: out.Float32s(), Channels: dim2, Anchors: dim1, Transposed: true}
	}
	head.Normalized = maxCoord(head) <= 2

	boxes := yolo.NMS(yolo.Decode(head, d.inputW, d.inputH, d.conf), d.iou, yolo.MaxDetections)
	for i := range boxes {
		boxes[i] = lb.Unmap(boxes[i])
	}
	return boxes, nil
}

func (d *Detector) Names() map[int]string {
	return d.names
}

func (d *Detector) Annotate(img image.Image, dets []detection.Detection) image.Image {
	return d.annotator.Draw(img, dets)
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interpreter != nil {
		d.interpreter.Delete()
		d.interpreter = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
	return nil
}

// maxCoord samples the box rows to tell normalized exports from pixel ones.
func maxCoord(o yolo.Output) float32 {
	var hi float32
	n := o.Anchors
	if n > 64 {
		n = 64
	}
	for a := 0; a < n; a++ {
		for c := 0; c < 4; c++ {
			var v float32
			if o.Transposed {
				v = o.Data[a*o.Channels+c]
			} else {
				v = o.Data[c*o.Anchors+a]
			}
			if v > hi {
				hi = v
			}
		}
	}
	return hi
}

func orDefault(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}
