package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Extra decoders for formats phones and scanners hand out.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Selection is one file chosen by the user.
type Selection struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// ChooseFunc presents the native picker. It returns nil when the user
// dismissed it without choosing.
type ChooseFunc func(ctx context.Context) (*Selection, error)

// Picker is the one-shot file capture variant. It holds no resources.
type Picker struct {
	choose ChooseFunc
}

// NewPicker wraps a chooser.
func NewPicker(choose ChooseFunc) *Picker {
	return &Picker{choose: choose}
}

// PathPicker always selects the file at path. An empty path selects nothing.
func PathPicker(path string) *Picker {
	return NewPicker(func(context.Context) (*Selection, error) {
		if path == "" {
			return nil, nil
		}
		return FileSelection(path), nil
	})
}

// BytesPicker selects an in-memory upload, e.g. a file posted by a browser.
func BytesPicker(name string, data []byte) *Picker {
	return NewPicker(func(context.Context) (*Selection, error) {
		if len(data) == 0 {
			return nil, nil
		}
		return BytesSelection(name, data), nil
	})
}

// FileSelection selects a file on disk.
func FileSelection(path string) *Selection {
	return &Selection{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSelection selects an in-memory file.
func BytesSelection(name string, data []byte) *Selection {
	return &Selection{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Acquire presents the picker and decodes the chosen image with EXIF
// orientation applied. ErrNoSelection means the user chose nothing.
func (p *Picker) Acquire(ctx context.Context) (Still, error) {
	sel, err := p.choose(ctx)
	if err != nil {
		return Still{}, err
	}
	if sel == nil {
		return Still{}, ErrNoSelection
	}

	rc, err := sel.Open()
	if err != nil {
		return Still{}, fmt.Errorf("open %s: %w", sel.Name, err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return Still{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, sel.Name, err)
	}
	return Still{Image: img, Name: sel.Name}, nil
}

var _ Source = (*Picker)(nil)
