package pdf

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// Document is the page level view of a PDF the extractor needs.
type Document interface {
	NumPage() int
	// Text returns the embedded text layer of page n (zero based).
	Text(n int) (string, error)
	// Render rasterizes page n at the given DPI.
	Render(n int, dpi float64) (image.Image, error)
	Close() error
}

// Opener opens PDF bytes as a Document.
type Opener func(data []byte) (Document, error)

// OpenFitz opens a PDF with MuPDF.
func OpenFitz(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (f *fitzDocument) NumPage() int {
	return f.doc.NumPage()
}

func (f *fitzDocument) Text(n int) (string, error) {
	return f.doc.Text(n)
}

func (f *fitzDocument) Render(n int, dpi float64) (image.Image, error) {
	return f.doc.ImageDPI(n, dpi)
}

func (f *fitzDocument) Close() error {
	return f.doc.Close()
}
