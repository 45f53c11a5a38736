// Package invoice renders billing slips as single-page PDF documents.
//
// Output is byte-for-byte reproducible: the document carries no creation
// date, producer string or random id, and the optional QR block depends
// only on its reference text.
package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// A4 portrait, in points.
const (
	PageWidth  = 595
	PageHeight = 842

	FontSize   = 10
	LineHeight = 14
	TopMargin  = 60
	LeftMargin = 50

	qrSize      = 96
	qrTopMargin = 40
)

// Slip is the content of one billing slip.
type Slip struct {
	Lines []string
	// Reference is encoded as a QR code in the top-right corner when set.
	Reference string
}

type Renderer struct {
	QRCode bool
}

func NewRenderer(qr bool) *Renderer {
	return &Renderer{QRCode: qr}
}

// Render lays lines out top to bottom at a constant leading. Lines that run
// past the page edge are still written and clipped by the viewer.
func (r *Renderer) Render(s Slip) ([]byte, error) {
	var image []byte
	var imageSide int
	if r.QRCode && s.Reference != "" {
		var err error
		image, imageSide, err = qrImage(s.Reference)
		if err != nil {
			return nil, fmt.Errorf("encode qr reference: %w", err)
		}
	}

	content := textStream(s.Lines)
	if image != nil {
		x := PageWidth - LeftMargin - qrSize
		y := PageHeight - qrTopMargin - qrSize
		content = append(content, fmt.Sprintf("q %d 0 0 %d %d %d cm /Im1 Do Q\n", qrSize, qrSize, x, y)...)
	}

	resources := "<< /Font << /F1 4 0 R >> >>"
	if image != nil {
		resources = "<< /Font << /F1 4 0 R >> /XObject << /Im1 6 0 R >> >>"
	}

	objects := [][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		[]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"),
		[]byte(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources %s /Contents 5 0 R >>",
			PageWidth, PageHeight, resources)),
		[]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"),
		streamObject("", content),
	}
	if image != nil {
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 1 ",
			imageSide, imageSide)
		objects = append(objects, streamObject(dict, image))
	}

	return assemble(objects), nil
}

func textStream(lines []string) []byte {
	var b bytes.Buffer
	b.WriteString("BT\n")
	fmt.Fprintf(&b, "/F1 %d Tf\n", FontSize)
	fmt.Fprintf(&b, "%d TL\n", LineHeight)
	fmt.Fprintf(&b, "%d %d Td\n", LeftMargin, PageHeight-TopMargin)
	for i, line := range lines {
		if i > 0 {
			b.WriteString("T* ")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escape(Sanitize(line)))
	}
	b.WriteString("ET\n")
	return b.Bytes()
}

func streamObject(dict string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s/Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

// assemble numbers objects from 1 and writes the cross-reference table.
func assemble(objects [][]byte) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n", i+1)
		b.Write(obj)
		b.WriteString("\nendobj\n")
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// Sanitize replaces anything outside printable ASCII with '?'.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// qrImage packs the QR bitmap into 1-bit rows, black = 0.
func qrImage(ref string) ([]byte, int, error) {
	code, err := qrcode.New(ref, qrcode.Medium)
	if err != nil {
		return nil, 0, err
	}
	bitmap := code.Bitmap()
	side := len(bitmap)
	rowBytes := (side + 7) / 8

	out := make([]byte, 0, rowBytes*side)
	for _, row := range bitmap {
		packed := make([]byte, rowBytes)
		for i := range packed {
			packed[i] = 0xff
		}
		for x, black := range row {
			if black {
				packed[x/8] &^= 0x80 >> (x % 8)
			}
		}
		out = append(out, packed...)
	}
	return out, side, nil
}
