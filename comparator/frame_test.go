package comparator_test

import (
	"errors"
	"math"
	"testing"

	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/ssim"
)

func newImage(t *testing.T, width, height int) *ssim.Buffer {
	t.Helper()
	img, err := ssim.NewImage(width, height)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func Test_Frame_WritePaddedRows(t *testing.T) {
	frame, err := comparator.NewFrame(comparator.FrameProps{
		Width: 3, Height: 2, BitDepth: 8})
	if err != nil {
		t.Fatal(err)
	}

	// Rows are 5 bytes apart; the last two bytes of each row are padding.
	padded := []byte{1, 2, 3, 99, 99, 4, 5, 6}
	if err := frame.Write(padded, 5); err != nil {
		t.Fatal(err)
	}

	data, lineSize := frame.Read()
	if lineSize != 3 {
		t.Fatalf("expected a packed line size of 3, got %d", lineSize)
	}
	for i, want := range []byte{1, 2, 3, 4, 5, 6} {
		if data[i] != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, data[i])
		}
	}
}

func Test_Frame_WriteRejectsShortInput(t *testing.T) {
	frame, err := comparator.NewFrame(comparator.FrameProps{
		Width: 4, Height: 4, BitDepth: 8})
	if err != nil {
		t.Fatal(err)
	}

	if err := frame.Write(make([]byte, 15), 4); err == nil {
		t.Fatal("expected an error for a truncated plane")
	}
	if err := frame.Write(make([]byte, 64), 3); err == nil {
		t.Fatal("expected an error for a line size shorter than a row")
	}
}

func Test_Frame_NewFrameValidates(t *testing.T) {
	bad := []comparator.FrameProps{
		{Width: 0, Height: 4, BitDepth: 8},
		{Width: 4, Height: -1, BitDepth: 8},
		{Width: 4, Height: 4, BitDepth: 0},
		{Width: 4, Height: 4, BitDepth: 17},
	}
	for _, props := range bad {
		if _, err := comparator.NewFrame(props); err == nil {
			t.Fatalf("expected an error for %+v", props)
		}
	}
}

func Test_Frame_ToBuffer8Bit(t *testing.T) {
	frame, _ := comparator.NewFrame(comparator.FrameProps{
		Width: 2, Height: 2, BitDepth: 8})
	if err := frame.Write([]byte{0, 17, 128, 255}, 2); err != nil {
		t.Fatal(err)
	}

	buf := newImage(t, 2, 2)
	if err := frame.ToBuffer(buf, 8); err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{0, 17, 128, 255} {
		if buf.Data[i] != want {
			t.Fatalf("sample %d: expected %v, got %v", i, want, buf.Data[i])
		}
	}
}

func Test_Frame_ToBuffer16BitLittleEndian(t *testing.T) {
	props := comparator.FrameProps{Width: 2, Height: 1, BitDepth: 10}
	if props.RowBytes() != 4 {
		t.Fatalf("expected 4 bytes per row, got %d", props.RowBytes())
	}
	frame, _ := comparator.NewFrame(props)
	// 1023 and 256
	if err := frame.Write([]byte{0xff, 0x03, 0x00, 0x01}, 4); err != nil {
		t.Fatal(err)
	}

	buf := newImage(t, 2, 1)
	if err := frame.ToBuffer(buf, 10); err != nil {
		t.Fatal(err)
	}
	if buf.Data[0] != 1023 || buf.Data[1] != 256 {
		t.Fatalf("unexpected samples %v", buf.Data)
	}
}

func Test_Frame_ToBufferRescalesDepth(t *testing.T) {
	frame, _ := comparator.NewFrame(comparator.FrameProps{
		Width: 2, Height: 1, BitDepth: 8})
	if err := frame.Write([]byte{0, 255}, 2); err != nil {
		t.Fatal(err)
	}

	buf := newImage(t, 2, 1)
	if err := frame.ToBuffer(buf, 10); err != nil {
		t.Fatal(err)
	}
	if buf.Data[0] != 0 || math.Abs(buf.Data[1]-1023) > 1e-9 {
		t.Fatalf("expected 8-bit white to map to 1023, got %v", buf.Data)
	}
}

func Test_Frame_ToBufferShapeMismatch(t *testing.T) {
	frame, _ := comparator.NewFrame(comparator.FrameProps{
		Width: 4, Height: 2, BitDepth: 8})

	err := frame.ToBuffer(newImage(t, 2, 4), 8)
	if !errors.Is(err, ssim.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
