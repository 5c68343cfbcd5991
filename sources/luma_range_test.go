package sources_test

import (
	"encoding/binary"
	"testing"

	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/sources"
)

func Test_LimitedRangeExpander_8Bit(t *testing.T) {
	props := comparator.FrameProps{Width: 5, Height: 1, BitDepth: 8}
	expander, err := sources.NewLimitedRangeExpander(props)
	if err != nil {
		t.Fatal(err)
	}

	// Two bytes of padding after the row.
	plane, err := expander.Expand([]byte{0, 16, 126, 235, 255, 9, 9}, 7)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0, 0, 128, 255, 255}
	for i, w := range want {
		if plane[i] != w {
			t.Fatalf("sample %d: expected %d, got %d", i, w, plane[i])
		}
	}
}

func Test_LimitedRangeExpander_10Bit(t *testing.T) {
	props := comparator.FrameProps{Width: 2, Height: 2, BitDepth: 10}
	expander, err := sources.NewLimitedRangeExpander(props)
	if err != nil {
		t.Fatal(err)
	}

	in := make([]byte, 8)
	for i, v := range []uint16{64, 940, 0, 1023} {
		binary.LittleEndian.PutUint16(in[2*i:], v)
	}
	plane, err := expander.Expand(in, 4)
	if err != nil {
		t.Fatal(err)
	}

	for i, w := range []uint16{0, 1023, 0, 1023} {
		if got := binary.LittleEndian.Uint16(plane[2*i:]); got != w {
			t.Fatalf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func Test_LimitedRangeExpander_Errors(t *testing.T) {
	if _, err := sources.NewLimitedRangeExpander(comparator.FrameProps{
		Width: 2, Height: 2, BitDepth: 6}); err == nil {
		t.Fatal("expected an error below 8 bits")
	}

	expander, err := sources.NewLimitedRangeExpander(comparator.FrameProps{
		Width: 4, Height: 2, BitDepth: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := expander.Expand(make([]byte, 7), 4); err == nil {
		t.Fatal("expected an error for a short plane")
	}
}
