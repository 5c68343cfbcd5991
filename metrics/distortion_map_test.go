package metrics_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/GreatValueCreamSoda/gossim/metrics"
)

type bufferPipe struct {
	bytes.Buffer
	closed int
}

func (p *bufferPipe) Close() error { p.closed++; return nil }

func Test_HeatmapWriter_NormalizesAndClips(t *testing.T) {
	pipe := &bufferPipe{}
	writer, err := metrics.NewHeatmapWriter(pipe, nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	if err := writer.WriteDistortion([]float32{0, 0.25, 0.5, 2, -1}); err != nil {
		t.Fatal(err)
	}

	want := []float32{0, 0.5, 1, 1, 0}
	got := pipe.Bytes()
	if len(got) != len(want)*4 {
		t.Fatalf("expected %d bytes, got %d", len(want)*4, len(got))
	}
	for i, w := range want {
		v := math.Float32frombits(binary.LittleEndian.Uint32(got[i*4:]))
		if v != w {
			t.Fatalf("sample %d: expected %v, got %v", i, w, v)
		}
	}
}

func Test_HeatmapWriter_SkipsEmptyMaps(t *testing.T) {
	pipe := &bufferPipe{}
	writer, _ := metrics.NewHeatmapWriter(pipe, nil, 1)

	if err := writer.WriteDistortion(nil); err != nil {
		t.Fatal(err)
	}
	if pipe.Len() != 0 {
		t.Fatalf("expected nothing written, got %d bytes", pipe.Len())
	}
}

func Test_HeatmapWriter_CloseOnce(t *testing.T) {
	pipe := &bufferPipe{}
	waits := 0
	boom := errors.New("exit status 1")
	writer, _ := metrics.NewHeatmapWriter(pipe, func() error {
		waits++
		return boom
	}, 1)

	for range 2 {
		if err := writer.Close(); !errors.Is(err, boom) {
			t.Fatalf("expected the encoder error, got %v", err)
		}
	}
	if pipe.closed != 1 || waits != 1 {
		t.Fatalf("expected one close and one wait, got %d and %d",
			pipe.closed, waits)
	}
}

func Test_HeatmapWriter_RejectsClipping(t *testing.T) {
	_, err := metrics.NewHeatmapWriter(&bufferPipe{}, nil, 0)
	if !errors.Is(err, metrics.ErrInvalidClipping) {
		t.Fatalf("expected ErrInvalidClipping, got %v", err)
	}
}
