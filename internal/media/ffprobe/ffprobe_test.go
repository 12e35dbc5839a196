package ffprobe

import (
	"math"
	"testing"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720,
     "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "duration": "10.000000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video", "width": 300, "height": 300}
  ],
  "format": {"filename": "in.mp4", "nb_streams": 3, "duration": "10.010000", "size": "1000"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1280 || video.Height != 720 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if fps := video.FrameRate(); math.Abs(fps-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", fps)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio")
	}
	if result.DurationSeconds() != 10.01 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestCoverArtIsNotTheVideoStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", CodecName: "png"}, {CodecType: "audio"}}}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected cover art to be skipped")
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", CodecName: "vp9", Duration: "4.5"}}}
	if result.DurationSeconds() != 4.5 {
		t.Fatalf("expected stream duration, got %v", result.DurationSeconds())
	}
	if (Result{Format: Format{Duration: "bad", Size: "-1"}}).DurationSeconds() != 0 {
		t.Fatal("expected 0 for unparseable duration")
	}
}

func TestParseRate(t *testing.T) {
	cases := map[string]float64{
		"30/1":       30,
		"25":         25,
		"0/0":        0,
		"24/0":       0,
		"abc":        0,
		"":           0,
		"60000/1001": 60000.0 / 1001.0,
	}
	for in, want := range cases {
		if got := ParseRate(in); got != want {
			t.Fatalf("ParseRate(%q) = %v want %v", in, got, want)
		}
	}
	if (Stream{RFrameRate: "24/1", AvgFrameRate: "0/0"}).FrameRate() != 24 {
		t.Fatal("expected fallback to r_frame_rate")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
