package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"wmclean/internal/config"
	"wmclean/internal/document"
	"wmclean/internal/media/ffprobe"
	"wmclean/internal/raster"
	"wmclean/internal/services"
	"wmclean/internal/testsupport"
	"wmclean/internal/video"
)

func TestDetectKind(t *testing.T) {
	png := testsupport.PNG(t, testsupport.WatermarkedFrame(4, 4))
	cases := []struct {
		name    string
		data    []byte
		file    string
		want    Kind
		wantErr bool
	}{
		{"png bytes", png, "", KindImage, false},
		{"pdf magic", []byte("%PDF-1.7\n..."), "scan.bin", KindDocument, false},
		{"extension fallback", []byte("\x00\x01binary\x00\x02"), "clip.mov", KindVideo, false},
		{"pdf by extension", []byte("garbage"), "report.PDF", KindDocument, false},
		{"unknown", []byte("hello world"), "notes.txt", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectKind(tc.data, tc.file)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectKind: %v", err)
			}
			if got != tc.want {
				t.Fatalf("kind = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]Kind{"": "", "IMAGE": KindImage, "pdf": KindDocument, " video ": KindVideo} {
		got, err := ParseKind(input)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseKind("audio"); err == nil {
		t.Fatal("expected error for audio")
	}
}

func TestOutputName(t *testing.T) {
	cases := map[[2]string]string{
		{"/in/photo.jpg", ""}:      "photo_cleaned.jpg",
		{"/in/photo.webp", ".png"}: "photo_cleaned.png",
		{"clip.mov", ".mp4"}:       "clip_cleaned.mp4",
		{"scan", ".pdf"}:           "scan_cleaned.pdf",
	}
	for in, want := range cases {
		if got := OutputName(in[0], in[1]); got != want {
			t.Fatalf("OutputName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestImageExtension(t *testing.T) {
	cases := []struct {
		name, input, written, want string
	}{
		{"photo.JPG", "jpeg", "jpeg", ".jpg"},
		{"photo.jpeg", "jpeg", "jpeg", ".jpeg"},
		{"anim.gif", "gif", "png", ".png"},
		{"", "png", "png", ".png"},
	}
	for _, tc := range cases {
		if got := imageExtension(tc.name, tc.input, tc.written); got != tc.want {
			t.Fatalf("imageExtension(%q, %q, %q) = %q, want %q", tc.name, tc.input, tc.written, got, tc.want)
		}
	}
}

func TestThresholdsForAppliesOverrides(t *testing.T) {
	tolerance := 33
	cfg := config.Classifier{Tiers: map[string]config.TierOverride{"light": {Tolerance: &tolerance}}}
	th := thresholdsFor(cfg, "light")
	if th.Tolerance != 33 {
		t.Fatalf("tolerance = %d, want 33", th.Tolerance)
	}
	if th.MinBrightness != 180 {
		t.Fatalf("unset fields should keep defaults, got min brightness %d", th.MinBrightness)
	}
	if got := thresholdsFor(cfg, "medium"); got.Tolerance != 25 {
		t.Fatalf("medium tolerance = %d, want 25", got.Tolerance)
	}
}

func newCleaner(t *testing.T, cfg *config.Config, deps Dependencies) *Cleaner {
	t.Helper()
	c, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func brightness(f *raster.Frame, x, y int) int {
	r, g, b := f.RGB(x, y)
	return (int(r) + int(g) + int(b)) / 3
}

func TestCleanImageWithoutProvidersUsesLocalFill(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCleaner(t, cfg, Dependencies{})
	input := testsupport.WatermarkedFrame(24, 24)

	var progress [][2]int
	res, err := c.Clean(context.Background(), Request{
		Data:     testsupport.PNG(t, input),
		Name:     "photo.png",
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Kind != KindImage || res.Extension != ".png" {
		t.Fatalf("unexpected result kind %q ext %q", res.Kind, res.Extension)
	}
	rep := res.Report
	if rep.Units != 1 || rep.Local != 1 || rep.Remote != 0 || rep.Attempts != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Degraded() {
		t.Fatal("local fill without providers is not degradation")
	}
	if rep.RequestID == "" {
		t.Fatal("expected request id")
	}
	if len(progress) != 1 || progress[0] != [2]int{1, 1} {
		t.Fatalf("unexpected progress %v", progress)
	}

	out, _, err := raster.Decode(res.Data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Width != 24 || out.Height != 24 {
		t.Fatalf("output size %dx%d", out.Width, out.Height)
	}
	if b := brightness(out, 12, 12); b < 240 {
		t.Fatalf("band pixel not repaired: brightness %d", b)
	}
	if b := brightness(out, 0, 0); b > 20 {
		t.Fatalf("ink pixel changed: brightness %d", b)
	}
}

func whiteServer(t *testing.T, hits *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	white := raster.NewFrame(24, 24)
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	body := testsupport.PNG(t, white)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			http.Error(w, "request entity too large", status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCleanImageUsesRemoteProvider(t *testing.T) {
	var hits atomic.Int32
	srv := whiteServer(t, &hits, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithProvider("stub", srv.URL, "image"))
	c := newCleaner(t, cfg, Dependencies{HTTPClient: srv.Client()})

	res, err := c.Clean(context.Background(), Request{Data: testsupport.PNG(t, testsupport.WatermarkedFrame(24, 24)), Name: "a.png"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", hits.Load())
	}
	rep := res.Report
	if rep.Remote != 1 || rep.Providers["stub"] != 1 || rep.Attempts != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	out, _, err := raster.Decode(res.Data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := brightness(out, 0, 0); b != 255 {
		t.Fatalf("expected provider pixels, corner brightness %d", b)
	}
}

func TestCleanImageTooLargeMovesToNextProvider(t *testing.T) {
	var bigHits, hits atomic.Int32
	big := whiteServer(t, &bigHits, http.StatusRequestEntityTooLarge)
	srv := whiteServer(t, &hits, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithProvider("small-limit", big.URL, "image"),
		testsupport.WithProvider("stub", srv.URL, "image"),
	)
	c := newCleaner(t, cfg, Dependencies{})

	res, err := c.Clean(context.Background(), Request{Data: testsupport.PNG(t, testsupport.WatermarkedFrame(24, 24)), Name: "a.png"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if bigHits.Load() != 1 || hits.Load() != 1 {
		t.Fatalf("expected one call per provider, got %d and %d", bigHits.Load(), hits.Load())
	}
	rep := res.Report
	if rep.Remote != 1 || rep.Local != 0 || rep.Providers["stub"] != 1 || rep.Attempts != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Degraded() {
		t.Fatal("a remote repair is not degraded")
	}
}

func TestCleanImageTooLargeEverywhereIsRepairedLocally(t *testing.T) {
	var hits atomic.Int32
	srv := whiteServer(t, &hits, http.StatusRequestEntityTooLarge)
	cfg := testsupport.NewConfig(t, testsupport.WithProvider("stub", srv.URL, "image"))
	c := newCleaner(t, cfg, Dependencies{HTTPClient: srv.Client()})

	res, err := c.Clean(context.Background(), Request{Data: testsupport.PNG(t, testsupport.WatermarkedFrame(24, 24)), Name: "a.png"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Report.Local != 1 || res.Report.Remote != 0 {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
	if !res.Report.Degraded() {
		t.Fatal("expected degraded report after provider refusal")
	}
}

func TestCleanImageWithEmptyMaskSkipsProviders(t *testing.T) {
	var hits atomic.Int32
	srv := whiteServer(t, &hits, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithProvider("stub", srv.URL, "image"))
	c := newCleaner(t, cfg, Dependencies{HTTPClient: srv.Client()})

	white := raster.NewFrame(8, 8)
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	input := testsupport.PNG(t, white)
	res, err := c.Clean(context.Background(), Request{Data: input, Name: "white.png"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no provider calls, got %d", hits.Load())
	}
	if res.Report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
	out, _, _ := raster.Decode(res.Data)
	if !slices.Equal(out.Pix, white.Pix) {
		t.Fatal("expected untouched output")
	}
}

func TestCleanRejectsBadRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCleaner(t, cfg, Dependencies{})
	png := testsupport.PNG(t, testsupport.WatermarkedFrame(4, 4))

	cases := []struct {
		name   string
		req    Request
		marker error
	}{
		{"empty", Request{Name: "a.png"}, services.ErrValidation},
		{"bad mode", Request{Data: png, ColorMode: "purple"}, services.ErrValidation},
		{"bad tier", Request{Data: png, Tier: "extreme"}, services.ErrValidation},
		{"custom without target", Request{Data: png, ColorMode: "custom"}, services.ErrValidation},
		{"unknown kind", Request{Data: []byte("plain text"), Name: "a.txt"}, services.ErrValidation},
		{"undecodable image", Request{Data: []byte("plain text"), Kind: KindImage}, services.ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Clean(context.Background(), tc.req)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

// fakeRasterizer renders every page of a PDF as a watermarked frame.
type fakeRasterizer struct {
	calls atomic.Int32
	pages atomic.Int32
}

func (f *fakeRasterizer) Rasterize(_ context.Context, pdf []byte) ([]*raster.Frame, error) {
	f.calls.Add(1)
	n, err := document.NewPDFCodec().PageCount(pdf)
	if err != nil {
		return nil, err
	}
	f.pages.Add(int32(n))
	frames := make([]*raster.Frame, n)
	for i := range frames {
		frames[i] = testsupport.WatermarkedFrame(20, 28)
	}
	return frames, nil
}

func samplePDF(t *testing.T, pages int) []byte {
	t.Helper()
	frames := make([]*raster.Frame, pages)
	for i := range frames {
		frames[i] = testsupport.WatermarkedFrame(20, 28)
	}
	data, err := document.Reassemble(frames, 2)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	return data
}

func TestCleanDocumentRasterizesChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Chunking.MaxPages = 2
	rasterizer := &fakeRasterizer{}
	c := newCleaner(t, cfg, Dependencies{Rasterizer: rasterizer})

	var last [2]int
	res, err := c.Clean(context.Background(), Request{
		Data:     samplePDF(t, 3),
		Name:     "scan.pdf",
		Progress: func(done, total int) { last = [2]int{done, total} },
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Kind != KindDocument || res.Extension != ".pdf" {
		t.Fatalf("unexpected result %q %q", res.Kind, res.Extension)
	}
	pages, err := document.NewPDFCodec().PageCount(res.Data)
	if err != nil || pages != 3 {
		t.Fatalf("output pages = %d, %v", pages, err)
	}
	if rasterizer.calls.Load() != 2 || rasterizer.pages.Load() != 3 {
		t.Fatalf("rasterizer saw %d calls, %d pages", rasterizer.calls.Load(), rasterizer.pages.Load())
	}
	rep := res.Report
	if rep.Units != 3 || rep.Local != 3 || rep.Passthrough != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Chunks == nil || rep.Chunks.Chunks != 2 {
		t.Fatalf("unexpected chunk report: %+v", rep.Chunks)
	}
	if last != [2]int{3, 3} {
		t.Fatalf("unexpected final progress %v", last)
	}
}

func TestCleanDocumentPrefersDocumentProviders(t *testing.T) {
	cleaned := samplePDF(t, 3)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(cleaned)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProvider("docs", srv.URL, "document"))
	rasterizer := &fakeRasterizer{}
	c := newCleaner(t, cfg, Dependencies{Rasterizer: rasterizer, HTTPClient: srv.Client()})

	res, err := c.Clean(context.Background(), Request{Data: samplePDF(t, 3), Name: "scan.pdf"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !bytes.Equal(res.Data, cleaned) {
		t.Fatal("expected provider output for a single chunk")
	}
	if rasterizer.calls.Load() != 0 {
		t.Fatalf("rasterizer should not run, got %d calls", rasterizer.calls.Load())
	}
	rep := res.Report
	if rep.Remote != 3 || rep.Providers["docs"] != 3 || hits.Load() != 1 {
		t.Fatalf("unexpected report %+v after %d calls", rep, hits.Load())
	}
}

func TestCleanDocumentFallsBackWhenProviderPagesMismatch(t *testing.T) {
	onePage := samplePDF(t, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(onePage)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProvider("docs", srv.URL, "document"))
	rasterizer := &fakeRasterizer{}
	c := newCleaner(t, cfg, Dependencies{Rasterizer: rasterizer, HTTPClient: srv.Client()})

	res, err := c.Clean(context.Background(), Request{Data: samplePDF(t, 3), Name: "scan.pdf"})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if rasterizer.calls.Load() != 1 {
		t.Fatalf("expected raster fallback, got %d calls", rasterizer.calls.Load())
	}
	if res.Report.Local != 3 || res.Report.Remote != 0 || res.Report.Attempts == 0 {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
}

type fakeMedia struct {
	frames int
}

func (f *fakeMedia) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "video", CodecName: "h264", Width: 12, Height: 12, RFrameRate: "5/1", AvgFrameRate: "5/1"},
	}}, nil
}

func (f *fakeMedia) ExtractAudio(context.Context, string, string) error {
	return errors.New("no audio")
}

func (f *fakeMedia) ExtractFrames(_ context.Context, _, dir string, _ float64) ([]string, error) {
	paths := make([]string, 0, f.frames)
	for i := 1; i <= f.frames; i++ {
		data, err := raster.EncodePNG(testsupport.WatermarkedFrame(12, 12))
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeMedia) Encode(_ context.Context, req video.EncodeRequest) error {
	return os.WriteFile(req.Output, []byte("encoded"), 0o644)
}

func TestCleanVideoCountsFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCleaner(t, cfg, Dependencies{Media: &fakeMedia{frames: 6}})

	var done atomic.Int32
	res, err := c.Clean(context.Background(), Request{
		Data:     []byte("not really a video"),
		Name:     "clip.mov",
		Kind:     KindVideo,
		Progress: func(int, int) { done.Add(1) },
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if string(res.Data) != "encoded" || res.Extension != ".mp4" {
		t.Fatalf("unexpected output %q %q", res.Data, res.Extension)
	}
	rep := res.Report
	if rep.Units != 6 || rep.Local != 6 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Video == nil || rep.Video.Frames != 6 || rep.Video.Audio {
		t.Fatalf("unexpected video report: %+v", rep.Video)
	}
	if done.Load() != 6 {
		t.Fatalf("expected 6 progress callbacks, got %d", done.Load())
	}
}

func TestInspectReturnsDilatedMask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newCleaner(t, cfg, Dependencies{})
	data := testsupport.PNG(t, testsupport.WatermarkedFrame(24, 24))

	plain, err := c.Inspect(Request{Data: data, Tier: "medium"})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if plain.Mask.Empty() || plain.Mode != "gray" || plain.Tier != "medium" {
		t.Fatalf("unexpected inspection mode=%s tier=%s empty=%v", plain.Mode, plain.Tier, plain.Mask.Empty())
	}
	radius := 2
	dilated, err := c.Inspect(Request{Data: data, DilateRadius: &radius})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	for i, masked := range plain.Mask.Bits {
		if masked && !dilated.Mask.Bits[i] {
			t.Fatalf("dilated mask dropped pixel %d", i)
		}
	}
	if dilated.Mask.Count() <= plain.Mask.Count() {
		t.Fatalf("dilation did not grow mask: %d vs %d", dilated.Mask.Count(), plain.Mask.Count())
	}

	if _, err := c.Inspect(Request{Data: []byte("not an image")}); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
