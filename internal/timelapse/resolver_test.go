package timelapse

import (
	"strings"
	"testing"
	"time"
)

const wantColormapParam = "%5B%5B%5B-100%2C0%5D%2C%5B173%2C216%2C230%2C0%5D%5D%2C%5B%5B0%2C1%5D%2C%5B135%2C206%2C235%2C255%5D%5D%2C" +
	"%5B%5B1%2C2%5D%2C%5B0%2C191%2C255%2C255%5D%5D%2C%5B%5B2%2C3%5D%2C%5B0%2C127%2C255%2C255%5D%5D%2C" +
	"%5B%5B3%2C4%5D%2C%5B0%2C0%2C255%2C255%5D%5D%2C%5B%5B4%2C5%5D%2C%5B0%2C0%2C139%2C255%5D%5D%2C" +
	"%5B%5B5%2C100%5D%2C%5B25%2C25%2C112%2C255%5D%5D%5D"

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func utc(s string) time.Time {
	ts, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestResolve_ThreeHourRange(t *testing.T) {
	r := newTestResolver(t)

	frames := r.Resolve(TimeRange{Start: utc("2023-06-01T00:00"), End: utc("2023-06-01T02:00")})
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}

	wantHours := []string{"00:00", "01:00", "02:00"}
	wantIDs := []string{"raster-0", "raster-1", "raster-2"}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frame %d: index %d", i, f.Index)
		}
		if got := f.Timestamp.Format("15:04"); got != wantHours[i] {
			t.Errorf("frame %d: timestamp %s, want %s", i, got, wantHours[i])
		}
		if f.LayerID != wantIDs[i] {
			t.Errorf("frame %d: layer id %s, want %s", i, f.LayerID, wantIDs[i])
		}
	}
}

func TestResolve_InvertedRangeIsEmpty(t *testing.T) {
	r := newTestResolver(t)

	frames := r.Resolve(TimeRange{Start: utc("2023-06-01T05:00"), End: utc("2023-06-01T03:00")})
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}

func TestResolve_FrameCount(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"single instant", "2023-06-01T00:00", "2023-06-01T00:00", 1},
		{"start mid hour", "2023-06-01T00:30", "2023-06-01T02:15", 3},
		{"same hour", "2023-06-01T05:40", "2023-06-01T05:50", 1},
		{"end just before hour", "2023-06-01T00:00", "2023-06-01T01:59", 2},
		{"across midnight", "2023-06-01T22:00", "2023-06-02T01:00", 4},
		{"one day", "2023-06-01T00:00", "2023-06-02T00:00", 25},
		{"across month", "2023-06-30T23:00", "2023-07-01T00:00", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := utc(tt.start), utc(tt.end)
			frames := r.Resolve(TimeRange{Start: start, End: end})
			if len(frames) != tt.want {
				t.Fatalf("expected %d frames, got %d", tt.want, len(frames))
			}
			// floor(hours(hourTruncate(start), end)) + 1
			formula := int(end.Sub(HourTruncate(start))/time.Hour) + 1
			if len(frames) != formula {
				t.Errorf("frame count %d disagrees with formula %d", len(frames), formula)
			}
		})
	}
}

func TestResolve_ConsecutiveHoursAndDistinctLayerIDs(t *testing.T) {
	r := newTestResolver(t)

	frames := r.Resolve(TimeRange{Start: utc("2023-06-01T07:12"), End: utc("2023-06-03T19:00")})
	if len(frames) < 2 {
		t.Fatalf("expected several frames, got %d", len(frames))
	}

	seen := make(map[string]bool, len(frames))
	for i, f := range frames {
		if seen[f.LayerID] {
			t.Fatalf("duplicate layer id %s", f.LayerID)
		}
		seen[f.LayerID] = true

		if f.Timestamp.Minute() != 0 || f.Timestamp.Second() != 0 || f.Timestamp.Nanosecond() != 0 {
			t.Errorf("frame %d not hour-truncated: %s", i, f.Timestamp)
		}
		if i > 0 {
			if d := f.Timestamp.Sub(frames[i-1].Timestamp); d != time.Hour {
				t.Errorf("frame %d: gap %s, want 1h", i, d)
			}
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver(t)
	tr := TimeRange{Start: utc("2023-06-01T00:00"), End: utc("2023-06-01T12:00")}

	a := r.Resolve(tr)
	b := r.Resolve(tr)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("frame %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestTileReference_ExactURL(t *testing.T) {
	r := newTestResolver(t)

	got := r.TileReference(utc("2023-06-01T00:00"))
	want := "https://umzdj934ak.execute-api.us-east-2.amazonaws.com/cog/tiles/{z}/{x}/{y}?url=" +
		"s3%3A%2F%2Fnoaa-raster-bucket-us-east-2%2FMRMS%2F2023%2F06%2F01%2FMultiSensor_QPE_01H_Pass2_00.00_20230601-000000.tif" +
		"&resampling=cubic_spline&nodata=0&colormap=" + wantColormapParam
	if got != want {
		t.Errorf("tile reference mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestStoragePath_ZeroPadding(t *testing.T) {
	r := newTestResolver(t)

	got := r.StoragePath(utc("2024-01-05T07:00"))
	want := "s3://noaa-raster-bucket-us-east-2/MRMS/2024/01/05/MultiSensor_QPE_01H_Pass2_00.00_20240105-070000.tif"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestStoragePath_UsesInstantLocation(t *testing.T) {
	r := newTestResolver(t)
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2023-06-01T03:00Z is 22:00 CDT on May 31.
	got := r.StoragePath(utc("2023-06-01T03:00").In(chicago))
	if !strings.HasSuffix(got, "/MRMS/2023/05/31/MultiSensor_QPE_01H_Pass2_00.00_20230531-220000.tif") {
		t.Errorf("unexpected local storage path %s", got)
	}
}

func TestNewResolver_CustomEndpointAndBucket(t *testing.T) {
	r, err := NewResolver(ResolverConfig{TileEndpoint: "http://tiles.local/cog/tiles/", Bucket: "my-bucket"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got := r.TileReference(utc("2023-06-01T00:00"))
	if !strings.HasPrefix(got, "http://tiles.local/cog/tiles/{z}/{x}/{y}?url=s3%3A%2F%2Fmy-bucket%2FMRMS%2F") {
		t.Errorf("unexpected reference %s", got)
	}
}

func TestEncodeURIComponent(t *testing.T) {
	tests := map[string]string{
		"abcXYZ019":    "abcXYZ019",
		"-_.!~*'()":    "-_.!~*'()",
		"a b":          "a%20b",
		"s3://b/k.tif": "s3%3A%2F%2Fb%2Fk.tif",
		"[1,2]":        "%5B1%2C2%5D",
		"é":            "%C3%A9",
	}
	for in, want := range tests {
		if got := encodeURIComponent(in); got != want {
			t.Errorf("encodeURIComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatLabel(t *testing.T) {
	got := FormatLabel(utc("2023-06-01T05:00"))
	if got != "Date & Time: 2023-06-01 05:00:00" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestHourTruncate_FractionalOffset(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2023, 6, 1, 10, 45, 12, 0, kolkata)

	got := HourTruncate(ts)
	if got.Hour() != 10 || got.Minute() != 0 || got.Location() != kolkata {
		t.Errorf("unexpected truncation %s", got)
	}
}

func TestHourTruncate_RepeatedFallBackHour(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	r := newTestResolver(t)

	// 2023-11-05 01:30 occurs twice in New York: 05:30Z (EDT) and 06:30Z (EST).
	tests := []struct {
		name    string
		instant time.Time
		wantUTC time.Time
		wantTZ  string
	}{
		{"first pass EDT", utc("2023-11-05T05:30").In(newYork), utc("2023-11-05T05:00"), "EDT"},
		{"second pass EST", utc("2023-11-05T06:30").In(newYork), utc("2023-11-05T06:00"), "EST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HourTruncate(tt.instant)
			if !got.Equal(tt.wantUTC) {
				t.Errorf("truncated to %s, want %s", got, tt.wantUTC.In(newYork))
			}
			if zone, _ := got.Zone(); zone != tt.wantTZ {
				t.Errorf("zone %s, want %s", zone, tt.wantTZ)
			}
			if got.Hour() != 1 || got.Minute() != 0 {
				t.Errorf("expected local 01:00, got %s", got)
			}

			frames := r.Resolve(TimeRange{Start: tt.instant, End: tt.instant})
			if len(frames) != 1 {
				t.Fatalf("expected 1 frame, got %d", len(frames))
			}
			if !frames[0].Timestamp.Equal(tt.wantUTC) {
				t.Errorf("frame at %s, want %s", frames[0].Timestamp, tt.wantUTC.In(newYork))
			}
		})
	}
}
