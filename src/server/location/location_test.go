package location

import (
	"context"
	"errors"
	"testing"

	"github.com/dujjonku-map/server/src/server/geo"
)

type fakeCapability struct {
	point    geo.Point
	err      error
	calls    int
	accuracy Accuracy
}

func (f *fakeCapability) Locate(_ context.Context, acc Accuracy) (geo.Point, error) {
	f.calls++
	f.accuracy = acc
	return f.point, f.err
}

func TestResolve_NativeFirst(t *testing.T) {
	native := &fakeCapability{point: geo.Point{Lat: 35.1, Lng: 129.0}}
	browser := &fakeCapability{point: geo.Point{Lat: 1, Lng: 1}}

	got := NewResolver(native, browser).Resolve(context.Background())
	if got != native.point {
		t.Errorf("Resolve = %v, want %v", got, native.point)
	}
	if native.accuracy != AccuracyBalanced {
		t.Errorf("native accuracy = %q, want %q", native.accuracy, AccuracyBalanced)
	}
	if browser.calls != 0 {
		t.Errorf("browser called %d times, want 0", browser.calls)
	}
}

func TestResolve_FallsThrough(t *testing.T) {
	tests := []struct {
		name    string
		native  Capability
		browser Capability
		want    geo.Point
	}{
		{
			name:    "native denied uses browser",
			native:  &fakeCapability{err: ErrPermissionDenied},
			browser: &fakeCapability{point: geo.Point{Lat: 37.4, Lng: 127.1}},
			want:    geo.Point{Lat: 37.4, Lng: 127.1},
		},
		{
			name:    "no native uses browser",
			browser: &fakeCapability{point: geo.Point{Lat: 37.4, Lng: 127.1}},
			want:    geo.Point{Lat: 37.4, Lng: 127.1},
		},
		{
			name:    "both fail uses default",
			native:  &fakeCapability{err: ErrUnavailable},
			browser: &fakeCapability{err: errors.New("timeout")},
			want:    geo.Default,
		},
		{
			name: "nothing available uses default",
			want: geo.Default,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResolver(tt.native, tt.browser).Resolve(context.Background())
			if got != tt.want {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_EachCapabilityOnce(t *testing.T) {
	native := &fakeCapability{err: ErrUnavailable}
	browser := &fakeCapability{err: ErrUnavailable}
	NewResolver(native, browser).Resolve(context.Background())
	if native.calls != 1 || browser.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", native.calls, browser.calls)
	}
}

func TestReported(t *testing.T) {
	p := geo.Point{Lat: 37.5, Lng: 127.0}
	bad := geo.Point{Lat: 200, Lng: 0}
	tests := []struct {
		name    string
		r       Reported
		wantErr error
	}{
		{"point", Reported{Point: &p}, nil},
		{"denied", Reported{Point: &p, Denied: true}, ErrPermissionDenied},
		{"missing", Reported{}, ErrUnavailable},
		{"out of range", Reported{Point: &bad}, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.r.Locate(context.Background(), AccuracyBalanced)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != p {
				t.Errorf("point = %v, want %v", got, p)
			}
		})
	}
}
