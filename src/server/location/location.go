// Package location resolves the user's position from whatever capability
// the client has, falling back to a fixed default.
package location

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dujjonku-map/server/src/server/geo"
)

var (
	ErrUnavailable      = errors.New("location unavailable")
	ErrPermissionDenied = errors.New("location permission denied")
)

// Accuracy is the precision requested from a capability. The zero value
// leaves it to the platform.
type Accuracy string

const (
	AccuracyDefault  Accuracy = ""
	AccuracyBalanced Accuracy = "balanced"
)

// Capability is one way of obtaining the device position.
type Capability interface {
	Locate(ctx context.Context, accuracy Accuracy) (geo.Point, error)
}

// Resolver tries the native capability, then the browser one, then the
// default point. Nil capabilities are treated as absent.
type Resolver struct {
	Native  Capability
	Browser Capability
	Default geo.Point
}

func NewResolver(native, browser Capability) *Resolver {
	return &Resolver{Native: native, Browser: browser, Default: geo.Default}
}

// Resolve never fails. Each capability is asked at most once.
func (r *Resolver) Resolve(ctx context.Context) geo.Point {
	if r.Native != nil {
		p, err := r.Native.Locate(ctx, AccuracyBalanced)
		if err == nil {
			return p
		}
		slog.Info("Native location failed, trying browser", "error", err)
	}

	if r.Browser != nil {
		p, err := r.Browser.Locate(ctx, AccuracyDefault)
		if err == nil {
			return p
		}
		slog.Info("Browser location failed, using default", "error", err)
	}

	return r.Default
}

// Reported is a position the client already obtained and posted, or its
// report that permission was refused.
type Reported struct {
	Point  *geo.Point
	Denied bool
}

func (r Reported) Locate(ctx context.Context, _ Accuracy) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	if r.Denied {
		return geo.Point{}, ErrPermissionDenied
	}
	if r.Point == nil || !r.Point.Valid() {
		return geo.Point{}, ErrUnavailable
	}
	return *r.Point, nil
}
