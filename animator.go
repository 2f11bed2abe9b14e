package hxnav

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

// fadeSteps is the number of frames of a ramp: opacity moves 0.05 per frame.
const fadeSteps = 20

// FadeAnimator ramps the element's inline opacity one step per frame.
type FadeAnimator struct {
	// FrameInterval is the wait between frames. Zero steps without waiting.
	FrameInterval time.Duration
}

// FadeOut ramps opacity from 1 to 0.
func (a FadeAnimator) FadeOut(ctx context.Context, el *html.Node) error {
	return a.ramp(ctx, el, fadeSteps, 0, -1)
}

// FadeIn ramps opacity from 0 to 1.
func (a FadeAnimator) FadeIn(ctx context.Context, el *html.Node) error {
	return a.ramp(ctx, el, 0, fadeSteps, 1)
}

func (a FadeAnimator) ramp(ctx context.Context, el *html.Node, from, to, dir int) error {
	for step := from; ; step += dir {
		dom.SetOpacity(el, float64(step)/fadeSteps)
		if step == to {
			return nil
		}
		if err := a.frame(ctx); err != nil {
			return err
		}
	}
}

func (a FadeAnimator) frame(ctx context.Context) error {
	if a.FrameInterval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.FrameInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ClassAnimator leaves the transition to a stylesheet: it swaps the fade-in
// and fade-out classes on the element.
type ClassAnimator struct {
	InClass  string
	OutClass string
}

func (a ClassAnimator) FadeOut(ctx context.Context, el *html.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dom.RemoveClass(el, a.InClass)
	dom.AddClass(el, a.OutClass)
	return nil
}

func (a ClassAnimator) FadeIn(ctx context.Context, el *html.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dom.RemoveClass(el, a.OutClass)
	dom.AddClass(el, a.InClass)
	return nil
}
