package engine

import (
	"math"
	"testing"

	"github.com/keylinehq/keyline/pkg/document"
)

func TestSetPhaseDurationClamps(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		in   int
		want int
	}{
		{100, document.MinPhaseDuration},
		{5_000, 5_000},
		{999_999, document.MaxPhaseDuration},
	}
	for _, tc := range cases {
		if err := f.eng.SetPhaseDuration(f.template.ID, document.PhaseLoop, tc.in); err != nil {
			t.Fatalf("SetPhaseDuration(%d): %v", tc.in, err)
		}
		if got := f.template.PhaseDuration(document.PhaseLoop); got != tc.want {
			t.Errorf("duration(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if err := f.eng.SetPhaseDuration(f.template.ID, document.Phase("warmup"), 1000); err == nil {
		t.Error("unknown phase should fail")
	}
}

func TestPlayheadClamping(t *testing.T) {
	f := newFixture(t)
	_ = f.eng.SetCurrentTemplate(t.Context(), f.template.ID)

	f.eng.SetPlayhead(-50)
	if f.eng.Transport().Playhead != 0 {
		t.Errorf("playhead = %d, want clamp to 0", f.eng.Transport().Playhead)
	}
	f.eng.SetPlayhead(999_999)
	if got := f.eng.Transport().Playhead; got != f.template.PhaseDuration(document.PhaseIn) {
		t.Errorf("playhead = %d, want clamp to phase duration", got)
	}
}

func TestPlayRestartNearEnd(t *testing.T) {
	f := newFixture(t)
	_ = f.eng.SetCurrentTemplate(t.Context(), f.template.ID)
	dur := f.template.PhaseDuration(document.PhaseIn)

	// Mid-phase: play resumes in place.
	f.eng.SetPlayhead(dur / 2)
	f.eng.Play()
	if got := f.eng.Transport().Playhead; got != dur/2 {
		t.Errorf("playhead = %d, want resume at %d", got, dur/2)
	}

	// Within the restart threshold of the end: play restarts from 0.
	f.eng.Stop()
	f.eng.SetPlayhead(dur - playRestartThreshold/2)
	f.eng.Play()
	if got := f.eng.Transport().Playhead; got != 0 {
		t.Errorf("playhead = %d, want restart at 0", got)
	}
}

func TestStopResetsPlayhead(t *testing.T) {
	f := newFixture(t)
	f.eng.SetPlayhead(1000)
	f.eng.Play()
	f.eng.Stop()
	tr := f.eng.Transport()
	if tr.Playing || tr.Playhead != 0 {
		t.Errorf("transport after stop = %+v", tr)
	}
}

func TestTickStopsAtPhaseEnd(t *testing.T) {
	f := newFixture(t)
	_ = f.eng.SetCurrentTemplate(t.Context(), f.template.ID)
	dur := f.template.PhaseDuration(document.PhaseIn)

	f.eng.Play()
	f.eng.Tick(dur + 1000)
	tr := f.eng.Transport()
	if tr.Playing {
		t.Error("playback should stop at the phase end")
	}
	if tr.Playhead != dur {
		t.Errorf("playhead = %d, want %d", tr.Playhead, dur)
	}
}

func TestFullPreviewChainsPhases(t *testing.T) {
	f := newFixture(t)
	_ = f.eng.SetCurrentTemplate(t.Context(), f.template.ID)
	in := f.template.PhaseDuration(document.PhaseIn)

	f.eng.PlayFullPreview()
	f.eng.Tick(in + 100)
	tr := f.eng.Transport()
	if tr.Phase != document.PhaseLoop || tr.Playhead != 100 {
		t.Fatalf("after in phase: %+v", tr)
	}

	loop := f.template.PhaseDuration(document.PhaseLoop)
	out := f.template.PhaseDuration(document.PhaseOut)
	f.eng.Tick(loop - 100 + out)
	tr = f.eng.Transport()
	if tr.Phase != document.PhaseOut || tr.Playing || tr.Playhead != out {
		t.Errorf("after full preview: %+v", tr)
	}
}

func TestAddAnimationDefaultsToPhaseDuration(t *testing.T) {
	f := newFixture(t)
	_ = f.eng.SetPhaseDuration(f.template.ID, document.PhaseIn, 2_000)
	el := f.addElement(t, document.ElementText, "")

	anim, err := f.eng.AddAnimation(el.ID, document.PhaseIn)
	if err != nil {
		t.Fatalf("AddAnimation: %v", err)
	}
	if anim.Duration != 2_000 {
		t.Errorf("duration = %d, want phase duration 2000", anim.Duration)
	}
	if _, err := f.eng.AddAnimation(el.ID, document.Phase("warmup")); err == nil {
		t.Error("unknown phase should fail")
	}
	if _, err := f.eng.AddAnimation("nope", document.PhaseIn); err == nil {
		t.Error("unknown element should fail")
	}
}

func TestDeleteAnimationCascadesKeyframes(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	anim, _ := f.eng.AddAnimation(el.ID, document.PhaseIn)
	kf, _ := f.eng.AddKeyframe(anim.ID, 0, map[string]float64{document.PropOpacity: 0})

	if err := f.eng.DeleteAnimation(anim.ID); err != nil {
		t.Fatalf("DeleteAnimation: %v", err)
	}
	if f.eng.State().KeyframeByID(kf.ID) != nil {
		t.Error("keyframe survived animation deletion")
	}
	if len(f.eng.pending.Keyframes) != 1 || len(f.eng.pending.Animations) != 1 {
		t.Errorf("pending = %+v", f.eng.pending)
	}
}

func TestKeyframeNames(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	_ = f.eng.UpdateElement(el.ID, func(e *document.Element) { e.Name = "Home Team Score!" })
	anim, _ := f.eng.AddAnimation(el.ID, document.PhaseIn)

	k1, _ := f.eng.AddKeyframe(anim.ID, 0, map[string]float64{document.PropOpacity: 0})
	k2, _ := f.eng.AddKeyframe(anim.ID, 500, map[string]float64{document.PropOpacity: 1})
	if k1.Name != "home_team_score_key_1" {
		t.Errorf("first keyframe name = %q", k1.Name)
	}
	if k2.Name != "home_team_score_key_2" {
		t.Errorf("second keyframe name = %q", k2.Name)
	}
}

func TestUpdateKeyframeMergesProperties(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	anim, _ := f.eng.AddAnimation(el.ID, document.PhaseIn)
	kf, _ := f.eng.AddKeyframe(anim.ID, 0, map[string]float64{document.PropOpacity: 0})

	pos := 250
	if err := f.eng.UpdateKeyframe(kf.ID, &pos, map[string]float64{document.PropScaleX: 2}); err != nil {
		t.Fatalf("UpdateKeyframe: %v", err)
	}
	if kf.Position != 250 {
		t.Errorf("position = %d", kf.Position)
	}
	if len(kf.Properties) != 2 || kf.Properties[document.PropOpacity] != 0 || kf.Properties[document.PropScaleX] != 2 {
		t.Errorf("properties not merged additively: %v", kf.Properties)
	}
}

func TestRemoveKeyframePropertyDeletesEmptyKeyframe(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	anim, _ := f.eng.AddAnimation(el.ID, document.PhaseIn)
	kf, _ := f.eng.AddKeyframe(anim.ID, 0, map[string]float64{
		document.PropOpacity: 0,
		document.PropScaleX:  1,
	})
	_ = f.eng.SelectKeyframe(kf.ID)

	if err := f.eng.RemoveKeyframeProperty(kf.ID, document.PropOpacity); err != nil {
		t.Fatalf("RemoveKeyframeProperty: %v", err)
	}
	if f.eng.State().KeyframeByID(kf.ID) == nil {
		t.Fatal("keyframe with remaining properties must survive")
	}

	if err := f.eng.RemoveKeyframeProperty(kf.ID, document.PropScaleX); err != nil {
		t.Fatalf("RemoveKeyframeProperty: %v", err)
	}
	if f.eng.State().KeyframeByID(kf.ID) != nil {
		t.Error("emptied keyframe must be removed")
	}
	if f.eng.SelectedKeyframe() != "" {
		t.Error("removed keyframe must be deselected")
	}
	if len(f.eng.pending.Keyframes) != 1 {
		t.Errorf("pending keyframes = %v", f.eng.pending.Keyframes)
	}

	if err := f.eng.RemoveKeyframeProperty(kf.ID, document.PropOpacity); err == nil {
		t.Error("removing from a gone keyframe should fail")
	}
}

func TestSampleValue(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	anim, _ := f.eng.AddAnimation(el.ID, document.PhaseIn)
	_, _ = f.eng.AddKeyframe(anim.ID, 0, map[string]float64{document.PropOpacity: 0})
	_, _ = f.eng.AddKeyframe(anim.ID, 1000, map[string]float64{document.PropOpacity: 1})

	cases := []struct {
		at   int
		want float64
	}{
		{-100, 0}, // before first keyframe: first value
		{0, 0},
		{500, 0.5}, // linear midpoint
		{1000, 1},
		{5000, 1}, // past last keyframe: last value
	}
	for _, tc := range cases {
		got, ok := f.eng.SampleValue(el.ID, document.PropOpacity, document.PhaseIn, tc.at)
		if !ok {
			t.Fatalf("SampleValue(%d): no value", tc.at)
		}
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("SampleValue(%d) = %v, want %v", tc.at, got, tc.want)
		}
	}

	if _, ok := f.eng.SampleValue(el.ID, document.PropRotation, document.PhaseIn, 0); ok {
		t.Error("unanimated property should report no value")
	}
	if _, ok := f.eng.SampleValue(el.ID, document.PropOpacity, document.PhaseOut, 0); ok {
		t.Error("wrong phase should report no value")
	}
}

func TestEasingFuncFallsBackToLinear(t *testing.T) {
	fn := EasingFunc("no-such-easing")
	if got := fn(5, 0, 10, 10); got != 5 {
		t.Errorf("fallback easing(5 of 10) = %v, want linear 5", got)
	}
}
