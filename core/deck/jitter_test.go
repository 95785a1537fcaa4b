package deck

import (
	"math/rand/v2"
	"reflect"
	"strconv"
	"testing"
)

const jitterDeck = `Simulation
  Timestep Sizes = 0.1
End

Solver 1
  Active Solvers(1) = 1
  Equation = Heat Equation
End

Boundary Condition 1
  Target Boundaries(2) = 1 2
End
`

func TestJitterCandidates(t *testing.T) {
	doc := Parse(jitterDeck, "")
	got := JitterCandidates(doc)
	want := []JitterCandidate{{Section: 0, Line: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("JitterCandidates() = %v, want %v", got, want)
	}
}

func TestJitter(t *testing.T) {
	doc := Parse(jitterDeck, "case.sif")
	before := Render(doc)

	rng := rand.New(rand.NewPCG(42, 0))
	out, ok := Jitter(doc, rng, DefaultJitter)
	if !ok {
		t.Fatal("Jitter() reported no change")
	}
	if Render(doc) != before {
		t.Error("Jitter() modified its input")
	}
	if out.Meta.SourceFile != "case.sif" {
		t.Errorf("SourceFile = %q, want case.sif", out.Meta.SourceFile)
	}

	v, found := out.Sections[0].Lookup("Timestep Sizes")
	if !found {
		t.Fatal("Timestep Sizes missing after jitter")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		t.Fatalf("jittered value %q is not a number: %v", v, err)
	}
	if f < 0.095 || f > 0.105 {
		t.Errorf("jittered value = %v, want within 5%% of 0.1", f)
	}

	// Protected lines are untouched.
	if v, _ := out.Sections[1].Lookup("Active Solvers(1)"); v != "1" {
		t.Errorf("Active Solvers = %q, want 1", v)
	}
	if v, _ := out.Sections[2].Lookup("Target Boundaries(2)"); v != "1 2" {
		t.Errorf("Target Boundaries = %q, want 1 2", v)
	}
}

func TestJitterDeterministic(t *testing.T) {
	doc := Parse(jitterDeck, "")
	a, _ := Jitter(doc, rand.New(rand.NewPCG(7, 7)), 0.2)
	b, _ := Jitter(doc, rand.New(rand.NewPCG(7, 7)), 0.2)
	if Render(a) != Render(b) {
		t.Errorf("same seed gave different output:\n%s\n%s", Render(a), Render(b))
	}
}

func TestJitterNoCandidates(t *testing.T) {
	doc := Parse("Solver 1\n  Active Solvers(1) = 1\nEnd\n! 42\n", "")
	out, ok := Jitter(doc, rand.New(rand.NewPCG(1, 1)), DefaultJitter)
	if ok || out != nil {
		t.Errorf("Jitter() = %v, %v; want nil, false", out, ok)
	}
}

func TestJitterReplacesFirstLiteralOnly(t *testing.T) {
	doc := Parse("Material 1\n  Density = 1000 2000\nEnd\n", "")
	out, ok := Jitter(doc, rand.New(rand.NewPCG(3, 3)), 0.01)
	if !ok {
		t.Fatal("Jitter() reported no change")
	}
	nums := ExtractNumbers(out.Sections[0].Lines[0].Value)
	if len(nums) != 2 || nums[1] != 2000 {
		t.Errorf("values = %v, want second literal 2000 untouched", nums)
	}
	if nums[0] < 990 || nums[0] > 1010 {
		t.Errorf("first literal = %v, want within 1%% of 1000", nums[0])
	}
}

func TestClone(t *testing.T) {
	doc := Parse(sampleDeck, "case.sif")
	c := doc.Clone()
	if !reflect.DeepEqual(doc, c) {
		t.Fatal("Clone() is not equal to the original")
	}

	c.Sections[1].Lines[0].Raw = "changed"
	*c.Sections[3].Tag = "9"
	c.Sections[2].Lines[2].Continuations[0] = "9.9"
	c.Extensions["1"]["Reference Norm"] = "2.0"
	c.Keywords[0] = "changed"
	c.Meta.Counts["Solver"] = 99

	if doc.Sections[1].Lines[0].Raw == "changed" {
		t.Error("line Raw shared with clone")
	}
	if doc.Sections[3].TagString() != "2" {
		t.Error("tag shared with clone")
	}
	if doc.Sections[2].Lines[2].Continuations[0] != "0.1" {
		t.Error("continuations shared with clone")
	}
	if doc.Extensions["1"]["Reference Norm"] != "1.0" {
		t.Error("extensions shared with clone")
	}
	if doc.Keywords[0] == "changed" {
		t.Error("keywords shared with clone")
	}
	if doc.Meta.Counts["Solver"] == 99 {
		t.Error("meta counts shared with clone")
	}
}

func TestCloneNil(t *testing.T) {
	var d *Document
	if d.Clone() != nil {
		t.Error("nil.Clone() != nil")
	}
}
