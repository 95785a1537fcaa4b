package deck

import (
	"strings"
	"testing"
)

// FuzzParseRender checks that parsing never panics and that rendering
// reaches a fixed point after one round trip.
func FuzzParseRender(f *testing.F) {
	f.Add(sampleDeck)
	f.Add(jitterDeck)
	f.Add("Simulation\nMax Output Level = 5\nEnd\n")
	f.Add("Solver 1 :: Reference Norm = 1.0\n")
	f.Add("End\nEnd\nHeader\n  x\n    y\nBody Force\n")
	f.Add("Material 1\n  K(2) = Real\n    1 2\r\n    3 4\rEnd")
	f.Add("= 5\n::\nSolver 1 ::\n# only\n!\n")
	f.Add("")

	f.Fuzz(func(t *testing.T, text string) {
		doc := Parse(text, "fuzz.sif")
		first := Render(doc)
		if !strings.HasSuffix(first, "\n") {
			t.Fatalf("Render() does not end with a newline: %q", first)
		}
		second := Render(Parse(first, "fuzz.sif"))
		third := Render(Parse(second, "fuzz.sif"))
		if second != third {
			t.Fatalf("rendering is not stable:\nsecond: %q\nthird:  %q", second, third)
		}
	})
}
