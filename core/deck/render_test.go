package deck

import (
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want string
	}{
		{
			name: "nil document",
			doc:  nil,
			want: "\n",
		},
		{
			name: "empty document",
			doc:  &Document{},
			want: "\n",
		},
		{
			name: "global only",
			doc: &Document{Sections: []*Section{{
				Name:  GlobalSection,
				Lines: []*Line{{Kind: KindGlobalCommand, Raw: "RUN", Key: "RUN"}},
			}}},
			want: "RUN\n",
		},
		{
			name: "composed header and default terminator",
			doc: &Document{Sections: []*Section{{
				Name:  "Solver",
				Tag:   strPtr("2"),
				Lines: []*Line{{Kind: KindKeyValue, Raw: "  Equation = Heat", Key: "Equation", Value: "Heat"}},
			}}},
			want: "Solver 2\n  Equation = Heat\nEnd\n",
		},
		{
			name: "stale header is recomposed",
			doc: &Document{Sections: []*Section{{
				Name:   "Solver",
				Tag:    strPtr("2"),
				Header: "Solver 1",
			}}},
			want: "Solver 2\nEnd\n",
		},
		{
			name: "recorded spellings are kept",
			doc: &Document{Sections: []*Section{{
				Name:       "Solver",
				Tag:        strPtr("1"),
				Header:     "SOLVER   1",
				Terminator: "end",
			}}},
			want: "SOLVER   1\nend\n",
		},
		{
			name: "continuations are indented",
			doc: &Document{Sections: []*Section{{
				Name: "Material",
				Tag:  strPtr("1"),
				Lines: []*Line{{
					Kind:          KindKeyValue,
					Raw:           "K(2) = Real",
					Key:           "K(2)",
					Value:         "Real",
					Continuations: []string{"1 2", "\t3"},
				}},
			}}},
			want: "Material 1\nK(2) = Real\n  1 2\n\t3\nEnd\n",
		},
		{
			name: "empty tag is omitted",
			doc:  &Document{Sections: []*Section{{Name: "Header", Tag: strPtr("")}}},
			want: "Header\nEnd\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.doc); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderGlobalFraming(t *testing.T) {
	doc := Parse("Check Keywords Warn\nSimulation\nA = 1\nEnd\n", "")
	want := "Check Keywords Warn\n\nSimulation\nA = 1\nEnd\n"
	if got := Render(doc); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderCanonicalInputIsIdentical(t *testing.T) {
	inputs := []string{
		"Simulation\nMax Output Level = 5\nEnd\n",
		"Header\n  Mesh DB \".\" \"mesh\"\nEnd\n\nSimulation\n  Max Output Level = 5\nEnd\n",
		"! comment\nCheck Keywords Warn\n\nBody Force 1\n  Heat Source = 1\nEnd\n",
	}
	for _, in := range inputs {
		if got := Render(Parse(in, "")); got != in {
			t.Errorf("Render(Parse(%q)) = %q", in, got)
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	doc := Parse(sampleDeck, "")
	first := Render(doc)
	for range 5 {
		if got := Render(doc); got != first {
			t.Fatalf("Render() differs between calls:\n%q\n%q", first, got)
		}
	}
	if !strings.HasSuffix(first, "\n") || strings.HasSuffix(first, "\n\n") {
		t.Errorf("Render() must end with exactly one newline: %q", first)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderToError(t *testing.T) {
	doc := Parse(sampleDeck, "")
	if err := RenderTo(failingWriter{}, doc); err == nil {
		t.Error("RenderTo() to a failing writer returned nil error")
	}
}

func TestRenderToMatchesRender(t *testing.T) {
	doc := Parse(sampleDeck, "")
	var sb strings.Builder
	if err := RenderTo(&sb, doc); err != nil {
		t.Fatalf("RenderTo() error = %v", err)
	}
	if sb.String() != Render(doc) {
		t.Errorf("RenderTo() = %q, want %q", sb.String(), Render(doc))
	}
}
