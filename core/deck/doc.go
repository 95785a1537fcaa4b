// Package deck parses and renders section-structured engineering input
// decks such as Elmer solver input files.
//
// Parsing is lenient: it never fails, and every non-blank line of the
// input is kept either as a Line of some Section or as a continuation of
// the Line before it. Lines the classifier cannot place become raw Lines
// and are rendered back verbatim.
//
// # Document Layout
//
//   - Document: ordered Sections plus derived metadata
//   - Section: one "Kind [tag] ... End" block, or the Global pseudo-section
//   - Line: comment, key/value, loose key/value, global command, solver
//     extension or raw text, with indented continuations
//
// # Round Trip
//
// Render is the inverse of Parse. CheckFidelity compares a source with
// its rendering and grades the result with a LossClass:
//
//   - L0: byte-identical
//   - L1: every normalized source line reappears
//   - L2: at least 95% reappear
//   - L3: at least 50% reappear
//   - L4: less
//
// # Example
//
//	doc := deck.Parse(text, "case.sif")
//	out := deck.Render(doc)
//	report := deck.CheckFidelity(text, out)
//
// The vocabulary (section kinds, comment markers, terminator) comes from a
// dialect.Dialect, dialect.Default() unless WithDialect is given.
package deck
