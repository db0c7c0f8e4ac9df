package markdown

import (
	"strings"
	"testing"
)

func TestRenderFullSummary(t *testing.T) {
	got := Render("# Title\n* one\n* two\n> detail")
	want := "<h1>Title</h1>\n<ul>\n<li>one</li>\n<li>two</li>\n</ul>\n" +
		`<p class="expanded-summary">detail</p>`

	if got != want {
		t.Fatalf("unexpected HTML:\ngot  %q\nwant %q", got, want)
	}

	if strings.Count(got, "<ul>") != 1 || strings.Count(got, "<li>") != 2 {
		t.Fatalf("expected one list with two items, got %q", got)
	}

	if strings.Index(got, "</ul>") > strings.Index(got, `<p class="expanded-summary">`) {
		t.Fatalf("expected list to be closed before expanded summary, got %q", got)
	}
}

func TestRenderBoldWithoutList(t *testing.T) {
	got := Render("**bold** text")
	if got != "<strong>bold</strong> text" {
		t.Fatalf("unexpected HTML: %q", got)
	}
}

func TestRenderBoldInsideCaptures(t *testing.T) {
	got := Render("# **Yes**, it works\n* uses **Go** daily")
	want := "<h1><strong>Yes</strong>, it works</h1>\n<ul>\n<li>uses <strong>Go</strong> daily</li>\n</ul>"

	if got != want {
		t.Fatalf("unexpected HTML:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderSeparateListRuns(t *testing.T) {
	got := Render("* a\nplain\n* b")
	want := "<ul>\n<li>a</li>\n</ul>\nplain\n<ul>\n<li>b</li>\n</ul>"

	if got != want {
		t.Fatalf("unexpected HTML:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderBlankLinesKeepListOpen(t *testing.T) {
	got := Render("* a\n\n* b\r\n")
	want := "<ul>\n<li>a</li>\n<li>b</li>\n</ul>"

	if got != want {
		t.Fatalf("unexpected HTML:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderLegacyListItem(t *testing.T) {
	got := Render("  *tight item")
	if got != "<ul>\n<li>tight item</li>\n</ul>" {
		t.Fatalf("unexpected HTML: %q", got)
	}
}

func TestRenderQuoteInsideListItem(t *testing.T) {
	got := Render("* first\n* > detail")
	want := "<ul>\n<li>first</li>\n</ul>\n" + `<p class="expanded-summary">detail</p>`

	if got != want {
		t.Fatalf("unexpected HTML:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderPassThrough(t *testing.T) {
	for _, in := range []string{"## not a heading", "#tag", ">no space", "<em>raw</em>"} {
		if got := Render(in); got != in {
			t.Fatalf("expected %q to pass through, got %q", in, got)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	in := "# T\n* a\n* **b**\n> c\nplain"
	first := Render(in)

	for range 10 {
		if got := Render(in); got != first {
			t.Fatalf("expected identical output, got %q and %q", first, got)
		}
	}
}
