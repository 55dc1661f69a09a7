package rod

import "testing"

func TestSnapshotNode_Accessors(t *testing.T) {
	n := snapshotNode{
		text:  "hello",
		html:  "<b>hello</b>",
		inner: "hello",
		attrs: map[string]string{"href": "/x"},
	}
	if n.Text() != "hello" {
		t.Fatalf("Text() = %q", n.Text())
	}
	if n.OuterHTML() != "<b>hello</b>" {
		t.Fatalf("OuterHTML() = %q", n.OuterHTML())
	}
	if n.InnerHTML() != "hello" {
		t.Fatalf("InnerHTML() = %q", n.InnerHTML())
	}
	if v, ok := n.Attr("href"); !ok || v != "/x" {
		t.Fatalf("Attr(href) = (%q, %v)", v, ok)
	}
	if _, ok := n.Attr("missing"); ok {
		t.Fatal("expected Attr(missing) to report absence")
	}
}
