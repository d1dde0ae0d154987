package processor

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ZaguanLabs/lingoflow/document"
)

func TestHTMLProcessor_Extract_Basic(t *testing.T) {
	p := NewHTMLProcessor()

	parsed, units, err := p.Extract(`<div><h1>Hello World</h1><p>Welcome to our site.</p></div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if parsed == nil {
		t.Fatal("parsed should not be nil")
	}

	if !reflect.DeepEqual(units.Keys(), []string{"n0", "n1"}) {
		t.Fatalf("Expected units [n0 n1], got %v", units.Keys())
	}
	if v, _ := units.Get("n0"); v != "Hello World" {
		t.Errorf("Expected 'Hello World', got %q", v)
	}
	if v, _ := units.Get("n1"); v != "Welcome to our site." {
		t.Errorf("Expected 'Welcome to our site.', got %q", v)
	}
}

func TestHTMLProcessor_Extract_IgnoredTags(t *testing.T) {
	p := NewHTMLProcessor()

	_, units, err := p.Extract(`<div>
		<p>Translate me</p>
		<script>doNotTranslate();</script>
		<style>.class { color: red; }</style>
		<code>const x = 1;</code>
		<pre>preformatted</pre>
		<textarea>form input</textarea>
	</div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if units.Len() != 1 {
		t.Fatalf("Expected 1 unit (only 'Translate me'), got %d: %v", units.Len(), units.Keys())
	}
	if v, _ := units.Get("n0"); v != "Translate me" {
		t.Errorf("Expected 'Translate me', got %q", v)
	}
}

func TestHTMLProcessor_Extract_NoTranslateMarkers(t *testing.T) {
	p := NewHTMLProcessor()

	_, units, err := p.Extract(`<div>
		<p data-no-translate>Keep this</p>
		<p translate="no">And this</p>
		<p>Translate this</p>
	</div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if units.Len() != 1 {
		t.Fatalf("Expected 1 unit, got %d", units.Len())
	}
	if v, _ := units.Get("n0"); v != "Translate this" {
		t.Errorf("Expected 'Translate this', got %q", v)
	}
}

func TestHTMLProcessor_Extract_Deduplication(t *testing.T) {
	p := NewHTMLProcessor()

	_, units, err := p.Extract(`<div><p>Hello</p><p> Hello </p><p>Hello</p></div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if units.Len() != 1 {
		t.Fatalf("Expected 1 unique unit, got %d", units.Len())
	}
}

func TestHTMLProcessor_Apply_Fragment(t *testing.T) {
	p := NewHTMLProcessor()

	parsed, _, err := p.Extract(`<div><p>Hello</p><p>World</p></div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	translated := document.NewFlatMapping()
	translated.Set("n0", "Hola")
	translated.Set("n1", "Mundo")

	result, err := p.Apply(parsed, translated, "es")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := `<div><p>Hola</p><p>Mundo</p></div>`
	if result != want {
		t.Errorf("Expected %s, got %s", want, result)
	}
}

func TestHTMLProcessor_Apply_FullPageSetsDirection(t *testing.T) {
	p := NewHTMLProcessor()

	parsed, _, err := p.Extract(`<!DOCTYPE html><html><head><title>Hi</title></head><body><p>Hello</p></body></html>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	translated := document.NewFlatMapping()
	translated.Set("n0", "مرحبا")
	translated.Set("n1", "أهلا")

	result, err := p.Apply(parsed, translated, "ar_SA")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !strings.Contains(result, `lang="ar-SA"`) {
		t.Errorf("Expected lang attribute, got: %s", result)
	}
	if !strings.Contains(result, `dir="rtl"`) {
		t.Errorf("Expected dir='rtl' for Arabic, got: %s", result)
	}
	if !strings.Contains(result, "<title>مرحبا</title>") {
		t.Errorf("Expected translated title, got: %s", result)
	}
}

func TestHTMLProcessor_Apply_MissingUnitKeepsSource(t *testing.T) {
	p := NewHTMLProcessor()

	parsed, _, err := p.Extract(`<p>Hello</p><p>World</p>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	translated := document.NewFlatMapping()
	translated.Set("n1", "Mundo")

	result, err := p.Apply(parsed, translated, "es")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !strings.Contains(result, "Hello") || !strings.Contains(result, "Mundo") {
		t.Errorf("Expected source text kept for missing unit, got: %s", result)
	}
}

func TestHTMLProcessor_Apply_DuplicateTexts(t *testing.T) {
	p := NewHTMLProcessor()

	parsed, units, err := p.Extract(`<div><p>Hello</p><p>Hello</p></div>`)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if units.Len() != 1 {
		t.Fatalf("Expected 1 unit, got %d", units.Len())
	}

	translated := document.NewFlatMapping()
	translated.Set("n0", "Hola")

	result, err := p.Apply(parsed, translated, "es")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if count := strings.Count(result, "Hola"); count != 2 {
		t.Errorf("Expected 2 instances of 'Hola', got %d in: %s", count, result)
	}
}

func TestHTMLProcessor_Apply_InvalidParsed(t *testing.T) {
	p := NewHTMLProcessor()
	if _, err := p.Apply("not parsed", document.NewFlatMapping(), "es"); err == nil {
		t.Error("Expected error for foreign parsed value")
	}
}

func TestHTMLProcessor_ContentType(t *testing.T) {
	p := NewHTMLProcessor()
	if p.ContentType() != "html" {
		t.Errorf("Expected 'html', got %q", p.ContentType())
	}
}

func TestPreserveWhitespace(t *testing.T) {
	tests := []struct {
		original   string
		translated string
		expected   string
	}{
		{"Hello", "Hola", "Hola"},
		{"  Hello", "Hola", "  Hola"},
		{"Hello  ", "Hola", "Hola  "},
		{"  Hello  ", " Hola\n", "  Hola  "},
		{"\n\tHello\n", "Hola", "\n\tHola\n"},
		{"   ", "Hola", "   "},
	}

	for _, tt := range tests {
		result := preserveWhitespace(tt.original, tt.translated)
		if result != tt.expected {
			t.Errorf("preserveWhitespace(%q, %q) = %q, want %q",
				tt.original, tt.translated, result, tt.expected)
		}
	}
}

func TestHTMLProcessor_WhitespaceOnlyContent(t *testing.T) {
	p := NewHTMLProcessor()

	for _, in := range []string{`<div></div>`, `<div>   </div>`} {
		_, units, err := p.Extract(in)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if units.Len() != 0 {
			t.Errorf("Expected 0 units for %q, got %d", in, units.Len())
		}
	}
}
