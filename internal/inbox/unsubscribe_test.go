package inbox

import (
	"strings"
	"testing"
)

func TestExtractFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		links  []string
	}{
		{
			name:   "single https target",
			header: "<https://example.com/unsub?id=1>",
			links:  []string{"https://example.com/unsub?id=1"},
		},
		{
			name:   "mailto and https",
			header: "<mailto:unsub@example.com>, <https://example.com/unsub>",
			links:  []string{"mailto:unsub@example.com", "https://example.com/unsub"},
		},
		{
			name:   "garbage token skipped",
			header: "<ftp://example.com/x>, <https://example.com/unsub>",
			links:  []string{"https://example.com/unsub"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractUnsubscribeInfo("ignored body", tt.header)
			if !info.Found {
				t.Fatal("expected Found")
			}
			if info.Method != MethodHeader {
				t.Errorf("method = %s, want header", info.Method)
			}
			if info.Confidence != 0.9 {
				t.Errorf("confidence = %v, want 0.9", info.Confidence)
			}
			if len(info.Links) != len(tt.links) {
				t.Fatalf("links = %v, want %v", info.Links, tt.links)
			}
			for i := range tt.links {
				if info.Links[i] != tt.links[i] {
					t.Errorf("link %d = %q, want %q", i, info.Links[i], tt.links[i])
				}
			}
		})
	}
}

func TestHeaderTakesPrecedenceOverBody(t *testing.T) {
	body := `<html><body><a href="https://body.example.com/unsubscribe">Unsubscribe</a></body></html>`
	info := ExtractUnsubscribeInfo(body, "<https://header.example.com/u>")

	if info.Method != MethodHeader {
		t.Errorf("method = %s, want header", info.Method)
	}
	if len(info.Links) != 1 || info.Links[0] != "https://header.example.com/u" {
		t.Errorf("links = %v, want header link only", info.Links)
	}
}

func TestExtractFromBody(t *testing.T) {
	body := `<html><body>
		<p>Thanks for reading. You can unsubscribe at any time.</p>
		<a href="https://example.com/unsubscribe?u=42">Unsubscribe</a>
		<a href="https://example.com/article">Read more</a>
	</body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if !info.Found {
		t.Fatal("expected Found")
	}
	if info.Method != MethodLink {
		t.Errorf("method = %s, want link", info.Method)
	}
	if len(info.Links) != 1 {
		t.Fatalf("links = %v, want one", info.Links)
	}
	if info.Links[0] != "https://example.com/unsubscribe?u=42" {
		t.Errorf("link = %q", info.Links[0])
	}
	if info.Confidence < 0 || info.Confidence > 1 {
		t.Errorf("confidence %v out of range", info.Confidence)
	}
}

func TestRejectsBadHrefs(t *testing.T) {
	body := `<html><body>
		<a href="#">Unsubscribe</a>
		<a href="javascript:void(0)">Unsubscribe</a>
		<a href="">Unsubscribe</a>
	</body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if info.Found {
		t.Errorf("expected nothing found, got %v", info.Links)
	}
}

func TestDeduplicatesLinks(t *testing.T) {
	body := `<html><body>
		<a href="https://example.com/unsubscribe">Unsubscribe</a>
		<a href="https://example.com/unsubscribe">Click to unsubscribe</a>
	</body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if len(info.Links) != 1 {
		t.Errorf("links = %v, want deduplicated single entry", info.Links)
	}
}

func TestMailtoOnlyBodyIsEmailMethod(t *testing.T) {
	body := `<html><body>
		<a href="mailto:unsub@example.com?subject=unsubscribe">Unsubscribe</a>
	</body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if !info.Found {
		t.Fatal("expected Found")
	}
	if info.Method != MethodEmail {
		t.Errorf("method = %s, want email", info.Method)
	}
}

func TestFormMethod(t *testing.T) {
	body := `<html><body>
		<form action="https://example.com/preferences">
			<p>Click below to unsubscribe from this list</p>
			<button type="submit">Unsubscribe</button>
		</form>
	</body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if !info.Found {
		t.Fatal("expected Found")
	}
	if info.Method != MethodForm {
		t.Errorf("method = %s, want form", info.Method)
	}
}

func TestFoundIffLinks(t *testing.T) {
	info := ExtractUnsubscribeInfo("", "")
	if info.Found || len(info.Links) != 0 {
		t.Errorf("empty input should yield nothing, got %+v", info)
	}

	info = ExtractUnsubscribeInfo("<html><body><p>plain text mail</p></body></html>", "")
	if info.Found {
		t.Errorf("body without candidates should yield Found=false")
	}
}

func TestContentConfidenceScaling(t *testing.T) {
	// Many mentions plus all-https links saturate at 0.5 + 0.3 + 0.2
	body := `<html><body>` + strings.Repeat("<p>unsubscribe</p>", 5) +
		`<a href="https://example.com/unsubscribe">Unsubscribe</a></body></html>`

	info := ExtractUnsubscribeInfo(body, "")
	if !info.Found {
		t.Fatal("expected Found")
	}
	if info.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", info.Confidence)
	}

	// A single mention with a plain http link scores lower
	body = `<html><body><a href="http://example.com/unsubscribe">unsubscribe</a></body></html>`
	info = ExtractUnsubscribeInfo(body, "")
	if info.Confidence >= 0.9 {
		t.Errorf("http-only confidence = %v, want below header confidence", info.Confidence)
	}
}
