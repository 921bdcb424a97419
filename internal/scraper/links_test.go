package scraper

import (
	"os"
	"strings"
	"testing"
)

const site = "https://www.troopwebhost.org/"

func TestExtractLinks_Fixture(t *testing.T) {
	data, err := os.ReadFile("testdata/listing.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	links := ExtractLinks(string(data), site)

	expected := []Link{
		{URL: site + "FormDetail.aspx?Form_ID=182&ID=55", Title: "Campout (02/14/26)"},
		{URL: site + "FormDetail.aspx?Form_ID=182&ID=56", Title: "Troop Meeting"},
		{URL: site + "FormDetail.aspx?Form_ID=40&ID=58", Title: "Permission Slip"},
		{URL: site + "FormDetail.aspx?Form_ID=182&ID=59", Title: "Absolute"},
		{URL: site + "FormDetail.aspx?Form_ID=182&ID=57", Title: "Court of Honor (03/01/26)"},
		{URL: site + "FormDetail.aspx?Form_ID=182&ID=77", Title: ""},
	}

	if len(links) != len(expected) {
		t.Fatalf("expected %d links, got %d: %+v", len(expected), len(links), links)
	}
	for i, want := range expected {
		if links[i] != want {
			t.Errorf("link %d = %+v, want %+v", i, links[i], want)
		}
	}
}

func TestExtractLinks_AnchorAndOnclickDedup(t *testing.T) {
	html := `<html><body>
		<a href="FormDetail.aspx?Form_ID=182&ID=55">Spring Campout</a>
		<div onclick="LinkTo('FormDetail.aspx?Form_ID=182&ID=55','')">Other title</div>
	</body></html>`

	links := ExtractLinks(html, site)

	if len(links) != 1 {
		t.Fatalf("expected exactly one link, got %d: %+v", len(links), links)
	}
	if links[0].URL != site+"FormDetail.aspx?Form_ID=182&ID=55" {
		t.Errorf("URL = %q", links[0].URL)
	}
	if links[0].Title != "Spring Campout" {
		t.Errorf("Title = %q, want first occurrence's title", links[0].Title)
	}
}

func TestExtractLinks_OnclickFirst(t *testing.T) {
	// The anchor pass runs before the generic onclick pass, so an anchor
	// later in the document still wins the title.
	html := `<div onclick="LinkTo('FormDetail.aspx?ID=9','')">Row title</div>
		<a href="FormDetail.aspx?ID=9">Anchor title</a>`

	links := ExtractLinks(html, site)
	if len(links) != 1 || links[0].Title != "Anchor title" {
		t.Fatalf("unexpected links: %+v", links)
	}
}

func TestExtractLinks_RawScanOnly(t *testing.T) {
	html := `<script>window.open("FormDetail.aspx?Form_ID=182&ID=101")</script>`

	links := ExtractLinks(html, site)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %+v", links)
	}
	if links[0].Title != "" {
		t.Errorf("raw scan links have no title, got %q", links[0].Title)
	}
}

func TestExtractLinks_Empty(t *testing.T) {
	tests := []string{
		"",
		"<html><body><p>No events scheduled</p></body></html>",
		"<a href=",
		`<a href="FormDetail.aspx?Form_ID=182">missing id</a>`,
	}

	for _, html := range tests {
		links := ExtractLinks(html, site)
		if links == nil {
			t.Errorf("ExtractLinks(%q) returned nil, want empty slice", html)
		}
		if len(links) != 0 {
			t.Errorf("ExtractLinks(%q) = %+v, want none", html, links)
		}
	}
}

func TestExtractLinks_DefaultSite(t *testing.T) {
	links := ExtractLinks(`<a href="/FormDetail.aspx?ID=3">x</a>`, "")
	if len(links) != 1 || links[0].URL != DefaultSiteURL+"FormDetail.aspx?ID=3" {
		t.Fatalf("unexpected links: %+v", links)
	}
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"FormDetail.aspx?Form_ID=182&ID=55", site + "FormDetail.aspx?Form_ID=182&ID=55", true},
		{"javascript:LinkTo('FormDetail.aspx?Form_ID=182&ID=55','')", site + "FormDetail.aspx?Form_ID=182&ID=55", true},
		{"LinkTo('formdetail.aspx?id=12','')", site + "formdetail.aspx?id=12", true},
		{"  FormDetail.aspx?ID=7#top ", site + "FormDetail.aspx?ID=7#top", true},
		{"FormDetail.aspx?Form_ID=182", "", false},
		{"FormDetail.aspx?ID=abc", "", false},
		{"FormList.aspx?ID=5", "", false},
		{"#", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := NormalizeRef(tt.ref, site)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeRef(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeRef_SiteWithPath(t *testing.T) {
	tests := []struct {
		site string
		ref  string
		want string
	}{
		{"https://example.org/troop/", "FormDetail.aspx?ID=5", "https://example.org/troop/FormDetail.aspx?ID=5"},
		{"https://example.org/troop/", "/FormDetail.aspx?ID=5", "https://example.org/FormDetail.aspx?ID=5"},
		{"https://example.org/troop/List.aspx", "FormDetail.aspx?ID=5", "https://example.org/troop/FormDetail.aspx?ID=5"},
	}

	for _, tt := range tests {
		got, ok := NormalizeRef(tt.ref, tt.site)
		if !ok || got != tt.want {
			t.Errorf("NormalizeRef(%q, %q) = %q, %v; want %q", tt.ref, tt.site, got, ok, tt.want)
		}
	}
}

func TestQueryParam(t *testing.T) {
	u := site + "FormDetail.aspx?Form_ID=182&ID=55"
	if got := QueryParam(u, "ID"); got != "55" {
		t.Errorf("ID = %q", got)
	}
	if got := QueryParam(u, "Form_ID"); got != "182" {
		t.Errorf("Form_ID = %q", got)
	}
	if got := QueryParam("%zz", "ID"); got != "" {
		t.Errorf("unparseable URL should yield empty, got %q", got)
	}
}

func TestFlatten(t *testing.T) {
	text, segments := Flatten(`<div><p>One</p><p>  Two
		three</p><script>var hidden = 1;</script><style>p{}</style><!-- note --></div>`)

	if text != "One Two three" {
		t.Errorf("text = %q", text)
	}
	if len(segments) != 2 || segments[1] != "Two three" {
		t.Errorf("runs = %q", segments)
	}

	_, runs := Flatten(`<p>Meet at <b>Camp</b> <i>Resolute</i></p><div>Bring water</div>`)
	if len(runs) != 2 || runs[0] != "Meet at Camp Resolute" || runs[1] != "Bring water" {
		t.Errorf("runs = %q", runs)
	}
	if strings.Contains(text, "hidden") {
		t.Error("script contents should not be text")
	}
}
