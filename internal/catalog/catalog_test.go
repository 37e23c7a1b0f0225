package catalog

import "testing"

func TestLookupService_ExactMatch(t *testing.T) {
	svc, ok := LookupService("netflix.com")
	if !ok {
		t.Fatal("expected netflix.com to match")
	}
	if svc.Name != "Netflix" || svc.Type != ServiceStreaming {
		t.Errorf("got %+v", svc)
	}
}

func TestLookupService_SubdomainSuffixMatch(t *testing.T) {
	svc, ok := LookupService("mail.netflix.com")
	if !ok {
		t.Fatal("expected subdomain to match via registered-domain or suffix lookup")
	}
	if svc.Name != "Netflix" {
		t.Errorf("got %+v", svc)
	}
}

func TestLookupService_CompoundDomain(t *testing.T) {
	svc, ok := LookupService("aws.amazon.com")
	if !ok {
		t.Fatal("expected aws.amazon.com to match")
	}
	if svc.Name != "AWS" {
		t.Errorf("got %+v, want AWS", svc)
	}
}

func TestLookupService_NoMatch(t *testing.T) {
	_, ok := LookupService("some-random-unlisted-domain.example")
	if ok {
		t.Error("expected no match for unlisted domain")
	}
}

func TestLookupMerchant(t *testing.T) {
	m, ok := LookupMerchant("orders.doordash.com")
	if !ok {
		t.Fatal("expected doordash subdomain to match")
	}
	if m.Category != "food" {
		t.Errorf("category = %q, want food", m.Category)
	}
}

func TestLookupSubscription(t *testing.T) {
	sub, ok := LookupSubscription("spotify.com")
	if !ok {
		t.Fatal("expected spotify.com to match")
	}
	if sub.Category != "streaming" {
		t.Errorf("category = %q, want streaming", sub.Category)
	}
}

func TestCanonicalSenderName(t *testing.T) {
	name, ok := CanonicalSenderName("nytimes.com")
	if !ok || name != "New York Times" {
		t.Errorf("got %q, %v; want %q, true", name, ok, "New York Times")
	}

	_, ok = CanonicalSenderName("unknown-domain.example")
	if ok {
		t.Error("expected no canonical name for unknown domain")
	}
}

func TestIsPromotionalSubdomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"promo.retailer.com", true},
		{"marketing.company.com", true},
		{"newsletter.blog.com", true},
		{"mail.company.com", false},
		{"www.company.com", false},
	}
	for _, tt := range tests {
		if got := IsPromotionalSubdomain(tt.host); got != tt.want {
			t.Errorf("IsPromotionalSubdomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestHumanizeDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"coolstartup.com", "Coolstartup"},
		{"cool-startup.com", "Cool Startup"},
		{"mail.some-blog.com", "Some Blog"},
	}
	for _, tt := range tests {
		if got := HumanizeDomain(tt.domain); got != tt.want {
			t.Errorf("HumanizeDomain(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

func TestKnownCatalogsNonEmpty(t *testing.T) {
	if len(KnownServices()) == 0 {
		t.Error("expected non-empty known services")
	}
	if len(KnownMerchants()) == 0 {
		t.Error("expected non-empty known merchants")
	}
	if len(KnownSubscriptionServices()) == 0 {
		t.Error("expected non-empty known subscription services")
	}
}
