// Package catalog holds the immutable, read-only pattern tables used by
// the detectors: known service/merchant/subscription domains and their
// canonical names, plus small helper maps for newsletter sender-name
// resolution. All tables are package-level vars populated once at
// program start and never mutated afterward, so they are safe for
// concurrent read-only use without synchronization.
package catalog

import "strings"

// ServiceType enumerates the account detector's service_type values.
type ServiceType string

const (
	ServiceStreaming      ServiceType = "streaming"
	ServiceEcommerce      ServiceType = "ecommerce"
	ServiceSocial         ServiceType = "social"
	ServiceBanking        ServiceType = "banking"
	ServiceCommunication  ServiceType = "communication"
	ServiceDevelopment    ServiceType = "development"
	ServiceOther          ServiceType = "other"
)

// Service is a catalog entry mapping a sender domain to a canonical
// display name and type, used by the account detector.
type Service struct {
	Name string
	Type ServiceType
}

// Merchant is a catalog entry used by the purchase detector.
type Merchant struct {
	Name     string
	Category string
}

// Subscription is a catalog entry used by the subscription detector.
type Subscription struct {
	Name     string
	Category string
}

// services maps a canonical domain key to its Service entry. Keys are
// lowercase, bare registered domains (no subdomain) — lookup handles
// subdomain and compound-domain matching via Lookup* below.
var services = map[string]Service{
	"netflix.com":      {"Netflix", ServiceStreaming},
	"hulu.com":         {"Hulu", ServiceStreaming},
	"disneyplus.com":   {"Disney+", ServiceStreaming},
	"hbomax.com":       {"HBO Max", ServiceStreaming},
	"max.com":          {"Max", ServiceStreaming},
	"spotify.com":      {"Spotify", ServiceStreaming},
	"amazon.com":       {"Amazon", ServiceEcommerce},
	"ebay.com":         {"eBay", ServiceEcommerce},
	"etsy.com":         {"Etsy", ServiceEcommerce},
	"walmart.com":      {"Walmart", ServiceEcommerce},
	"target.com":       {"Target", ServiceEcommerce},
	"bestbuy.com":      {"Best Buy", ServiceEcommerce},
	"facebook.com":     {"Facebook", ServiceSocial},
	"instagram.com":    {"Instagram", ServiceSocial},
	"twitter.com":      {"Twitter", ServiceSocial},
	"x.com":            {"X", ServiceSocial},
	"linkedin.com":     {"LinkedIn", ServiceSocial},
	"reddit.com":       {"Reddit", ServiceSocial},
	"pinterest.com":    {"Pinterest", ServiceSocial},
	"tiktok.com":       {"TikTok", ServiceSocial},
	"discord.com":      {"Discord", ServiceCommunication},
	"slack.com":        {"Slack", ServiceCommunication},
	"zoom.us":          {"Zoom", ServiceCommunication},
	"whatsapp.com":     {"WhatsApp", ServiceCommunication},
	"telegram.org":     {"Telegram", ServiceCommunication},
	"chase.com":        {"Chase", ServiceBanking},
	"bankofamerica.com": {"Bank of America", ServiceBanking},
	"wellsfargo.com":   {"Wells Fargo", ServiceBanking},
	"capitalone.com":   {"Capital One", ServiceBanking},
	"paypal.com":       {"PayPal", ServiceBanking},
	"venmo.com":        {"Venmo", ServiceBanking},
	"americanexpress.com": {"American Express", ServiceBanking},
	"github.com":       {"GitHub", ServiceDevelopment},
	"gitlab.com":       {"GitLab", ServiceDevelopment},
	"bitbucket.org":    {"Bitbucket", ServiceDevelopment},
	"vercel.com":       {"Vercel", ServiceDevelopment},
	"heroku.com":       {"Heroku", ServiceDevelopment},
	"digitalocean.com": {"DigitalOcean", ServiceDevelopment},
	"aws.amazon.com":   {"AWS", ServiceDevelopment},
	"npmjs.com":        {"npm", ServiceDevelopment},
	"docker.com":       {"Docker", ServiceDevelopment},
	"cloudflare.com":   {"Cloudflare", ServiceDevelopment},
	"google.com":       {"Google", ServiceOther},
	"microsoft.com":    {"Microsoft", ServiceOther},
	"apple.com":        {"Apple", ServiceOther},
	"dropbox.com":      {"Dropbox", ServiceOther},
	"notion.so":        {"Notion", ServiceOther},
	"airbnb.com":       {"Airbnb", ServiceOther},
	"uber.com":         {"Uber", ServiceOther},
	"lyft.com":         {"Lyft", ServiceOther},
	"doordash.com":     {"DoorDash", ServiceOther},
	"grubhub.com":      {"Grubhub", ServiceOther},
}

// merchants maps a registered domain to the purchase detector's
// merchant catalog entry.
var merchants = map[string]Merchant{
	"amazon.com":     {"Amazon", "ecommerce"},
	"ebay.com":       {"eBay", "ecommerce"},
	"etsy.com":       {"Etsy", "ecommerce"},
	"walmart.com":    {"Walmart", "ecommerce"},
	"target.com":     {"Target", "ecommerce"},
	"bestbuy.com":    {"Best Buy", "electronics"},
	"apple.com":      {"Apple", "electronics"},
	"newegg.com":     {"Newegg", "electronics"},
	"homedepot.com":  {"Home Depot", "home"},
	"lowes.com":      {"Lowe's", "home"},
	"wayfair.com":    {"Wayfair", "home"},
	"ikea.com":       {"IKEA", "home"},
	"doordash.com":   {"DoorDash", "food"},
	"ubereats.com":   {"Uber Eats", "food"},
	"grubhub.com":    {"Grubhub", "food"},
	"instacart.com":  {"Instacart", "grocery"},
	"uber.com":       {"Uber", "transport"},
	"lyft.com":       {"Lyft", "transport"},
	"delta.com":      {"Delta Air Lines", "travel"},
	"united.com":     {"United Airlines", "travel"},
	"airbnb.com":     {"Airbnb", "travel"},
	"booking.com":    {"Booking.com", "travel"},
	"expedia.com":    {"Expedia", "travel"},
	"nike.com":       {"Nike", "apparel"},
	"zappos.com":     {"Zappos", "apparel"},
}

// subscriptions maps a registered domain to the subscription detector's
// catalog entry.
var subscriptions = map[string]Subscription{
	"netflix.com":    {"Netflix", "streaming"},
	"hulu.com":       {"Hulu", "streaming"},
	"disneyplus.com": {"Disney+", "streaming"},
	"hbomax.com":     {"HBO Max", "streaming"},
	"max.com":        {"Max", "streaming"},
	"spotify.com":    {"Spotify", "streaming"},
	"applemusic.com": {"Apple Music", "streaming"},
	"youtube.com":    {"YouTube Premium", "streaming"},
	"paramountplus.com": {"Paramount+", "streaming"},
	"peacocktv.com":  {"Peacock", "streaming"},
	"adobe.com":      {"Adobe Creative Cloud", "software"},
	"microsoft.com":  {"Microsoft 365", "software"},
	"dropbox.com":    {"Dropbox", "software"},
	"github.com":     {"GitHub", "software"},
	"notion.so":      {"Notion", "software"},
	"1password.com":  {"1Password", "software"},
	"lastpass.com":   {"LastPass", "software"},
	"canva.com":      {"Canva", "software"},
	"nytimes.com":    {"New York Times", "news"},
	"wsj.com":        {"Wall Street Journal", "news"},
	"washingtonpost.com": {"Washington Post", "news"},
	"economist.com":  {"The Economist", "news"},
	"medium.com":     {"Medium", "news"},
	"peloton.com":    {"Peloton", "fitness"},
	"planetfitness.com": {"Planet Fitness", "fitness"},
	"strava.com":     {"Strava", "fitness"},
	"calm.com":       {"Calm", "fitness"},
	"headspace.com":  {"Headspace", "fitness"},
	"audible.com":    {"Audible", "other"},
	"patreon.com":    {"Patreon", "other"},
	"substack.com":   {"Substack", "other"},
	"linkedin.com":   {"LinkedIn Premium", "other"},
	"amazon.com":     {"Amazon Prime", "other"},
	"costco.com":     {"Costco Membership", "other"},
}

// canonicalSenderNames resolves a sender domain to a human-facing name
// for the newsletter detector, for domains whose mechanical
// humanization ("nytimes" -> "Nytimes") would look wrong.
var canonicalSenderNames = map[string]string{
	"nytimes.com":    "New York Times",
	"wsj.com":        "Wall Street Journal",
	"washingtonpost.com": "Washington Post",
	"bbc.co.uk":      "BBC",
	"bbc.com":        "BBC",
	"npr.org":        "NPR",
	"cnn.com":        "CNN",
	"theverge.com":   "The Verge",
	"techcrunch.com": "TechCrunch",
	"arstechnica.com": "Ars Technica",
	"producthunt.com": "Product Hunt",
	"hackernews.com": "Hacker News",
}

// PromotionalSubdomainPrefixes lists subdomain labels (first label of
// the hostname) that mark a sender as promotional/marketing traffic,
// independent of catalog membership.
var PromotionalSubdomainPrefixes = []string{
	"promo", "promotions", "marketing", "newsletter", "newsletters",
	"offers", "deals", "news", "mailer", "campaigns", "info",
}

// registeredDomain returns the last two labels of a hostname
// ("mail.netflix.com" -> "netflix.com"), which is what the catalog
// tables are keyed on. Hosts with two or fewer labels are returned
// unchanged.
func registeredDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// lookupPrecedence implements the spec §9 lookup order: exact domain
// match, then suffix match (domain ends with "."+key), then substring
// match against the label portion (the part of the domain before the
// first dot) — in that fixed order, so results stay stable as the
// catalog grows.
func lookupPrecedence[T any](domain string, table map[string]T) (T, bool) {
	var zero T
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return zero, false
	}

	if v, ok := table[domain]; ok {
		return v, true
	}

	reg := registeredDomain(domain)
	if reg != domain {
		if v, ok := table[reg]; ok {
			return v, true
		}
	}

	for key, v := range table {
		if strings.HasSuffix(domain, "."+key) {
			return v, true
		}
	}

	label := domain
	if idx := strings.Index(domain, "."); idx > 0 {
		label = domain[:idx]
	}
	for key, v := range table {
		keyLabel := key
		if idx := strings.Index(key, "."); idx > 0 {
			keyLabel = key[:idx]
		}
		if keyLabel != "" && strings.Contains(label, keyLabel) {
			return v, true
		}
	}

	return zero, false
}

// LookupService finds the catalog Service entry for a sender domain,
// tolerating subdomains ("mail.netflix.com" -> netflix.com entry) and
// compound domains ("aws.amazon.com" -> amazon.com entry unless a more
// specific exact key like "aws.amazon.com" itself exists).
func LookupService(domain string) (Service, bool) {
	return lookupPrecedence(domain, services)
}

// LookupMerchant finds the catalog Merchant entry for a sender domain.
func LookupMerchant(domain string) (Merchant, bool) {
	return lookupPrecedence(domain, merchants)
}

// LookupSubscription finds the catalog Subscription entry for a sender
// domain.
func LookupSubscription(domain string) (Subscription, bool) {
	return lookupPrecedence(domain, subscriptions)
}

// CanonicalSenderName returns a known display name for a sender domain,
// if the catalog has one.
func CanonicalSenderName(domain string) (string, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	name, ok := canonicalSenderNames[domain]
	return name, ok
}

// KnownServices returns the canonical display names of every service
// in the catalog, for AccountDetector.known_services().
func KnownServices() []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return names
}

// KnownMerchants returns the canonical display names of every merchant
// in the catalog, for PurchaseDetector.known_merchants().
func KnownMerchants() []string {
	names := make([]string, 0, len(merchants))
	for _, m := range merchants {
		names = append(names, m.Name)
	}
	return names
}

// MerchantCategory resolves a merchant's canonical display name back to
// its catalog category, for PurchaseDetector.category(merchant) — the
// one lookup direction the domain-keyed merchants table doesn't serve
// directly.
func MerchantCategory(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range merchants {
		if strings.ToLower(m.Name) == name {
			return m.Category, true
		}
	}
	return "", false
}

// KnownSubscriptionServices returns the canonical display names of
// every subscription entry, for SubscriptionDetector.known_services().
func KnownSubscriptionServices() []string {
	names := make([]string, 0, len(subscriptions))
	for _, s := range subscriptions {
		names = append(names, s.Name)
	}
	return names
}

// IsPromotionalSubdomain reports whether a hostname's first label
// matches a known marketing-subdomain prefix.
func IsPromotionalSubdomain(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	label := host
	if idx := strings.Index(host, "."); idx > 0 {
		label = host[:idx]
	}
	for _, prefix := range PromotionalSubdomainPrefixes {
		if label == prefix || strings.HasPrefix(label, prefix+"-") || strings.HasPrefix(label, prefix+".") {
			return true
		}
	}
	return false
}

// HumanizeDomain derives a readable name from a bare domain when no
// catalog or canonical-name entry exists: takes the registered domain's
// label, splits camelCase and hyphens into words, and title-cases them.
func HumanizeDomain(domain string) string {
	reg := registeredDomain(domain)
	label := reg
	if idx := strings.Index(reg, "."); idx > 0 {
		label = reg[:idx]
	}

	var words []string
	var current strings.Builder
	runes := []rune(label)
	for i, r := range runes {
		if r == '-' || r == '_' {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}
		if i > 0 && isUpper(r) && !isUpper(runes[i-1]) {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
