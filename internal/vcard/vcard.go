// Package vcard assembles vCard 3.0 payloads from a card document. The one
// Encode implementation serves both the contact-file download and the QR
// auto mode, so the two can never drift into different formats.
package vcard

import (
	"strings"

	"cardsmith/api/internal/card"
)

// Known social platforms and their profile URL prefixes. Values that are
// already absolute URLs are emitted untouched.
var profilePrefixes = map[string]string{
	"github":    "https://github.com/",
	"twitter":   "https://twitter.com/",
	"x":         "https://x.com/",
	"instagram": "https://instagram.com/",
	"tiktok":    "https://tiktok.com/@",
	"youtube":   "https://youtube.com/@",
	"telegram":  "https://t.me/",
	"facebook":  "https://facebook.com/",
	"linkedin":  "https://linkedin.com/in/",
}

// Encode renders a deterministic vCard 3.0 text blob from the document's
// fields, static channels, phones, and social links. The first phone entry
// is marked preferred. Empty values are omitted.
func Encode(doc *card.Document) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCARD")
	writeLine(&b, "VERSION:3.0")

	name := strings.TrimSpace(doc.String(card.FieldName, ""))
	if name != "" {
		writeLine(&b, "FN:"+escape(name))
		writeLine(&b, "N:"+escape(familyName(name))+";"+escape(givenName(name))+";;;")
	}
	if tagline := strings.TrimSpace(doc.String(card.FieldTagline, "")); tagline != "" {
		writeLine(&b, "TITLE:"+escape(tagline))
	}
	if company := strings.TrimSpace(doc.String(card.FieldCompany, "")); company != "" {
		writeLine(&b, "ORG:"+escape(company))
	}

	for i, entry := range doc.Phones {
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			continue
		}
		if i == 0 {
			writeLine(&b, "TEL;TYPE=CELL,PREF:"+escape(value))
		} else {
			writeLine(&b, "TEL;TYPE=CELL:"+escape(value))
		}
	}

	if email := staticValue(doc, "email"); email != "" {
		writeLine(&b, "EMAIL;TYPE=INTERNET:"+escape(email))
	}
	if website := staticValue(doc, "website"); website != "" {
		writeLine(&b, "URL:"+escape(ensureURL(website, "https://")))
	}
	if whatsapp := staticValue(doc, "whatsapp"); whatsapp != "" {
		writeLine(&b, "URL;TYPE=whatsapp:"+escape("https://wa.me/"+digitsOnly(whatsapp)))
	}
	if facebook := staticValue(doc, "facebook"); facebook != "" {
		writeLine(&b, "URL;TYPE=facebook:"+escape(profileURL("facebook", facebook)))
	}
	if linkedin := staticValue(doc, "linkedin"); linkedin != "" {
		writeLine(&b, "URL;TYPE=linkedin:"+escape(profileURL("linkedin", linkedin)))
	}

	for _, entry := range doc.SocialLinks {
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			continue
		}
		platform := strings.ToLower(strings.TrimSpace(entry.Platform))
		if platform == "" {
			platform = "profile"
		}
		writeLine(&b, "URL;TYPE="+sanitizeType(platform)+":"+escape(profileURL(platform, value)))
	}

	writeLine(&b, "END:VCARD")
	return b.String()
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

func staticValue(doc *card.Document, platform string) string {
	return strings.TrimSpace(doc.StaticSocial[platform].Value)
}

func familyName(full string) string {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return full
	}
	return parts[len(parts)-1]
}

func givenName(full string) string {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], " ")
}

func profileURL(platform, value string) string {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	handle := strings.TrimPrefix(value, "@")
	if prefix, ok := profilePrefixes[platform]; ok {
		return prefix + handle
	}
	return ensureURL(value, "https://")
}

func ensureURL(value, scheme string) string {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	return scheme + value
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sanitizeType(platform string) string {
	var b strings.Builder
	for _, r := range platform {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "profile"
	}
	return b.String()
}

// Escape per RFC 2426: backslash, semicolon, comma, and newlines.
func escape(value string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return replacer.Replace(value)
}
