package olm

import (
	"archive/zip"
	"bytes"
	"testing"
)

func writeEntry(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create entry %s: %v", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write entry %s: %v", name, err)
	}
}

const netflixMessageXML = `<?xml version="1.0" encoding="UTF-8"?>
<message>
  <OPFMessageCopySubject>Welcome to Netflix!</OPFMessageCopySubject>
  <OPFMessageCopyBody>Thanks for joining.</OPFMessageCopyBody>
  <OPFMessageCopySentTime>2024-01-01T12:00:00Z</OPFMessageCopySentTime>
  <OPFMessageCopyFromAddresses>
    <emailAddress OPFContactEmailAddressAddress="welcome@netflix.com" OPFContactEmailAddressName="Netflix"/>
  </OPFMessageCopyFromAddresses>
</message>`

const secondMessageXML = `<?xml version="1.0" encoding="UTF-8"?>
<message>
  <OPFMessageCopySubject>Your receipt</OPFMessageCopySubject>
  <OPFMessageCopyBody>Thanks for your purchase.</OPFMessageCopyBody>
  <OPFMessageCopySentTime>2024-01-02T12:00:00Z</OPFMessageCopySentTime>
  <OPFMessageCopyFromAddresses>
    <emailAddress OPFContactEmailAddressAddress="orders@example.com" OPFContactEmailAddressName="Example Store"/>
  </OPFMessageCopyFromAddresses>
</message>`

func buildOLMFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// Deliberately out of numeric order to exercise the ascending
	// message_<n> sort.
	writeEntry(t, zw, "com.microsoft.__Messages/message_2.xml", secondMessageXML)
	writeEntry(t, zw, "com.microsoft.__Messages/message_1.xml", netflixMessageXML)
	writeEntry(t, zw, "com.microsoft.__Messages/message_3.xml", "<message><OPFMessageCopySubject>broken</message>")
	writeEntry(t, zw, "Address Book/Contacts.xml", `<contacts><contact><OPFContactCopyDisplayName>Jane Doe</OPFContactCopyDisplayName><OPFContactEmailAddresses><emailAddress OPFContactEmailAddressAddress="jane@example.com"/></OPFContactEmailAddresses></contact></contacts>`)
	writeEntry(t, zw, "Calendar/Calendar.xml", `<events><event><OPFCalendarEventCopySubject>Standup</OPFCalendarEventCopySubject><OPFCalendarEventCopyStartTime>2024-01-03T09:00:00Z</OPFCalendarEventCopyStartTime></event></events>`)

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestIsOLM(t *testing.T) {
	data := buildOLMFixture(t)
	if !IsOLM(data) {
		t.Error("expected a zip fixture to be recognized as an olm archive")
	}
	if IsOLM([]byte("From foo@bar.com Mon Jan 1 00:00:00 2024\n")) {
		t.Error("expected an mbox-shaped buffer not to be recognized as olm")
	}
	if IsOLM([]byte("xx")) {
		t.Error("expected a too-short buffer not to be recognized as olm")
	}
}

// TestDecode_SeedScenario covers spec's concrete seed test #4: a single
// message_1.xml with OPFMessageCopySubject=Welcome to Netflix! and
// sender welcome@netflix.com should decode to one email record usable
// by the account detector.
func TestDecode_SeedScenario(t *testing.T) {
	data := buildOLMFixture(t)
	r := bytes.NewReader(data)

	result, err := Decode(r, int64(len(data)), Options{})
	if err != nil {
		t.Fatalf("Decode returned an error: %v", err)
	}

	// message_3.xml is malformed XML and must be skipped, not fatal.
	if result.Skipped == 0 {
		t.Error("expected the malformed message entry to be counted as skipped")
	}

	if len(result.Emails) != 2 {
		t.Fatalf("got %d emails, want 2", len(result.Emails))
	}

	// Ascending numeric message_<n> order: message_1 before message_2.
	if result.Emails[0].Subject != "Welcome to Netflix!" {
		t.Errorf("first email subject = %q, want Welcome to Netflix!", result.Emails[0].Subject)
	}
	if result.Emails[0].Sender != "welcome@netflix.com" {
		t.Errorf("first email sender = %q, want welcome@netflix.com", result.Emails[0].Sender)
	}
	if result.Emails[0].FolderID != "inbox" {
		t.Errorf("folder_id = %q, want inbox (olm has no gmail-label analog)", result.Emails[0].FolderID)
	}
	if result.Emails[1].Subject != "Your receipt" {
		t.Errorf("second email subject = %q, want Your receipt", result.Emails[1].Subject)
	}
}

func TestDecode_ContactsAndCalendarExtracted(t *testing.T) {
	data := buildOLMFixture(t)
	r := bytes.NewReader(data)

	result, err := Decode(r, int64(len(data)), Options{})
	if err != nil {
		t.Fatalf("Decode returned an error: %v", err)
	}

	if len(result.Contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(result.Contacts))
	}
	if result.Contacts[0].DisplayName != "Jane Doe" {
		t.Errorf("contact display name = %q, want Jane Doe", result.Contacts[0].DisplayName)
	}

	if len(result.Events) != 1 {
		t.Fatalf("got %d calendar events, want 1", len(result.Events))
	}
	if result.Events[0].Subject != "Standup" {
		t.Errorf("event subject = %q, want Standup", result.Events[0].Subject)
	}
}

func TestDecode_MalformedZipIsFatal(t *testing.T) {
	garbage := []byte("PK\x03\x04 this is not a real zip central directory")
	_, err := Decode(bytes.NewReader(garbage), int64(len(garbage)), Options{})
	if err == nil {
		t.Error("expected a corrupt zip to return an error")
	}
}

func TestDecode_ProgressReported(t *testing.T) {
	data := buildOLMFixture(t)
	r := bytes.NewReader(data)

	var calls int
	_, err := Decode(r, int64(len(data)), Options{
		Progress: func(stage string, processed, total int) {
			calls++
			if stage != "parsing_emails" {
				t.Errorf("stage = %q, want parsing_emails", stage)
			}
		},
	})
	if err != nil {
		t.Fatalf("Decode returned an error: %v", err)
	}
	if calls != 2 {
		t.Errorf("got %d progress calls, want 2 (one per decoded message)", calls)
	}
}
