// Package olmcontacts rolls up every unique sender seen while decoding
// an OLM archive into a per-sender contact, independent of whatever
// explicit Address Book/Contacts.xml entries the archive also carries
// (per spec §4.4, a sender-derived contact is always produced). Roll-ups
// are exported as vCard using the same library the teacher's mail
// stack already depends on for CardDAV interop.
package olmcontacts

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Technical-1/email-archive-parser/internal/record"
)

var titleCaser = cases.Title(language.English)

// SenderContact is one row of the sender roll-up: every address seen
// as a From value, tallied by count and bounded by first/last seen
// dates.
type SenderContact struct {
	Email        string
	DisplayName  string
	EmailCount   int
	FirstSeen    string // RFC3339
	LastSeen     string // RFC3339
}

// RollUp derives one SenderContact per unique (lowercased) sender
// address across emails, in ascending first-seen order. Emails lacking
// a sender address are skipped; they carry no addressable contact.
func RollUp(emails []*record.Email) []SenderContact {
	index := map[string]*SenderContact{}
	var order []string

	for _, e := range emails {
		if e == nil || e.Sender == "" {
			continue
		}

		key := strings.ToLower(e.Sender)
		c, ok := index[key]
		if !ok {
			c = &SenderContact{
				Email:       key,
				DisplayName: e.SenderName,
				FirstSeen:   e.Date,
				LastSeen:    e.Date,
			}
			index[key] = c
			order = append(order, key)
		}

		c.EmailCount++
		if c.DisplayName == "" && e.SenderName != "" {
			c.DisplayName = e.SenderName
		}
		if olderDate(e.Date, c.FirstSeen) {
			c.FirstSeen = e.Date
		}
		if newerDate(e.Date, c.LastSeen) {
			c.LastSeen = e.Date
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return olderDate(index[order[i]].FirstSeen, index[order[j]].FirstSeen)
	})

	out := make([]SenderContact, 0, len(order))
	for _, addr := range order {
		out = append(out, *index[addr])
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func olderDate(a, b string) bool {
	at, aok := parseDate(a)
	bt, bok := parseDate(b)
	if !aok || !bok {
		return false
	}
	return at.Before(bt)
}

func newerDate(a, b string) bool {
	at, aok := parseDate(a)
	bt, bok := parseDate(b)
	if !aok || !bok {
		return false
	}
	return at.After(bt)
}

// displayName falls back to a humanized local-part when no name was
// ever observed for the sender.
func (c SenderContact) displayName() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	local := c.Email
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	local = strings.ReplaceAll(local, ".", " ")
	local = strings.ReplaceAll(local, "_", " ")
	return titleCaser.String(local)
}

// ToVCard converts a roll-up into a go-vcard Card (version 3.0), with
// FN/EMAIL and an X-EMAIL-COUNT extension field carrying the tally.
func (c SenderContact) ToVCard() vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldVersion, "3.0")
	card.SetValue(vcard.FieldFormattedName, c.displayName())
	card.SetValue(vcard.FieldEmail, c.Email)
	card.Set("X-EMAIL-COUNT", &vcard.Field{Value: fmt.Sprintf("%d", c.EmailCount)})
	if c.LastSeen != "" {
		card.Set("X-LAST-SEEN", &vcard.Field{Value: c.LastSeen})
	}
	return card
}

// EncodeVCards writes every contact's vCard representation to w,
// concatenated in the order given — the standard way to serialize a
// multi-card vCard stream.
func EncodeVCards(w io.Writer, contacts []SenderContact) error {
	enc := vcard.NewEncoder(w)
	for _, c := range contacts {
		if err := enc.Encode(c.ToVCard()); err != nil {
			return fmt.Errorf("encode vcard for %s: %w", c.Email, err)
		}
	}
	return nil
}
