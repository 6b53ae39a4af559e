package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	invoice := &Email{From: "Billing <billing@acme.com>", Subject: "Invoice #4 overdue", Snippet: "Please pay"}
	newsletter := &Email{From: "a@mailchimp.com", Subject: "Your invoice digest"}

	tests := []struct {
		name     string
		matchers Matchers
		email    *Email
		want     bool
	}{
		{
			name:     "keyword in subject",
			matchers: Matchers{Keywords: []string{"invoice"}},
			email:    invoice,
			want:     true,
		},
		{
			name:     "keyword is case insensitive",
			matchers: Matchers{Keywords: []string{"INVOICE"}},
			email:    invoice,
			want:     true,
		},
		{
			name:     "keyword in body",
			matchers: Matchers{Keywords: []string{"refund"}},
			email:    &Email{From: "x@y.com", Subject: "hi", Body: "I want a Refund"},
			want:     true,
		},
		{
			name:     "keyword with unicode case folding",
			matchers: Matchers{Keywords: []string{"école"}},
			email:    &Email{From: "x@y.com", Subject: "ÉCOLE closed"},
			want:     true,
		},
		{
			name:     "no inclusion hit",
			matchers: Matchers{Keywords: []string{"hiring"}},
			email:    invoice,
			want:     false,
		},
		{
			name:     "sender domain",
			matchers: Matchers{SenderDomains: []string{"acme.com"}},
			email:    invoice,
			want:     true,
		},
		{
			name:     "sender subdomain",
			matchers: Matchers{SenderDomains: []string{"acme.com"}},
			email:    &Email{From: "ops@mail.acme.com"},
			want:     true,
		},
		{
			name:     "sender email",
			matchers: Matchers{SenderEmails: []string{"billing@acme.com"}},
			email:    invoice,
			want:     true,
		},
		{
			name:     "exclude domain beats keyword",
			matchers: Matchers{Keywords: []string{"invoice"}, ExcludeSenderDomains: []string{"mailchimp.com"}},
			email:    newsletter,
			want:     false,
		},
		{
			name:     "exclude email beats sender email",
			matchers: Matchers{SenderEmails: []string{"a@mailchimp.com"}, ExcludeSenderEmails: []string{"a@mailchimp.com"}},
			email:    newsletter,
			want:     false,
		},
		{
			name:     "exclude keyword beats domain",
			matchers: Matchers{SenderDomains: []string{"acme.com"}, ExcludeKeywords: []string{"overdue"}},
			email:    invoice,
			want:     false,
		},
		{
			name:     "wildcard matches anything",
			matchers: Matchers{},
			email:    invoice,
			want:     true,
		},
		{
			name:     "wildcard still honours exclusions",
			matchers: Matchers{ExcludeSenderDomains: []string{"mailchimp.com"}},
			email:    newsletter,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bucket{ID: "b", Enabled: true, Matchers: tt.matchers}
			assert.Equal(t, tt.want, Matches(b, tt.email))
		})
	}
}

func TestMatchesExclusionDominance(t *testing.T) {
	email := &Email{From: "promo@news.shop.com", Subject: "Invoice and unsubscribe", Body: "sale"}
	inclusions := []Matchers{
		{Keywords: []string{"invoice"}},
		{SenderDomains: []string{"shop.com"}},
		{SenderEmails: []string{"promo@news.shop.com"}},
		{},
	}
	exclusions := []Matchers{
		{ExcludeKeywords: []string{"unsubscribe"}},
		{ExcludeSenderDomains: []string{"shop.com"}},
		{ExcludeSenderEmails: []string{"promo@news.shop.com"}},
	}

	for _, inc := range inclusions {
		for _, exc := range exclusions {
			m := inc
			m.ExcludeKeywords = exc.ExcludeKeywords
			m.ExcludeSenderDomains = exc.ExcludeSenderDomains
			m.ExcludeSenderEmails = exc.ExcludeSenderEmails
			assert.False(t, Matches(&Bucket{Matchers: m}, email), "matchers %+v", m)
		}
	}
}
